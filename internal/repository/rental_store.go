package repository

import (
	"context"
	"time"

	"rentalstation/internal/db"
)

// RentalTxn is the view a transaction body has of the store. Writes are buffered and
// applied atomically when the body returns nil; reads made through the txn become
// preconditions of the commit.
type RentalTxn interface {
	GetItem(ctx context.Context, token string) (*db.RentalItem, error)
	GetPaymentByKey(ctx context.Context, paymentKey string) (*db.RentalPayment, error)
	CreatePayment(p db.RentalPayment)
	UpdateItemStatus(item *db.RentalItem, status string)
	EnqueueEvent(e db.OutboxEvent)
}

// RentalStore holds rental items, payment records and the event outbox.
//
// RunTransaction may call fn more than once when a concurrent commit invalidates what fn
// read, so fn must only touch the store through tx.
type RentalStore interface {
	GetItem(ctx context.Context, token string) (*db.RentalItem, error)
	// GetPaymentByKey returns ErrNotFound when no rental has been paid with paymentKey.
	GetPaymentByKey(ctx context.Context, paymentKey string) (*db.RentalPayment, error)
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx RentalTxn) error) error

	CreateItem(ctx context.Context, item db.RentalItem) error
	ListItemsByStation(ctx context.Context, stationID string) ([]db.RentalItem, error)
	ListPaymentsByUser(ctx context.Context, userID string, limit int) ([]db.RentalPayment, error)

	ListPendingEvents(ctx context.Context, createdBefore time.Time, limit int) ([]db.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, id string, at time.Time) error
	RecordEventAttempt(ctx context.Context, id string) error
}
