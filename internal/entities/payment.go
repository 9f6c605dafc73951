package entities

import "time"

type PaymentApproval struct {
	PaymentKey string
	OrderID    string
	Amount     int64
}

type PaymentReceipt struct {
	PaymentKey string
	OrderID    string
	Amount     int64
	Status     string
	ApprovedAt time.Time
}

// RentalReceipt is what the customer is told after a rental is approved.
type RentalReceipt struct {
	UserEmail       string
	PaymentID       string
	OrderID         string
	Amount          int64
	RentalItemToken string
	ItemName        string
	StationID       string
	StartTime       time.Time
	EndTime         time.Time
}
