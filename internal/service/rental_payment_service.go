package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rentalstation/internal/db"
	"rentalstation/internal/entities"
	apperrors "rentalstation/internal/errors"
	"rentalstation/internal/events"
	"rentalstation/internal/metrics"
	"rentalstation/internal/repository"
)

var (
	ErrItemNotFound       = apperrors.ErrNotFound("Rental item not found")
	ErrItemNotAvailable   = apperrors.ErrConflict("Rental item is not available")
	ErrRentalConflict     = apperrors.ErrConflict("Rental item is busy, please try again")
	ErrPaymentAlreadyUsed = apperrors.ErrConflict("Payment has already been used for a rental")
	ErrInvalidRentalTime  = apperrors.ErrValidation("rentalTime must be greater than 0 and at most 8760 hours")
	ErrHistoryPending     = apperrors.NewHTTPError(apperrors.KindPublishFailed, historyPendingWarning)
	ErrPaymentDeclined    = apperrors.NewHTTPError(apperrors.KindPaymentDeclined, "Payment was declined")
	ErrGatewayUnavailable = apperrors.NewHTTPError(apperrors.KindGatewayUnavailable, "Payment gateway is unavailable")
)

const (
	approvedMessage       = "Rental payment approved"
	historyPendingWarning = "Rental was approved but its history is still being delivered"
	compensationReason    = "rental_not_recorded"
)

// PaymentGateway approves a payment exactly as the client authorized it and can refund it afterwards.
type PaymentGateway interface {
	Approve(ctx context.Context, req entities.PaymentApproval) (*entities.PaymentReceipt, error)
	Cancel(ctx context.Context, paymentKey, reason string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, msg events.Message, policy events.RetryPolicy) error
}

type RentalNotifier interface {
	RentalApproved(ctx context.Context, receipt entities.RentalReceipt)
}

type RentalPaymentConfig struct {
	Sender      string
	RetryPolicy events.RetryPolicy
}

type RentalPaymentService struct {
	store     repository.RentalStore
	gateway   PaymentGateway
	publisher EventPublisher
	notifier  RentalNotifier
	cfg       RentalPaymentConfig

	now   func() time.Time
	newID func() string
}

// NewRentalPaymentService wires the approval flow. notifier may be nil.
func NewRentalPaymentService(store repository.RentalStore, gateway PaymentGateway, publisher EventPublisher, notifier RentalNotifier, cfg RentalPaymentConfig) *RentalPaymentService {
	if cfg.RetryPolicy.Attempts < 1 {
		cfg.RetryPolicy = events.DefaultRetryPolicy
	}
	return &RentalPaymentService{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// ApproveRental charges the client through the gateway and, on success, records the payment,
// marks the item rented and emits the rental history event.
//
// The gateway is called at most once per request. If the rental cannot be recorded after the
// gateway approved, the payment is refunded before the error is returned.
func (s *RentalPaymentService) ApproveRental(ctx context.Context, userID string, cmd entities.ApproveRentalCommand) (*entities.ApproveRentalResult, error) {
	log := logrus.WithFields(logrus.Fields{
		"orderId":         cmd.OrderID,
		"rentalItemToken": cmd.RentalItemToken,
		"userId":          userID,
	})

	duration, err := rentalDuration(cmd.RentalTime)
	if err != nil {
		countApproval(err)
		return nil, err
	}

	item, err := s.store.GetItem(ctx, cmd.RentalItemToken)
	if err != nil {
		err = itemError(err)
		countApproval(err)
		return nil, err
	}
	if item.Status != db.ItemStatusAvailable {
		countApproval(ErrItemNotAvailable)
		return nil, ErrItemNotAvailable
	}
	if err := s.checkPaymentUnused(ctx, cmd.PaymentKey); err != nil {
		countApproval(err)
		return nil, err
	}

	if _, err := s.gateway.Approve(ctx, entities.PaymentApproval{
		PaymentKey: cmd.PaymentKey,
		OrderID:    cmd.OrderID,
		Amount:     cmd.Amount,
	}); err != nil {
		err = gatewayError(err)
		log.WithError(err).Warn("Payment approval failed")
		countApproval(err)
		return nil, err
	}

	start := s.now().UTC()
	end := start.Add(duration)
	paymentID := s.newID()
	eventID := s.newID()

	history := db.RentalHistory{
		UserID:          userID,
		Status:          db.HistoryStatusRented,
		StartTime:       start,
		EndTime:         end,
		RentalTime:      cmd.RentalTime,
		RentalItemID:    item.Token,
		RentalStationID: item.StationID,
	}
	payload, err := events.EncodeRentalHistory(s.cfg.Sender, history, start)
	if err != nil {
		s.compensate(ctx, log, cmd.PaymentKey, err)
		countApproval(err)
		return nil, err
	}

	payment := db.RentalPayment{
		ID:              paymentID,
		Type:            db.PaymentTypeCreditCard,
		TotalAmount:     cmd.Amount,
		PaymentDate:     start,
		OrderID:         cmd.OrderID,
		RentalHistoryID: cmd.RentalItemToken,
		UserID:          userID,
		PaymentKey:      cmd.PaymentKey,
		StationID:       item.StationID,
	}
	outbox := db.OutboxEvent{
		ID:          eventID,
		Name:        events.RentalHistorySave,
		AggregateID: item.Token,
		Payload:     string(payload),
		Status:      db.OutboxStatusPending,
		CreatedAt:   start,
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx repository.RentalTxn) error {
		// Checked before the item: a request that lost to another one carrying the same
		// payment key must see the key as used, not the item as rented.
		switch _, err := tx.GetPaymentByKey(ctx, cmd.PaymentKey); {
		case err == nil:
			return ErrPaymentAlreadyUsed
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		current, err := tx.GetItem(ctx, cmd.RentalItemToken)
		if err != nil {
			return itemError(err)
		}
		if current.Status != db.ItemStatusAvailable {
			return ErrItemNotAvailable
		}
		tx.CreatePayment(payment)
		tx.UpdateItemStatus(current, db.ItemStatusRented)
		tx.EnqueueEvent(outbox)
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrTxConflict) {
			err = fmt.Errorf("%w: %w", ErrRentalConflict, err)
		}
		log.WithError(err).Warn("Rental could not be recorded after payment approval")
		s.compensate(ctx, log, cmd.PaymentKey, err)
		countApproval(err)
		return nil, err
	}

	result := &entities.ApproveRentalResult{
		PaymentID: paymentID,
		StartTime: start,
		EndTime:   end,
		Message:   approvedMessage,
	}

	msg := events.Message{ID: eventID, Name: events.RentalHistorySave, Key: item.Token, Body: payload}
	if err := s.publisher.Publish(ctx, msg, s.cfg.RetryPolicy); err != nil {
		log.WithError(err).WithField("eventId", eventID).Error("Rental history left in outbox for relay")
		result.Pending = fmt.Errorf("%w: %w", ErrHistoryPending, err)
		result.Warning = apperrors.Message(result.Pending)
	} else if err := s.store.MarkEventPublished(ctx, eventID, s.now().UTC()); err != nil {
		log.WithError(err).WithField("eventId", eventID).Warn("Failed to mark outbox entry published")
	}

	if result.HistoryPending() {
		metrics.RentalApprovalsTotal.WithLabelValues("approved_history_pending").Inc()
	} else {
		metrics.RentalApprovalsTotal.WithLabelValues("approved").Inc()
	}

	if s.notifier != nil {
		s.notifier.RentalApproved(ctx, entities.RentalReceipt{
			UserEmail:       userID,
			PaymentID:       paymentID,
			OrderID:         cmd.OrderID,
			Amount:          cmd.Amount,
			RentalItemToken: item.Token,
			ItemName:        item.Name,
			StationID:       item.StationID,
			StartTime:       start,
			EndTime:         end,
		})
	}

	log.WithField("paymentId", paymentID).Info("Rental payment approved")
	return result, nil
}

// compensate refunds an approved payment whose rental could not be recorded. It leaves the payment
// alone when a committed rental already owns the payment key.
func (s *RentalPaymentService) compensate(ctx context.Context, log *logrus.Entry, paymentKey string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if errors.Is(cause, ErrPaymentAlreadyUsed) {
		log.Info("Payment key belongs to a committed rental, not refunding")
		return
	}
	if _, err := s.store.GetPaymentByKey(ctx, paymentKey); err == nil {
		log.Info("Payment key belongs to a committed rental, not refunding")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		log.WithError(err).Warn("Could not check payment ownership before refund")
	}

	if err := s.gateway.Cancel(ctx, paymentKey, compensationReason); err != nil {
		log.WithError(err).Error("Refund after failed rental failed, manual follow-up required")
		metrics.RentalApprovalsTotal.WithLabelValues("refund_failed").Inc()
		return
	}
	log.Info("Payment refunded after failed rental")
}

// checkPaymentUnused rejects a payment key that already paid for a rental, before the gateway is asked.
func (s *RentalPaymentService) checkPaymentUnused(ctx context.Context, paymentKey string) error {
	_, err := s.store.GetPaymentByKey(ctx, paymentKey)
	switch {
	case err == nil:
		return ErrPaymentAlreadyUsed
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return err
	}
}

// rentalDuration converts hours to a duration, rejecting values the validator would not let through.
func rentalDuration(hours float64) (time.Duration, error) {
	if !(hours > 0) || hours > entities.MaxRentalHours {
		return 0, ErrInvalidRentalTime
	}
	return time.Duration(hours * float64(time.Hour)), nil
}

func itemError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrItemNotFound, err)
	}
	return err
}

// gatewayError makes sure every gateway failure carries a payment kind.
func gatewayError(err error) error {
	switch apperrors.KindOf(err) {
	case apperrors.KindPaymentDeclined, apperrors.KindGatewayUnavailable:
		return err
	}
	return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
}

func countApproval(err error) {
	outcome := "error"
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		outcome = "invalid"
	case apperrors.KindNotFound:
		outcome = "not_found"
	case apperrors.KindConflict:
		outcome = "conflict"
	case apperrors.KindPaymentDeclined:
		outcome = "declined"
	case apperrors.KindGatewayUnavailable:
		outcome = "gateway_unavailable"
	}
	metrics.RentalApprovalsTotal.WithLabelValues(outcome).Inc()
}
