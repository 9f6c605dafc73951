package entities

import "time"

// MaxRentalHours caps a single rental at one year.
const MaxRentalHours = 8760

// ApproveRentalRequest is the wire shape of POST /payments/approve-rental.
type ApproveRentalRequest struct {
	Payments PaymentsPayload `json:"payments"`
	Rentals  RentalsPayload  `json:"rentals"`
}

type PaymentsPayload struct {
	OrderID    string `json:"orderId" validate:"required"`
	PaymentKey string `json:"paymentKey" validate:"required"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
}

type RentalsPayload struct {
	RentalItemToken string  `json:"rentalItemToken" validate:"required"`
	RentalTime      float64 `json:"rentalTime" validate:"required,gt=0,lte=8760"`
}

// ApproveRentalCommand is a request that already passed validation.
type ApproveRentalCommand struct {
	OrderID         string
	PaymentKey      string
	Amount          int64
	RentalItemToken string
	RentalTime      float64 // hours, may be fractional
}

func (r ApproveRentalRequest) Command() ApproveRentalCommand {
	return ApproveRentalCommand{
		OrderID:         r.Payments.OrderID,
		PaymentKey:      r.Payments.PaymentKey,
		Amount:          r.Payments.Amount,
		RentalItemToken: r.Rentals.RentalItemToken,
		RentalTime:      r.Rentals.RentalTime,
	}
}

type ApproveRentalResult struct {
	PaymentID string    `json:"paymentId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Message   string    `json:"message"`
	Warning   string    `json:"warning,omitempty"`

	// Pending is set when the rental committed but the history event still sits in the outbox.
	Pending error `json:"-"`
}

func (r *ApproveRentalResult) HistoryPending() bool {
	return r.Pending != nil
}
