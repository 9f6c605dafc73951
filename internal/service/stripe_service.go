package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"

	"rentalstation/internal/entities"
)

const orderIDMetadataKey = "order_id"

// stripeAPI is the slice of the Stripe SDK the gateway needs.
type stripeAPI interface {
	GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	CapturePaymentIntent(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
	CreateRefund(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeSDK struct{}

func (stripeSDK) GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Get(id, params)
}

func (stripeSDK) CapturePaymentIntent(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Capture(id, params)
}

func (stripeSDK) CreateRefund(params *stripe.RefundParams) (*stripe.Refund, error) {
	return refund.New(params)
}

// StripeService is the PaymentGateway backed by Stripe PaymentIntents. The payment key is the
// PaymentIntent id the client confirmed with manual capture.
type StripeService struct {
	api stripeAPI
	now func() time.Time
}

// NewStripeService uses the package level stripe.Key.
func NewStripeService() *StripeService {
	return &StripeService{api: stripeSDK{}, now: time.Now}
}

func (s *StripeService) Approve(ctx context.Context, req entities.PaymentApproval) (*entities.PaymentReceipt, error) {
	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx
	pi, err := s.api.GetPaymentIntent(req.PaymentKey, getParams)
	if err != nil {
		return nil, classifyStripeError(err)
	}

	if pi.Amount != req.Amount {
		return nil, fmt.Errorf("%w: amount %d does not match authorized %d", ErrPaymentDeclined, req.Amount, pi.Amount)
	}
	if orderID := pi.Metadata[orderIDMetadataKey]; orderID != "" && orderID != req.OrderID {
		return nil, fmt.Errorf("%w: payment belongs to order %s", ErrPaymentDeclined, orderID)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
	case stripe.PaymentIntentStatusRequiresCapture:
		captureParams := &stripe.PaymentIntentCaptureParams{}
		captureParams.Context = ctx
		captureParams.SetIdempotencyKey("approve-" + req.OrderID)
		pi, err = s.api.CapturePaymentIntent(req.PaymentKey, captureParams)
		if err != nil {
			return nil, classifyStripeError(err)
		}
		if pi.Status != stripe.PaymentIntentStatusSucceeded {
			return nil, fmt.Errorf("%w: capture ended in status %s", ErrPaymentDeclined, pi.Status)
		}
	default:
		return nil, fmt.Errorf("%w: payment is %s", ErrPaymentDeclined, pi.Status)
	}

	return &entities.PaymentReceipt{
		PaymentKey: pi.ID,
		OrderID:    req.OrderID,
		Amount:     pi.Amount,
		Status:     string(pi.Status),
		ApprovedAt: s.now().UTC(),
	}, nil
}

// Cancel refunds the whole payment. Repeated calls for the same key are collapsed by Stripe.
func (s *StripeService) Cancel(ctx context.Context, paymentKey, reason string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentKey),
	}
	params.Context = ctx
	params.SetIdempotencyKey("cancel-" + paymentKey)
	params.AddMetadata("reason", reason)

	if _, err := s.api.CreateRefund(params); err != nil {
		return classifyStripeError(err)
	}
	return nil
}

// classifyStripeError separates client side rejections (402) from gateway trouble (502).
func classifyStripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		switch {
		case se.Type == stripe.ErrorTypeCard:
			return fmt.Errorf("%w: %w", ErrPaymentDeclined, err)
		case se.Type == stripe.ErrorTypeInvalidRequest && se.HTTPStatusCode < http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", ErrPaymentDeclined, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
}
