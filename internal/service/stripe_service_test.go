package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"rentalstation/internal/entities"
	apperrors "rentalstation/internal/errors"
)

type stripeMock struct {
	getFn     func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	captureFn func(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
	refundFn  func(params *stripe.RefundParams) (*stripe.Refund, error)
	captures  int
}

func (m *stripeMock) GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return m.getFn(id, params)
}

func (m *stripeMock) CapturePaymentIntent(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error) {
	m.captures++
	return m.captureFn(id, params)
}

func (m *stripeMock) CreateRefund(params *stripe.RefundParams) (*stripe.Refund, error) {
	return m.refundFn(params)
}

func newStripeTestService(m *stripeMock) *StripeService {
	return &StripeService{api: m, now: func() time.Time { return fixedNow }}
}

func intent(status stripe.PaymentIntentStatus) *stripe.PaymentIntent {
	return &stripe.PaymentIntent{
		ID:       "pi_123",
		Amount:   5000,
		Status:   status,
		Metadata: map[string]string{orderIDMetadataKey: "ORD-1"},
	}
}

var approval = entities.PaymentApproval{PaymentKey: "pi_123", OrderID: "ORD-1", Amount: 5000}

func TestStripeApprove_CapturesAuthorizedPayment(t *testing.T) {
	m := &stripeMock{
		getFn: func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return intent(stripe.PaymentIntentStatusRequiresCapture), nil
		},
		captureFn: func(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error) {
			require.NotNil(t, params.IdempotencyKey)
			assert.Equal(t, "approve-ORD-1", *params.IdempotencyKey)
			return intent(stripe.PaymentIntentStatusSucceeded), nil
		},
	}

	receipt, err := newStripeTestService(m).Approve(context.Background(), approval)
	require.NoError(t, err)
	assert.Equal(t, 1, m.captures)
	assert.Equal(t, "pi_123", receipt.PaymentKey)
	assert.Equal(t, "succeeded", receipt.Status)
	assert.Equal(t, fixedNow, receipt.ApprovedAt)
}

func TestStripeApprove_AlreadySucceededSkipsCapture(t *testing.T) {
	m := &stripeMock{
		getFn: func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return intent(stripe.PaymentIntentStatusSucceeded), nil
		},
	}

	_, err := newStripeTestService(m).Approve(context.Background(), approval)
	require.NoError(t, err)
	assert.Zero(t, m.captures)
}

func TestStripeApprove_Declines(t *testing.T) {
	tests := []struct {
		name   string
		intent func() *stripe.PaymentIntent
	}{
		{"amount mismatch", func() *stripe.PaymentIntent {
			pi := intent(stripe.PaymentIntentStatusRequiresCapture)
			pi.Amount = 100
			return pi
		}},
		{"other order", func() *stripe.PaymentIntent {
			pi := intent(stripe.PaymentIntentStatusRequiresCapture)
			pi.Metadata[orderIDMetadataKey] = "ORD-9"
			return pi
		}},
		{"not confirmed", func() *stripe.PaymentIntent {
			return intent(stripe.PaymentIntentStatusRequiresPaymentMethod)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &stripeMock{
				getFn: func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
					return tt.intent(), nil
				},
			}
			_, err := newStripeTestService(m).Approve(context.Background(), approval)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPaymentDeclined)
			assert.Zero(t, m.captures)
		})
	}
}

func TestStripeApprove_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperrors.Kind
	}{
		{"card error", &stripe.Error{Type: stripe.ErrorTypeCard, HTTPStatusCode: 402}, apperrors.KindPaymentDeclined},
		{"unknown intent", &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: 404}, apperrors.KindPaymentDeclined},
		{"api error", &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: 500}, apperrors.KindGatewayUnavailable},
		{"network", errors.New("dial tcp: i/o timeout"), apperrors.KindGatewayUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &stripeMock{
				getFn: func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
					return nil, tt.err
				},
			}
			_, err := newStripeTestService(m).Approve(context.Background(), approval)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}
}

func TestStripeCancel_RefundsWithIdempotencyKey(t *testing.T) {
	var got *stripe.RefundParams
	m := &stripeMock{
		refundFn: func(params *stripe.RefundParams) (*stripe.Refund, error) {
			got = params
			return &stripe.Refund{ID: "re_1"}, nil
		},
	}

	require.NoError(t, newStripeTestService(m).Cancel(context.Background(), "pi_123", "rental_not_recorded"))
	require.NotNil(t, got)
	assert.Equal(t, "pi_123", *got.PaymentIntent)
	assert.Equal(t, "cancel-pi_123", *got.IdempotencyKey)
	assert.Equal(t, "rental_not_recorded", got.Metadata["reason"])
}
