package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	OrderID string  `json:"orderId" validate:"required"`
	Amount  int64   `json:"amount" validate:"required,gt=0"`
	Email   string  `json:"email" validate:"omitempty,email"`
	Radius  float64 `json:"radius" validate:"gt=0"`
}

func TestMissingFields_UsesJSONNamesInOrder(t *testing.T) {
	err := New().Validate(sample{Radius: 1})
	require.Error(t, err)

	assert.Equal(t, []string{"orderId", "amount"}, MissingFields(err))
}

func TestDescribe(t *testing.T) {
	err := New().Validate(sample{OrderID: "o-1", Amount: 10, Email: "nope", Radius: 0})
	require.Error(t, err)

	assert.Empty(t, MissingFields(err))
	assert.Equal(t, "email must be a valid email; radius must be greater than 0", Describe(err))
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, New().Validate(sample{OrderID: "o-1", Amount: 10, Radius: 5}))
}
