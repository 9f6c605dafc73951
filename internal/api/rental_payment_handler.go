package api

import (
	"context"
	"net/http"

	"rentalstation/internal/entities"
	apperrors "rentalstation/internal/errors"
)

type RentalApprover interface {
	ApproveRental(ctx context.Context, userID string, cmd entities.ApproveRentalCommand) (*entities.ApproveRentalResult, error)
}

type RentalPaymentHandler struct {
	service RentalApprover
}

func NewRentalPaymentHandler(svc RentalApprover) *RentalPaymentHandler {
	return &RentalPaymentHandler{service: svc}
}

// ApproveRental handles POST /payments/approve-rental.
func (h *RentalPaymentHandler) ApproveRental(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req entities.ApproveRentalRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.service.ApproveRental(r.Context(), caller.Email, req.Command())
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.HistoryPending() {
		status = apperrors.StatusCode(apperrors.KindOf(res.Pending))
	}
	writeData(w, status, res)
}
