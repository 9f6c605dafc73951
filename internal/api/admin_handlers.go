package api

import (
	"context"
	"net/http"

	"rentalstation/internal/db"
	"rentalstation/internal/entities"
)

type CatalogAdmin interface {
	CreateStation(ctx context.Context, req entities.CreateStationRequest) (*db.Station, error)
	CreateItem(ctx context.Context, req entities.CreateItemRequest) (*db.RentalItem, error)
}

type AdminHandler struct {
	service CatalogAdmin
}

func NewAdminHandler(svc CatalogAdmin) *AdminHandler {
	return &AdminHandler{service: svc}
}

func (h *AdminHandler) CreateStation(w http.ResponseWriter, r *http.Request) {
	var req entities.CreateStationRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	station, err := h.service.CreateStation(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, station)
}

func (h *AdminHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req entities.CreateItemRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, item)
}
