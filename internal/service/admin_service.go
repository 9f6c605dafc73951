package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentalstation/internal/db"
	"rentalstation/internal/entities"
	apperrors "rentalstation/internal/errors"
	"rentalstation/internal/repository"
)

var (
	ErrStationExists = apperrors.ErrConflict("Station already exists")
	ErrItemExists    = apperrors.ErrConflict("Rental item already exists")
)

// AdminService seeds the catalog: stations in Postgres, items in the rental store.
type AdminService struct {
	stations StationStore
	rentals  repository.RentalStore
	now      func() time.Time
}

func NewAdminService(stations StationStore, rentals repository.RentalStore) *AdminService {
	return &AdminService{stations: stations, rentals: rentals, now: time.Now}
}

func (s *AdminService) CreateStation(ctx context.Context, req entities.CreateStationRequest) (*db.Station, error) {
	station := &db.Station{
		ID:        strings.TrimSpace(req.ID),
		Name:      strings.TrimSpace(req.Name),
		Address:   strings.TrimSpace(req.Address),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		ImageKey:  req.ImageKey,
	}
	if station.ID == "" {
		station.ID = uuid.NewString()
	}

	if err := s.stations.Create(ctx, station); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrStationExists, station.ID)
		}
		return nil, err
	}
	return station, nil
}

// CreateItem adds an available item to an existing station.
func (s *AdminService) CreateItem(ctx context.Context, req entities.CreateItemRequest) (*db.RentalItem, error) {
	if _, err := s.stations.GetByID(ctx, req.StationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrStationNotFound, req.StationID)
		}
		return nil, err
	}

	item := db.RentalItem{
		Token:     strings.TrimSpace(req.Token),
		StationID: req.StationID,
		Name:      strings.TrimSpace(req.Name),
		Category:  strings.TrimSpace(req.Category),
		Status:    db.ItemStatusAvailable,
		Version:   1,
		UpdatedAt: s.now().UTC(),
	}
	if item.Token == "" {
		item.Token = uuid.NewString()
	}

	if err := s.rentals.CreateItem(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrItemExists, item.Token)
		}
		return nil, err
	}
	return &item, nil
}
