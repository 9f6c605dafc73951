package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalstation/internal/db"
	"rentalstation/internal/entities"
	"rentalstation/internal/repository"
)

func TestAdminCreateStation(t *testing.T) {
	var saved *db.Station
	store := &stationStoreMock{
		createFn: func(ctx context.Context, s *db.Station) error {
			if s.ID == "dup" {
				return repository.ErrDuplicate
			}
			saved = s
			return nil
		},
	}
	svc := NewAdminService(store, newMemStore())

	st, err := svc.CreateStation(context.Background(), entities.CreateStationRequest{Name: " Central ", Latitude: 37.5, Longitude: 127})
	require.NoError(t, err)
	assert.NotEmpty(t, st.ID)
	assert.Equal(t, "Central", saved.Name)

	_, err = svc.CreateStation(context.Background(), entities.CreateStationRequest{ID: "dup", Name: "x"})
	assert.ErrorIs(t, err, ErrStationExists)
}

func TestAdminCreateItem(t *testing.T) {
	store := &stationStoreMock{getByIDFn: knownStation("ST-1")}
	rentals := newMemStore()
	svc := NewAdminService(store, rentals)
	svc.now = func() time.Time { return fixedNow }

	item, err := svc.CreateItem(context.Background(), entities.CreateItemRequest{Token: "ITEM1", StationID: "ST-1", Name: "Bike", Category: "bike"})
	require.NoError(t, err)
	assert.Equal(t, db.ItemStatusAvailable, item.Status)
	assert.Equal(t, int64(1), item.Version)
	assert.Equal(t, item.Token, rentals.item("ITEM1").Token)

	_, err = svc.CreateItem(context.Background(), entities.CreateItemRequest{Token: "ITEM1", StationID: "ST-1", Name: "Bike", Category: "bike"})
	assert.ErrorIs(t, err, ErrItemExists)

	_, err = svc.CreateItem(context.Background(), entities.CreateItemRequest{StationID: "ST-404", Name: "Bike", Category: "bike"})
	assert.ErrorIs(t, err, ErrStationNotFound)
}
