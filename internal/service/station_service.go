package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"rentalstation/internal/db"
	"rentalstation/internal/entities"
	apperrors "rentalstation/internal/errors"
	"rentalstation/internal/repository"
)

const (
	DefaultNearbyRadius = 1000.0
	MaxNearbyRadius     = 10000.0

	nearbyLimit        = 50
	searchLimit        = 50
	recentLimit        = 10
	recentPaymentsScan = 50
)

var ErrStationNotFound = apperrors.ErrNotFound("Station not found")

// StationStore is the catalog side of stations. *repository.StationRepository implements it.
type StationStore interface {
	FindNearby(ctx context.Context, lat, lng, radius float64, limit int) ([]entities.StationSummary, error)
	Search(ctx context.Context, q string, limit int) ([]db.Station, error)
	GetByID(ctx context.Context, id string) (*db.Station, error)
	GetByIDs(ctx context.Context, ids []string) ([]db.Station, error)
	Create(ctx context.Context, s *db.Station) error
	CreateBookmark(ctx context.Context, userID, stationID string) (*db.Bookmark, bool, error)
	IsBookmarked(ctx context.Context, userID, stationID string) (bool, error)
}

type ImageSigner interface {
	SignedURL(ctx context.Context, key string) (string, error)
}

type StationService struct {
	stations StationStore
	rentals  repository.RentalStore
	images   ImageSigner
}

// NewStationService builds the station queries. images may be nil, in which case no image URLs are returned.
func NewStationService(stations StationStore, rentals repository.RentalStore, images ImageSigner) *StationService {
	return &StationService{stations: stations, rentals: rentals, images: images}
}

func (s *StationService) Nearby(ctx context.Context, q entities.NearbyQuery) ([]entities.StationSummary, error) {
	radius := q.Radius
	if radius <= 0 {
		radius = DefaultNearbyRadius
	}
	if radius > MaxNearbyRadius {
		radius = MaxNearbyRadius
	}
	return s.stations.FindNearby(ctx, q.Latitude, q.Longitude, radius, nearbyLimit)
}

func (s *StationService) Search(ctx context.Context, q entities.SearchQuery) ([]db.Station, error) {
	return s.stations.Search(ctx, strings.TrimSpace(q.Query), searchLimit)
}

func (s *StationService) Detail(ctx context.Context, userID, stationID string) (*entities.StationDetail, error) {
	station, err := s.getStation(ctx, stationID)
	if err != nil {
		return nil, err
	}

	detail := &entities.StationDetail{Station: *station}

	if station.ImageKey != "" && s.images != nil {
		url, err := s.images.SignedURL(ctx, station.ImageKey)
		if err != nil {
			logrus.WithError(err).WithField("stationId", stationID).Warn("Could not sign station image")
		} else {
			detail.ImageURL = url
		}
	}

	if detail.Bookmarked, err = s.stations.IsBookmarked(ctx, userID, stationID); err != nil {
		return nil, err
	}

	items, err := s.rentals.ListItemsByStation(ctx, stationID)
	if err != nil {
		return nil, err
	}
	detail.TotalItemCount = len(items)
	for _, it := range items {
		if it.Status == db.ItemStatusAvailable {
			detail.AvailableItemCount++
		}
	}
	return detail, nil
}

// Items lists the station's items, available ones first.
func (s *StationService) Items(ctx context.Context, stationID string) ([]entities.StationItem, error) {
	if _, err := s.getStation(ctx, stationID); err != nil {
		return nil, err
	}
	items, err := s.rentals.ListItemsByStation(ctx, stationID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := statusRank(items[i].Status), statusRank(items[j].Status)
		if ri != rj {
			return ri < rj
		}
		return items[i].Name < items[j].Name
	})

	out := make([]entities.StationItem, 0, len(items))
	for _, it := range items {
		out = append(out, entities.StationItem{
			Token:    it.Token,
			Name:     it.Name,
			Category: it.Category,
			Status:   it.Status,
		})
	}
	return out, nil
}

// Recent returns the stations the user most recently rented from, newest first.
func (s *StationService) Recent(ctx context.Context, userID string) ([]entities.RecentStation, error) {
	payments, err := s.rentals.ListPaymentsByUser(ctx, userID, recentPaymentsScan)
	if err != nil {
		return nil, err
	}

	var ids []string
	lastRented := map[string]time.Time{}
	for _, p := range payments {
		if p.StationID == "" {
			continue
		}
		if _, seen := lastRented[p.StationID]; seen {
			continue
		}
		lastRented[p.StationID] = p.PaymentDate
		ids = append(ids, p.StationID)
		if len(ids) == recentLimit {
			break
		}
	}

	stations, err := s.stations.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]entities.RecentStation, 0, len(stations))
	for _, st := range stations {
		out = append(out, entities.RecentStation{Station: st, LastRentedAt: lastRented[st.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastRentedAt.After(out[j].LastRentedAt)
	})
	return out, nil
}

func (s *StationService) Bookmark(ctx context.Context, userID, stationID string) (*entities.BookmarkResult, error) {
	b, created, err := s.stations.CreateBookmark(ctx, userID, stationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrStationNotFound
		}
		return nil, err
	}
	return &entities.BookmarkResult{Bookmark: *b, Created: created}, nil
}

func (s *StationService) getStation(ctx context.Context, id string) (*db.Station, error) {
	station, err := s.stations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrStationNotFound, id)
		}
		return nil, err
	}
	return station, nil
}

func statusRank(status string) int {
	switch status {
	case db.ItemStatusAvailable:
		return 0
	case db.ItemStatusRented:
		return 1
	default:
		return 2
	}
}
