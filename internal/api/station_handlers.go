package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"rentalstation/internal/db"
	"rentalstation/internal/entities"
	apperrors "rentalstation/internal/errors"
	"rentalstation/internal/service"
)

type StationQueries interface {
	Nearby(ctx context.Context, q entities.NearbyQuery) ([]entities.StationSummary, error)
	Search(ctx context.Context, q entities.SearchQuery) ([]db.Station, error)
	Detail(ctx context.Context, userID, stationID string) (*entities.StationDetail, error)
	Items(ctx context.Context, stationID string) ([]entities.StationItem, error)
	Recent(ctx context.Context, userID string) ([]entities.RecentStation, error)
	Bookmark(ctx context.Context, userID, stationID string) (*entities.BookmarkResult, error)
}

type StationHandler struct {
	service StationQueries
}

func NewStationHandler(svc StationQueries) *StationHandler {
	return &StationHandler{service: svc}
}

func (h *StationHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q, err := parseNearbyQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stations, err := h.service.Nearby(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stations)
}

func (h *StationHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := entities.SearchQuery{Query: strings.TrimSpace(r.URL.Query().Get("q"))}
	if err := validateStruct(q); err != nil {
		writeError(w, r, err)
		return
	}
	stations, err := h.service.Search(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stations)
}

func (h *StationHandler) Detail(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	detail, err := h.service.Detail(r.Context(), caller.Email, mux.Vars(r)["stationId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, detail)
}

func (h *StationHandler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Items(r.Context(), mux.Vars(r)["stationId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (h *StationHandler) Recent(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	stations, err := h.service.Recent(r.Context(), caller.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stations)
}

// Bookmark answers 201 for a new bookmark and 200 when it already existed.
func (h *StationHandler) Bookmark(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	res, err := h.service.Bookmark(r.Context(), caller.Email, mux.Vars(r)["stationId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeData(w, status, res)
}

func parseNearbyQuery(r *http.Request) (entities.NearbyQuery, error) {
	values := r.URL.Query()

	var missing []string
	for _, k := range []string{"lat", "lng"} {
		if values.Get(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return entities.NearbyQuery{}, apperrors.ErrValidation("Missing required parameters: " + strings.Join(missing, ", "))
	}

	q := entities.NearbyQuery{Radius: service.DefaultNearbyRadius}
	var err error
	if q.Latitude, err = strconv.ParseFloat(values.Get("lat"), 64); err != nil {
		return q, apperrors.Wrap(apperrors.KindValidation, "lat must be a number", err)
	}
	if q.Longitude, err = strconv.ParseFloat(values.Get("lng"), 64); err != nil {
		return q, apperrors.Wrap(apperrors.KindValidation, "lng must be a number", err)
	}
	if raw := values.Get("radius"); raw != "" {
		if q.Radius, err = strconv.ParseFloat(raw, 64); err != nil {
			return q, apperrors.Wrap(apperrors.KindValidation, "radius must be a number", err)
		}
	}
	return q, validateStruct(q)
}
