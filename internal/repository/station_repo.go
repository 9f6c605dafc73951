package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/lib/pq"

	"rentalstation/internal/db"
	"rentalstation/internal/entities"
	"rentalstation/internal/utils"
)

type StationRepository struct {
	DB *sql.DB
}

func NewStationRepository(conn *sql.DB) *StationRepository {
	return &StationRepository{DB: conn}
}

const stationColumns = `id, name, address, latitude, longitude, image_key, created_at`

// FindNearby returns up to limit stations within radius meters of (lat, lng), nearest first.
func (r *StationRepository) FindNearby(ctx context.Context, lat, lng, radius float64, limit int) ([]entities.StationSummary, error) {
	minLat, maxLat, minLng, maxLng := utils.BoundingBox(lat, lng, radius)

	// $3 > $4 means the box crosses the antimeridian.
	query := `
	SELECT ` + stationColumns + `
	FROM stations
	WHERE latitude BETWEEN $1 AND $2
	  AND (longitude BETWEEN $3 AND $4 OR ($3 > $4 AND (longitude >= $3 OR longitude <= $4)))`

	rows, err := r.DB.QueryContext(ctx, query, minLat, maxLat, minLng, maxLng)
	if err != nil {
		return nil, fmt.Errorf("error querying nearby stations: %w", err)
	}
	defer rows.Close()

	candidates, err := scanStations(rows)
	if err != nil {
		return nil, err
	}
	return nearestWithin(candidates, lat, lng, radius, limit), nil
}

// nearestWithin drops the bounding-box corners outside the circle and orders by distance.
func nearestWithin(candidates []db.Station, lat, lng, radius float64, limit int) []entities.StationSummary {
	out := []entities.StationSummary{}
	for _, s := range candidates {
		d := utils.DistanceMeters(lat, lng, s.Latitude, s.Longitude)
		if d <= radius {
			out = append(out, entities.StationSummary{Station: s, Distance: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *StationRepository) Search(ctx context.Context, q string, limit int) ([]db.Station, error) {
	pattern := "%" + utils.EscapeLike(q) + "%"
	query := `
	SELECT ` + stationColumns + `
	FROM stations
	WHERE name ILIKE $1 OR address ILIKE $1
	ORDER BY name
	LIMIT $2`

	rows, err := r.DB.QueryContext(ctx, query, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("error searching stations: %w", err)
	}
	defer rows.Close()
	return scanStations(rows)
}

func (r *StationRepository) GetByID(ctx context.Context, id string) (*db.Station, error) {
	var s db.Station
	err := r.DB.QueryRowContext(ctx, `SELECT `+stationColumns+` FROM stations WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Address, &s.Latitude, &s.Longitude, &s.ImageKey, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying station %s: %w", id, err)
	}
	return &s, nil
}

// GetByIDs returns the stations that exist among ids, in no particular order.
func (r *StationRepository) GetByIDs(ctx context.Context, ids []string) ([]db.Station, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+stationColumns+` FROM stations WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("error querying stations by id: %w", err)
	}
	defer rows.Close()
	return scanStations(rows)
}

func (r *StationRepository) Create(ctx context.Context, s *db.Station) error {
	query := `
		INSERT INTO stations (id, name, address, latitude, longitude, image_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	err := r.DB.QueryRowContext(ctx, query, s.ID, s.Name, s.Address, s.Latitude, s.Longitude, s.ImageKey).
		Scan(&s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("error inserting station: %w", err)
	}
	return nil
}

// CreateBookmark inserts the bookmark if missing. The boolean reports whether a new row was written.
func (r *StationRepository) CreateBookmark(ctx context.Context, userID, stationID string) (*db.Bookmark, bool, error) {
	b := &db.Bookmark{UserID: userID, StationID: stationID}

	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO bookmarks (user_id, station_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, station_id) DO NOTHING
		RETURNING created_at`, userID, stationID).Scan(&b.CreatedAt)
	switch {
	case err == nil:
		return b, true, nil
	case isForeignKeyViolation(err):
		return nil, false, ErrNotFound
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, fmt.Errorf("error inserting bookmark: %w", err)
	}

	err = r.DB.QueryRowContext(ctx,
		`SELECT created_at FROM bookmarks WHERE user_id = $1 AND station_id = $2`, userID, stationID).
		Scan(&b.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("error reading existing bookmark: %w", err)
	}
	return b, false, nil
}

func (r *StationRepository) IsBookmarked(ctx context.Context, userID, stationID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookmarks WHERE user_id = $1 AND station_id = $2)`, userID, stationID).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking bookmark: %w", err)
	}
	return exists, nil
}

func scanStations(rows *sql.Rows) ([]db.Station, error) {
	stations := []db.Station{}
	for rows.Next() {
		var s db.Station
		if err := rows.Scan(&s.ID, &s.Name, &s.Address, &s.Latitude, &s.Longitude, &s.ImageKey, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning station: %w", err)
		}
		stations = append(stations, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating stations: %w", err)
	}
	return stations, nil
}
