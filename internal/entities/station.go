package entities

import (
	"time"

	"rentalstation/internal/db"
)

type NearbyQuery struct {
	Latitude  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"lng" validate:"gte=-180,lte=180"`
	Radius    float64 `json:"radius" validate:"gt=0"`
}

type SearchQuery struct {
	Query string `json:"q" validate:"required,max=100"`
}

type StationSummary struct {
	db.Station
	Distance float64 `json:"distance"`
}

type StationDetail struct {
	db.Station
	ImageURL           string `json:"imageUrl"`
	Bookmarked         bool   `json:"bookmarked"`
	AvailableItemCount int    `json:"availableItemCount"`
	TotalItemCount     int    `json:"totalItemCount"`
}

type StationItem struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   string `json:"status"`
}

type RecentStation struct {
	db.Station
	LastRentedAt time.Time `json:"lastRentedAt"`
}

type BookmarkResult struct {
	db.Bookmark
	Created bool `json:"created"`
}

type CreateStationRequest struct {
	ID        string  `json:"id"`
	Name      string  `json:"name" validate:"required,max=200"`
	Address   string  `json:"address" validate:"max=500"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	ImageKey  string  `json:"imageKey"`
}

type CreateItemRequest struct {
	Token     string `json:"token"`
	StationID string `json:"stationId" validate:"required"`
	Name      string `json:"name" validate:"required,max=200"`
	Category  string `json:"category" validate:"required,max=100"`
}
