package db

import "time"

const (
	ItemStatusAvailable   = "available"
	ItemStatusRented      = "rented"
	ItemStatusMaintenance = "maintenance"

	HistoryStatusRented = "Rented"

	PaymentTypeCreditCard = "credit_card"

	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

// RentalItem is a physical asset held by a station. Version is bumped on every write.
type RentalItem struct {
	Token     string    `dynamodbav:"token" json:"token"`
	StationID string    `dynamodbav:"stationId" json:"stationId"`
	Name      string    `dynamodbav:"name" json:"name"`
	Category  string    `dynamodbav:"category" json:"category"`
	Status    string    `dynamodbav:"status" json:"status"`
	Version   int64     `dynamodbav:"version" json:"-"`
	UpdatedAt time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

type RentalPayment struct {
	ID              string    `dynamodbav:"id" json:"id"`
	Type            string    `dynamodbav:"type" json:"type"`
	TotalAmount     int64     `dynamodbav:"totalAmount" json:"totalAmount"`
	PaymentDate     time.Time `dynamodbav:"paymentDate" json:"paymentDate"`
	OrderID         string    `dynamodbav:"orderId" json:"orderId"`
	RentalHistoryID string    `dynamodbav:"rentalHistoryId" json:"rentalHistoryId"`
	UserID          string    `dynamodbav:"userId" json:"userId"`
	PaymentKey      string    `dynamodbav:"paymentKey" json:"paymentKey"`
	StationID       string    `dynamodbav:"stationId" json:"stationId"`
}

// RentalHistory is emitted as an event; a downstream consumer owns its storage.
type RentalHistory struct {
	UserID          string     `json:"userId"`
	Status          string     `json:"status"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         time.Time  `json:"endTime"`
	ReturnTime      *time.Time `json:"returnTime"`
	RentalTime      float64    `json:"rentalTime"`
	RentalItemID    string     `json:"rentalItemId"`
	RentalStationID string     `json:"rentalStationId"`
	ReturnStationID *string    `json:"returnStationId"`
}

type OutboxEvent struct {
	ID          string     `dynamodbav:"id"`
	Name        string     `dynamodbav:"name"`
	AggregateID string     `dynamodbav:"aggregateId"`
	Payload     string     `dynamodbav:"payload"`
	Status      string     `dynamodbav:"status"`
	Attempts    int        `dynamodbav:"attempts"`
	CreatedAt   time.Time  `dynamodbav:"createdAt"`
	PublishedAt *time.Time `dynamodbav:"publishedAt,omitempty"`
}

type Station struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	ImageKey  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

type Bookmark struct {
	UserID    string    `json:"userId"`
	StationID string    `json:"stationId"`
	CreatedAt time.Time `json:"createdAt"`
}

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Phone        string
	Role         string
	CreatedAt    time.Time
}
