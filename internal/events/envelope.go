package events

import (
	"encoding/json"
	"fmt"
	"time"

	"rentalstation/internal/entities"
)

const (
	RentalHistorySave = "RentalHistorySave"

	dataTypeRentalHistory = "rental_history"
)

// NewEnvelope wraps data in the standard event envelope.
func NewEnvelope[T any](name, sender, dataType string, data T, sendingAt time.Time) entities.EventMessage[T] {
	return entities.EventMessage[T]{
		Event: entities.EventName{Name: name},
		MetaData: entities.EventMetaData{
			Sender:    sender,
			SendingAt: sendingAt.UTC().Format(time.RFC3339),
		},
		Body: entities.EventBody[T]{
			Type: dataType,
			Data: data,
		},
	}
}

// EncodeRentalHistory builds the RentalHistorySave message body.
func EncodeRentalHistory[T any](sender string, history T, sendingAt time.Time) ([]byte, error) {
	b, err := json.Marshal(NewEnvelope(RentalHistorySave, sender, dataTypeRentalHistory, history, sendingAt))
	if err != nil {
		return nil, fmt.Errorf("error encoding %s event: %w", RentalHistorySave, err)
	}
	return b, nil
}
