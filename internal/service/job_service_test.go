package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalstation/internal/db"
	"rentalstation/internal/events"
)

func TestRelayPendingEvents(t *testing.T) {
	store := newMemStore()
	store.outbox["old-ok"] = db.OutboxEvent{ID: "old-ok", Name: events.RentalHistorySave, AggregateID: "A", Payload: `{}`, Status: db.OutboxStatusPending, CreatedAt: fixedNow.Add(-10 * time.Minute)}
	store.outbox["old-bad"] = db.OutboxEvent{ID: "old-bad", Name: events.RentalHistorySave, AggregateID: "B", Payload: `{}`, Status: db.OutboxStatusPending, CreatedAt: fixedNow.Add(-9 * time.Minute)}
	store.outbox["fresh"] = db.OutboxEvent{ID: "fresh", Name: events.RentalHistorySave, Status: db.OutboxStatusPending, CreatedAt: fixedNow.Add(-10 * time.Second)}
	store.outbox["done"] = db.OutboxEvent{ID: "done", Name: events.RentalHistorySave, Status: db.OutboxStatusPublished, CreatedAt: fixedNow.Add(-time.Hour)}

	pub := &publisherMock{publishFn: func(ctx context.Context, msg events.Message, policy events.RetryPolicy) error {
		if msg.ID == "old-bad" {
			return events.ErrPublishFailed
		}
		return nil
	}}

	svc := NewJobService(store, pub, events.DefaultRetryPolicy, time.Minute)
	svc.now = func() time.Time { return fixedNow }

	published, failed, err := svc.RelayPendingEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	assert.Equal(t, 1, failed)

	assert.Equal(t, db.OutboxStatusPublished, store.event("old-ok").Status)
	bad := store.event("old-bad")
	assert.Equal(t, db.OutboxStatusPending, bad.Status)
	assert.Equal(t, 1, bad.Attempts)
	assert.Equal(t, db.OutboxStatusPending, store.event("fresh").Status)
	assert.Len(t, pub.published(), 2)
}

type failingListStore struct{ *memStore }

func (failingListStore) ListPendingEvents(ctx context.Context, before time.Time, limit int) ([]db.OutboxEvent, error) {
	return nil, errors.New("throttled")
}

func TestRelayPendingEvents_ListFailure(t *testing.T) {
	svc := NewJobService(failingListStore{newMemStore()}, &publisherMock{}, events.DefaultRetryPolicy, time.Minute)
	_, _, err := svc.RelayPendingEvents(context.Background())
	require.Error(t, err)
}
