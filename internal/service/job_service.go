package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"rentalstation/internal/events"
	"rentalstation/internal/metrics"
	"rentalstation/internal/repository"
)

const relayBatchSize = 100

type JobService struct {
	store     repository.RentalStore
	publisher EventPublisher
	policy    events.RetryPolicy
	minAge    time.Duration
	now       func() time.Time
}

func NewJobService(store repository.RentalStore, publisher EventPublisher, policy events.RetryPolicy, minAge time.Duration) *JobService {
	return &JobService{store: store, publisher: publisher, policy: policy, minAge: minAge, now: time.Now}
}

// RelayPendingEvents re-publishes outbox entries that stayed pending for longer than minAge.
// Entries younger than that may still be in flight from the request that wrote them.
func (s *JobService) RelayPendingEvents(ctx context.Context) (published, failed int, err error) {
	before := s.now().UTC().Add(-s.minAge)

	pending, err := s.store.ListPendingEvents(ctx, before, relayBatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("outbox relay: failed to list pending events: %w", err)
	}
	if len(pending) == 0 {
		logrus.Debug("Outbox relay: nothing to publish")
		return 0, 0, nil
	}

	logrus.Infof("Outbox relay: found %d pending events", len(pending))

	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			return published, failed, err
		}
		log := logrus.WithFields(logrus.Fields{"eventId": e.ID, "event": e.Name, "attempts": e.Attempts})

		msg := events.Message{ID: e.ID, Name: e.Name, Key: e.AggregateID, Body: []byte(e.Payload)}
		if err := s.publisher.Publish(ctx, msg, s.policy); err != nil {
			failed++
			metrics.OutboxRelayTotal.WithLabelValues("failed").Inc()
			log.WithError(err).Warn("Outbox relay: publish failed")
			if err := s.store.RecordEventAttempt(ctx, e.ID); err != nil {
				log.WithError(err).Warn("Outbox relay: failed to record attempt")
			}
			continue
		}

		if err := s.store.MarkEventPublished(ctx, e.ID, s.now().UTC()); err != nil {
			log.WithError(err).Warn("Outbox relay: published but could not mark entry")
		}
		published++
		metrics.OutboxRelayTotal.WithLabelValues("published").Inc()
	}

	logrus.Infof("Outbox relay: published %d, failed %d", published, failed)
	return published, failed, nil
}
