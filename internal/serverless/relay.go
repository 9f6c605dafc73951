package serverless

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
)

type OutboxRelayer interface {
	RelayPendingEvents(ctx context.Context) (published, failed int, err error)
}

type RelayResult struct {
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// RelayHandler runs one outbox relay pass per scheduled (EventBridge) invocation.
func RelayHandler(relayer OutboxRelayer) func(ctx context.Context, event events.CloudWatchEvent) (RelayResult, error) {
	return func(ctx context.Context, event events.CloudWatchEvent) (RelayResult, error) {
		logrus.WithFields(logrus.Fields{"eventId": event.ID, "source": event.Source}).Debug("Scheduled outbox relay")
		published, failed, err := relayer.RelayPendingEvents(ctx)
		if err != nil {
			return RelayResult{}, err
		}
		return RelayResult{Published: published, Failed: failed}, nil
	}
}
