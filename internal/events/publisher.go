package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"rentalstation/internal/metrics"
)

// ErrPublishFailed is returned once every attempt allowed by the retry policy has failed.
var ErrPublishFailed = errors.New("event publish failed")

// Message is an encoded event ready to hand to a transport.
type Message struct {
	ID   string
	Name string
	Key  string
	Body []byte
}

// Transport delivers one message to a broker without retrying.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: time.Second}

type Publisher struct {
	transport Transport
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewPublisher(transport Transport) *Publisher {
	return &Publisher{transport: transport, sleep: sleepContext}
}

// Publish sends msg, retrying up to policy.Attempts times with policy.Delay between tries.
func (p *Publisher) Publish(ctx context.Context, msg Message, policy RetryPolicy) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = p.transport.Send(ctx, msg)
		if err == nil {
			metrics.EventPublishTotal.WithLabelValues(msg.Name, "success").Inc()
			return nil
		}
		metrics.EventPublishTotal.WithLabelValues(msg.Name, "error").Inc()
		logrus.WithFields(logrus.Fields{
			"event":   msg.Name,
			"eventId": msg.ID,
			"attempt": attempt,
		}).Warnf("Error publishing event, attempt %d/%d: %v", attempt, attempts, err)

		if attempt == attempts {
			break
		}
		if serr := p.sleep(ctx, policy.Delay); serr != nil {
			return fmt.Errorf("%w: %s interrupted: %w", ErrPublishFailed, msg.Name, serr)
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrPublishFailed, msg.Name, attempts, err)
}

func (p *Publisher) Close() error {
	return p.transport.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
