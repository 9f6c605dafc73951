package events

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

type KafkaTransport struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaProducerConfig(timeout time.Duration) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Timeout = timeout
	cfg.Producer.Retry.Max = 0
	return cfg
}

func NewKafkaTransport(brokers []string, topic string) (*KafkaTransport, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewKafkaProducerConfig(10*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaTransportWithProducer(producer, topic), nil
}

func NewKafkaTransportWithProducer(producer sarama.SyncProducer, topic string) *KafkaTransport {
	return &KafkaTransport{producer: producer, topic: topic}
}

func (t *KafkaTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := t.producer.SendMessage(&sarama.ProducerMessage{
		Topic: t.topic,
		Key:   sarama.StringEncoder(msg.Key),
		Value: sarama.ByteEncoder(msg.Body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_name"), Value: []byte(msg.Name)},
			{Key: []byte("event_id"), Value: []byte(msg.ID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send kafka message to %s: %w", t.topic, err)
	}
	return nil
}

func (t *KafkaTransport) Close() error {
	return t.producer.Close()
}
