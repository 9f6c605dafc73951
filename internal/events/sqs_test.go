package events

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sqsMock struct {
	sendFn     func(ctx context.Context, in *sqs.SendMessageInput) (*sqs.SendMessageOutput, error)
	queueURLFn func(ctx context.Context, in *sqs.GetQueueUrlInput) (*sqs.GetQueueUrlOutput, error)
}

func (m *sqsMock) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	return m.sendFn(ctx, in)
}

func (m *sqsMock) GetQueueUrl(ctx context.Context, in *sqs.GetQueueUrlInput, _ ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	return m.queueURLFn(ctx, in)
}

func TestSQSTransport_ResolvesQueueByName(t *testing.T) {
	var sent *sqs.SendMessageInput
	m := &sqsMock{
		queueURLFn: func(ctx context.Context, in *sqs.GetQueueUrlInput) (*sqs.GetQueueUrlOutput, error) {
			require.Equal(t, "rental-history", aws.ToString(in.QueueName))
			return &sqs.GetQueueUrlOutput{QueueUrl: aws.String("https://sqs.local/123/rental-history")}, nil
		},
		sendFn: func(ctx context.Context, in *sqs.SendMessageInput) (*sqs.SendMessageOutput, error) {
			sent = in
			return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
		},
	}

	tr, err := NewSQSTransport(context.Background(), m, "", "rental-history")
	require.NoError(t, err)

	err = tr.Send(context.Background(), Message{ID: "e1", Name: RentalHistorySave, Key: "ITEM1", Body: []byte(`{"a":1}`)})
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.Equal(t, "https://sqs.local/123/rental-history", aws.ToString(sent.QueueUrl))
	assert.Equal(t, `{"a":1}`, aws.ToString(sent.MessageBody))
	assert.Equal(t, RentalHistorySave, aws.ToString(sent.MessageAttributes["event_name"].StringValue))
	assert.Equal(t, "e1", aws.ToString(sent.MessageAttributes["event_id"].StringValue))
	assert.Nil(t, sent.MessageGroupId)
}

func TestSQSTransport_FIFOQueueSetsGroupAndDeduplication(t *testing.T) {
	var sent *sqs.SendMessageInput
	m := &sqsMock{
		sendFn: func(ctx context.Context, in *sqs.SendMessageInput) (*sqs.SendMessageOutput, error) {
			sent = in
			return &sqs.SendMessageOutput{}, nil
		},
	}

	tr, err := NewSQSTransport(context.Background(), m, "https://sqs.local/123/history.fifo", "")
	require.NoError(t, err)
	require.NoError(t, tr.Send(context.Background(), Message{ID: "e1", Name: RentalHistorySave, Key: "ITEM1"}))

	assert.Equal(t, "ITEM1", aws.ToString(sent.MessageGroupId))
	assert.Equal(t, "e1", aws.ToString(sent.MessageDeduplicationId))
}

func TestSQSTransport_QueueLookupFails(t *testing.T) {
	m := &sqsMock{
		queueURLFn: func(ctx context.Context, in *sqs.GetQueueUrlInput) (*sqs.GetQueueUrlOutput, error) {
			return nil, errors.New("queue does not exist")
		},
	}
	_, err := NewSQSTransport(context.Background(), m, "", "missing")
	require.Error(t, err)
}
