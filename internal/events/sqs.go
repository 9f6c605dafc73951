package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
}

type SQSTransport struct {
	client   SQSAPI
	queueURL string
	fifo     bool
}

// NewSQSTransport uses queueURL when given, otherwise resolves it from queueName.
func NewSQSTransport(ctx context.Context, client SQSAPI, queueURL, queueName string) (*SQSTransport, error) {
	if queueURL == "" {
		out, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
			QueueName: aws.String(queueName),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get queue URL for %s: %w", queueName, err)
		}
		queueURL = aws.ToString(out.QueueUrl)
	}
	return &SQSTransport{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}, nil
}

func (t *SQSTransport) Send(ctx context.Context, msg Message) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(msg.Body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"event_name": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.Name),
			},
			"event_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.ID),
			},
		},
	}
	if t.fifo {
		input.MessageGroupId = aws.String(msg.Key)
		input.MessageDeduplicationId = aws.String(msg.ID)
	}

	if _, err := t.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}
	return nil
}

func (t *SQSTransport) Close() error {
	return nil
}
