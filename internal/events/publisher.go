package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// Publisher delivers reminder change notifications.
type Publisher interface {
	PublishReminderSent(ctx context.Context, evt ReminderSentV1) error
}

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends enveloped events to an SQS queue.
type SQSPublisher struct {
	client   sqsAPI
	queueURL string
}

// NewSQSPublisher creates a publisher around the provided SQS client.
func NewSQSPublisher(client sqsAPI, queueURL string) *SQSPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// PublishReminderSent enqueues the envelope with its type and id as message attributes.
func (p *SQSPublisher) PublishReminderSent(ctx context.Context, evt ReminderSentV1) error {
	env, err := evt.Envelope()
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(env.EventType)},
			"event_id":   {DataType: aws.String("String"), StringValue: aws.String(env.EventID.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	return nil
}

// LogPublisher writes events to the log. Used when no queue is configured.
type LogPublisher struct {
	logger *logging.Logger
}

// NewLogPublisher creates a log-only publisher.
func NewLogPublisher(logger *logging.Logger) *LogPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogPublisher{logger: logger}
}

// PublishReminderSent logs the event.
func (p *LogPublisher) PublishReminderSent(ctx context.Context, evt ReminderSentV1) error {
	p.logger.Info("reminder sent event", "event_type", evt.EventType(), "appointment_id", evt.AppointmentID, "reminder", evt.Kind, "channels", evt.Channels)
	return nil
}

var (
	_ Publisher = (*SQSPublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
)
