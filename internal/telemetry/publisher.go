package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"outbreakwatch/internal/types"
)

// SQSSender abstracts SendMessage for testability.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// queueAttributesGetter is the subset of the SQS client used by Ping.
type queueAttributesGetter interface {
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// PublishFailureRecorder is notified when an alert could not be sent.
type PublishFailureRecorder interface {
	RecordPublishFailure(ctx context.Context, areaKey string)
}

// AlertCreatedEventType is the "type" of every message on the alerts queue.
const AlertCreatedEventType = "outbreak.alert.created"

// AlertCreatedEvent is the message body consumers of the alerts queue read.
type AlertCreatedEvent struct {
	Type      string    `json:"type"`
	AlertID   string    `json:"alertId"`
	Area      string    `json:"area"`
	RiskLevel string    `json:"riskLevel"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// SQSAlertPublisher sends one message per newly created alert. It implements
// outbreak.AlertPublisher.
type SQSAlertPublisher struct {
	client   SQSSender
	queueURL string
	failures PublishFailureRecorder
	logger   *slog.Logger
}

// NewSQSAlertPublisher creates a publisher for queueURL. failures may be nil.
func NewSQSAlertPublisher(client SQSSender, queueURL string, failures PublishFailureRecorder, logger *slog.Logger) *SQSAlertPublisher {
	return &SQSAlertPublisher{
		client:   client,
		queueURL: queueURL,
		failures: failures,
		logger:   logger,
	}
}

// PublishAlertCreated serializes the alert and sends it. The area is carried
// as a message attribute so subscribers can filter without parsing bodies.
func (p *SQSAlertPublisher) PublishAlertCreated(ctx context.Context, alert types.Alert) error {
	body, err := json.Marshal(AlertCreatedEvent{
		Type:      AlertCreatedEventType,
		AlertID:   alert.ID,
		Area:      alert.AreaKey,
		RiskLevel: alert.RiskLevel,
		Message:   alert.Message,
		CreatedAt: alert.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("alert publisher: failed to marshal event: %w", err)
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"area": {DataType: aws.String("String"), StringValue: aws.String(alert.AreaKey)},
			"type": {DataType: aws.String("String"), StringValue: aws.String(AlertCreatedEventType)},
		},
	})
	if err != nil {
		if p.failures != nil {
			p.failures.RecordPublishFailure(ctx, alert.AreaKey)
		}
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to send alert to %s", p.queueURL), err)
	}

	p.logger.InfoContext(ctx, "alert published",
		"alert_id", alert.ID,
		"area", alert.AreaKey,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}

// Ping checks the queue is reachable. It is used as a health probe.
func (p *SQSAlertPublisher) Ping(ctx context.Context) error {
	getter, ok := p.client.(queueAttributesGetter)
	if !ok {
		return nil
	}
	_, err := getter.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(p.queueURL),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return fmt.Errorf("alerts queue unreachable: %w", err)
	}
	return nil
}
