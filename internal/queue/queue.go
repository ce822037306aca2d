// Package queue carries analysis start requests over SQS.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geo-cli/internal/metrics"
)

// API is the subset of *sqs.Client the queue uses.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Message asks a worker to run one analysis.
type Message struct {
	AnalysisID string `json:"analysis_id"`
}

// NewClient builds an SQS client from the default AWS credential chain.
func NewClient(ctx context.Context, region string) (*sqs.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "queue: load aws config")
	}
	return sqs.NewFromConfig(cfg), nil
}

// Publisher enqueues start requests.
type Publisher struct {
	api API
	url string
}

// NewPublisher creates a Publisher for the queue at url.
func NewPublisher(api API, url string) *Publisher {
	return &Publisher{api: api, url: url}
}

// Publish enqueues a start request for analysisID.
func (p *Publisher) Publish(ctx context.Context, analysisID string) error {
	body, err := json.Marshal(Message{AnalysisID: analysisID})
	if err != nil {
		return eris.Wrap(err, "queue: marshal message")
	}
	_, err = p.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return eris.Wrapf(err, "queue: send message for %s", analysisID)
	}
	zap.L().Debug("queue: message sent", zap.String("analysis_id", analysisID))
	return nil
}

// Handler processes one message. A nil error deletes the message; any
// error leaves it for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Consumer long-polls a queue and hands each message to a Handler.
type Consumer struct {
	api     API
	url     string
	wait    int32
	backoff time.Duration
	handler Handler
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithWaitSeconds sets the long-poll wait, capped at 20 seconds by SQS.
func WithWaitSeconds(s int) Option {
	return func(c *Consumer) {
		c.wait = int32(min(max(s, 0), 20))
	}
}

// WithBackoff sets the pause after a failed receive.
func WithBackoff(d time.Duration) Option {
	return func(c *Consumer) { c.backoff = d }
}

// NewConsumer creates a Consumer for the queue at url.
func NewConsumer(api API, url string, handler Handler, opts ...Option) *Consumer {
	c := &Consumer{api: api, url: url, wait: 20, backoff: 2 * time.Second, handler: handler}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run polls until ctx is cancelled. Receive errors are logged and retried
// after the backoff.
func (c *Consumer) Run(ctx context.Context) error {
	zap.L().Info("queue: consumer started", zap.String("queue_url", c.url))
	for {
		if ctx.Err() != nil {
			zap.L().Info("queue: consumer stopped")
			return nil
		}
		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			zap.L().Warn("queue: receive failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
		}
	}
}

// Poll receives one batch and processes it, returning how many messages
// were handled successfully.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.url),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     c.wait,
	})
	if err != nil {
		return 0, eris.Wrap(err, "queue: receive messages")
	}

	handled := 0
	for _, m := range out.Messages {
		if c.process(ctx, m) {
			handled++
		}
	}
	return handled, nil
}

func (c *Consumer) process(ctx context.Context, m types.Message) bool {
	log := zap.L().With(zap.String("message_id", aws.ToString(m.MessageId)))

	var msg Message
	if err := json.Unmarshal([]byte(aws.ToString(m.Body)), &msg); err != nil || msg.AnalysisID == "" {
		log.Warn("queue: dropping malformed message", zap.Error(err))
		metrics.QueueMessages.WithLabelValues("malformed").Inc()
		c.delete(ctx, m, log)
		return false
	}
	log = log.With(zap.String("analysis_id", msg.AnalysisID))

	if err := c.handler(ctx, msg); err != nil {
		log.Warn("queue: handler failed, leaving message for redelivery", zap.Error(err))
		metrics.QueueMessages.WithLabelValues("retry").Inc()
		return false
	}
	metrics.QueueMessages.WithLabelValues("processed").Inc()
	c.delete(ctx, m, log)
	return true
}

func (c *Consumer) delete(ctx context.Context, m types.Message, log *zap.Logger) {
	_, err := c.api.DeleteMessage(context.WithoutCancel(ctx), &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.url),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		log.Warn("queue: delete failed", zap.Error(err))
	}
}
