package sqs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	envConfig "github.com/profiq/meetup-analysis-kinetica/internal/config"
	"github.com/profiq/meetup-analysis-kinetica/internal/stream"
)

// API is the subset of the SQS client the source uses
type API interface {
	ReceiveMessage(ctx context.Context, input *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Source long-polls an SQS queue carrying RSVP payloads
type Source struct {
	api      API
	queueURL string
	config   envConfig.SQS
	log      *zap.Logger
}

// NewSource creates an SQS backed stream source
func NewSource(ctx context.Context, SQSConfig envConfig.SQS, log *zap.Logger) (*Source, error) {
	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(SQSConfig.Region),
	}

	var clientOpts []func(*sqs.Options)

	// Configure for local development with ElasticMQ
	if SQSConfig.Endpoint != "" {
		log.Info("Configuring SQS for local development",
			zap.String("endpoint", SQSConfig.Endpoint))
		configOpts = append(configOpts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))

		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(SQSConfig.Endpoint)
		})
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("SQS source created",
		zap.String("region", SQSConfig.Region),
		zap.String("queue_url", SQSConfig.QueueURL))

	return NewSourceFromAPI(sqs.NewFromConfig(cfg, clientOpts...), SQSConfig, log), nil
}

// NewSourceFromAPI creates a source over an existing SQS client
func NewSourceFromAPI(api API, SQSConfig envConfig.SQS, log *zap.Logger) *Source {
	if SQSConfig.MaxMessages <= 0 {
		SQSConfig.MaxMessages = 10
	}
	if SQSConfig.WaitTimeSeconds <= 0 {
		SQSConfig.WaitTimeSeconds = 20
	}

	return &Source{
		api:      api,
		queueURL: SQSConfig.QueueURL,
		config:   SQSConfig,
		log:      log,
	}
}

// Name identifies the source
func (s *Source) Name() string { return "sqs" }

// Receive long-polls the queue. An empty result is returned when the poll times out.
func (s *Source) Receive(ctx context.Context) ([]stream.Message, error) {
	result, err := s.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.queueURL),
		MaxNumberOfMessages: s.config.MaxMessages,
		WaitTimeSeconds:     s.config.WaitTimeSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages from SQS: %w", err)
	}

	messages := make([]stream.Message, 0, len(result.Messages))
	for _, msg := range result.Messages {
		receipt := msg.ReceiptHandle
		id := aws.ToString(msg.MessageId)

		ack := func(ctx context.Context) error {
			_, err := s.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(s.queueURL),
				ReceiptHandle: receipt,
			})
			if err != nil {
				return fmt.Errorf("failed to delete message %s: %w", id, err)
			}
			return nil
		}

		messages = append(messages, stream.NewMessage(id, []byte(aws.ToString(msg.Body)), ack))
	}

	return messages, nil
}

// Close is a no-op; the SQS client holds no long-lived connection
func (s *Source) Close() error { return nil }

var _ stream.Source = (*Source)(nil)
