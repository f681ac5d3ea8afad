// Package kafka consumes RSVP payloads from a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/stream"
)

// Reader is the subset of kafka.Reader the source uses
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures the Kafka source
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Source fetches one message per Receive. Offsets are committed on Ack,
// so a message whose write was never attempted is redelivered after a restart.
type Source struct {
	reader Reader
	log    *zap.Logger
}

// NewSource creates a consumer-group reader for the topic
func NewSource(cfg Config, log *zap.Logger) (*Source, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	log.Info("Kafka source created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.GroupID))

	return NewSourceFromReader(reader, log), nil
}

// NewSourceFromReader creates a source over an existing reader
func NewSourceFromReader(reader Reader, log *zap.Logger) *Source {
	return &Source{reader: reader, log: log}
}

// Name identifies the source
func (s *Source) Name() string { return "kafka" }

// Receive fetches the next message without committing it
func (s *Source) Receive(ctx context.Context) ([]stream.Message, error) {
	msg, err := s.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stream.ErrClosed
		}
		return nil, fmt.Errorf("failed to fetch message from kafka: %w", err)
	}

	id := msg.Topic + "/" + strconv.Itoa(msg.Partition) + "/" + strconv.FormatInt(msg.Offset, 10)
	ack := func(ctx context.Context) error {
		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("failed to commit offset %s: %w", id, err)
		}
		return nil
	}

	return []stream.Message{stream.NewMessage(id, msg.Value, ack)}, nil
}

// Close closes the reader
func (s *Source) Close() error {
	if err := s.reader.Close(); err != nil {
		return fmt.Errorf("failed to close kafka reader: %w", err)
	}
	return nil
}

var _ stream.Source = (*Source)(nil)
