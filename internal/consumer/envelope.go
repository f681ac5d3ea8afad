package consumer

import (
	"context"

	"github.com/profiq/meetup-analysis-kinetica/internal/domain"
	"github.com/profiq/meetup-analysis-kinetica/internal/stream"
)

// Envelope pairs a parsed record with the message it came from
type Envelope struct {
	Record  *domain.Record
	message stream.Message
}

// NewEnvelope creates a new message envelope
func NewEnvelope(record *domain.Record, message stream.Message) *Envelope {
	return &Envelope{
		Record:  record,
		message: message,
	}
}

// MessageID returns the source message id
func (e *Envelope) MessageID() string {
	return e.message.ID
}

// Ack acknowledges the source message once its write has been attempted
func (e *Envelope) Ack(ctx context.Context) error {
	return e.message.Ack(ctx)
}
