package consumer

import (
	"context"

	"github.com/profiq/meetup-analysis-kinetica/internal/domain"
)

// MessageParser defines the interface for parsing raw message bytes into events
type MessageParser interface {
	Parse(body []byte) (*domain.RawEvent, error)
}

// AttributeResolver resolves enrichment attributes for a batch of event ids
type AttributeResolver interface {
	Resolve(ctx context.Context, eventIDs []string) map[string]domain.Attributes
}

// RecordInserter writes one record at a time
type RecordInserter interface {
	Insert(ctx context.Context, record *domain.Record) domain.WriteResult
}
