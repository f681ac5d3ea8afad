package enrichment

import (
	"context"

	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/domain"
	"github.com/profiq/meetup-analysis-kinetica/internal/repository"
)

// AttributeStore looks up attributes of records already persisted
type AttributeStore struct {
	reader repository.AttributeReader
	log    *zap.Logger
}

// NewAttributeStore creates a store lookup over the given reader
func NewAttributeStore(reader repository.AttributeReader, log *zap.Logger) *AttributeStore {
	return &AttributeStore{
		reader: reader,
		log:    log,
	}
}

// LookupMany returns attributes for ids with at least one stored non-null
// attribute. Read failures yield an empty result; they never block ingestion.
func (s *AttributeStore) LookupMany(ctx context.Context, eventIDs []string) map[string]domain.Attributes {
	hits := make(map[string]domain.Attributes)
	if len(eventIDs) == 0 {
		return hits
	}

	found, err := s.reader.FindAttributes(ctx, eventIDs)
	if err != nil {
		s.log.Warn("Stored attribute lookup failed, falling back to remote lookup",
			zap.Int("event_count", len(eventIDs)),
			zap.Error(err))
		return hits
	}

	for id, attrs := range found {
		if attrs.IsEmpty() {
			continue
		}
		hits[id] = attrs
	}

	return hits
}
