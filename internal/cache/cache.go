// Package cache keeps enrichment attributes already resolved during the
// pipeline's lifetime so repeated event ids skip the store and the Meetup API.
package cache

import (
	"context"

	"github.com/profiq/meetup-analysis-kinetica/internal/domain"
)

// Cache stores attribute sets keyed by event id
type Cache interface {
	Get(ctx context.Context, eventID string) (domain.Attributes, bool)
	Set(ctx context.Context, eventID string, attrs domain.Attributes)
	Stats() Stats
}

// Stats describes cache usage
type Stats struct {
	Backend string `json:"backend"`
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}
