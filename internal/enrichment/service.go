// Package enrichment resolves event attributes through a pipeline-lifetime
// cache, the durable store and finally the Meetup API.
package enrichment

import (
	"context"

	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/cache"
	"github.com/profiq/meetup-analysis-kinetica/internal/domain"
	"github.com/profiq/meetup-analysis-kinetica/internal/metrics"
)

// StoreLookup finds attributes among already persisted records
type StoreLookup interface {
	LookupMany(ctx context.Context, eventIDs []string) map[string]domain.Attributes
}

// RemoteLookup fetches attributes from the remote service
type RemoteLookup interface {
	LookupMany(ctx context.Context, eventIDs []string) map[string]domain.LookupResult
}

// Resolver resolves attributes for a set of event ids
type Resolver interface {
	Resolve(ctx context.Context, eventIDs []string) map[string]domain.Attributes
}

// Service resolves attributes store-first with a remote fallback
type Service struct {
	cache  cache.Cache
	store  StoreLookup
	remote RemoteLookup
	log    *zap.Logger
}

// NewService creates a new enrichment service. A nil cache disables caching.
func NewService(c cache.Cache, store StoreLookup, remote RemoteLookup, log *zap.Logger) *Service {
	return &Service{
		cache:  c,
		store:  store,
		remote: remote,
		log:    log,
	}
}

// Resolve returns an attribute set for every distinct input id. Ids that
// cannot be resolved map to an all-absent set.
func (s *Service) Resolve(ctx context.Context, eventIDs []string) map[string]domain.Attributes {
	ids := distinct(eventIDs)
	resolved := make(map[string]domain.Attributes, len(ids))

	pending := ids
	if s.cache != nil {
		pending = pending[:0:0]
		for _, id := range ids {
			if attrs, ok := s.cache.Get(ctx, id); ok {
				resolved[id] = attrs
				continue
			}
			pending = append(pending, id)
		}
	}
	cacheHits := len(resolved)

	// any stored non-null attribute resolves the id, even partially
	var storeHits map[string]domain.Attributes
	if len(pending) > 0 {
		storeHits = s.store.LookupMany(ctx, pending)
	}
	remaining := make([]string, 0, len(pending))
	for _, id := range pending {
		if attrs, ok := storeHits[id]; ok {
			resolved[id] = attrs
			s.remember(ctx, id, attrs)
			continue
		}
		remaining = append(remaining, id)
	}

	remoteHits := 0
	if len(remaining) > 0 {
		for id, res := range s.remote.LookupMany(ctx, remaining) {
			if res.Status != domain.LookupFound {
				continue
			}
			resolved[id] = res.Attributes
			remoteHits++
			// an empty set is retried by later batches
			if !res.Attributes.IsEmpty() {
				s.remember(ctx, id, res.Attributes)
			}
		}
	}

	unresolved := 0
	for _, id := range ids {
		if _, ok := resolved[id]; !ok {
			resolved[id] = domain.Attributes{}
			unresolved++
		}
	}

	metrics.EnrichmentLookupsTotal.WithLabelValues("cache").Add(float64(cacheHits))
	metrics.EnrichmentLookupsTotal.WithLabelValues("store").Add(float64(len(pending) - len(remaining)))
	metrics.EnrichmentLookupsTotal.WithLabelValues("remote").Add(float64(remoteHits))
	metrics.EnrichmentLookupsTotal.WithLabelValues("unresolved").Add(float64(unresolved))

	s.log.Info("Resolved event attributes",
		zap.Int("event_count", len(ids)),
		zap.Int("cache_hits", cacheHits),
		zap.Int("store_hits", len(pending)-len(remaining)),
		zap.Int("remote_lookups", len(remaining)),
		zap.Int("remote_hits", remoteHits),
		zap.Int("unresolved", unresolved))

	return resolved
}

func (s *Service) remember(ctx context.Context, id string, attrs domain.Attributes) {
	if s.cache != nil {
		s.cache.Set(ctx, id, attrs)
	}
}

// distinct returns ids without duplicates, keeping first-seen order
func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
