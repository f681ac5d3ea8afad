package repository

import (
	"context"

	"github.com/profiq/meetup-analysis-kinetica/internal/domain"
)

// RecordWriter defines the storage sink for enriched records
type RecordWriter interface {
	// Insert writes a single record and reports the outcome as a status
	Insert(ctx context.Context, record *domain.Record) domain.WriteResult

	// InitSchema initializes the database schema (creates tables if they don't exist)
	InitSchema(ctx context.Context) error

	// Ping checks if the database connection is alive
	Ping(ctx context.Context) error

	// Close closes the repository and releases resources
	Close() error
}

// AttributeReader reads enrichment attributes of already stored records
type AttributeReader interface {
	// FindAttributes returns attributes for the event ids that have at least
	// one non-null attribute stored. Rows that cannot be decoded are skipped.
	FindAttributes(ctx context.Context, eventIDs []string) (map[string]domain.Attributes, error)
}
