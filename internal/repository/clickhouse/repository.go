package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/domain"
	"github.com/profiq/meetup-analysis-kinetica/internal/repository"
)

const defaultTable = "event_rsvp"

// Repository implements RecordWriter and AttributeReader for ClickHouse
type Repository struct {
	client *Client
	table  string
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse repository
func NewRepository(client *Client, table string, log *zap.Logger) *Repository {
	if table == "" {
		table = defaultTable
	}

	return &Repository{
		client: client,
		table:  table,
		log:    log,
	}
}

// InitSchema initializes the ClickHouse schema with ReplacingMergeTree engine
func (r *Repository) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		event_id String,
		name String,
		url String,
		event_timestamp Nullable(Int64),
		lat Nullable(Float64),
		lon Nullable(Float64),
		rsvp_id Int64,
		response UInt8,
		rsvp_timestamp Int64,
		city Nullable(String),
		country Nullable(String),
		group_members Nullable(Int64),
		group_events Nullable(Int32),
		processed_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (event_id, rsvp_id)
	ORDER BY (event_id, rsvp_id)
	PARTITION BY toYYYYMM(toDateTime(intDiv(rsvp_timestamp, 1000)))
	SETTINGS index_granularity = 8192
	`, r.table)

	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s table: %w", r.table, err)
	}

	r.log.Info("ClickHouse schema initialized successfully", zap.String("table", r.table))
	return nil
}

// Insert writes one record. Failures are returned as a status, never as an error.
func (r *Repository) Insert(ctx context.Context, record *domain.Record) domain.WriteResult {
	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO "+r.table)
	if err != nil {
		return writeFailure(fmt.Errorf("failed to prepare insert: %w", err))
	}

	if record.Version == 0 {
		record.Version = uint64(time.Now().UnixNano())
	}
	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now()
	}

	var attrs domain.Attributes
	if record.Attributes != nil {
		attrs = *record.Attributes
	}

	err = batch.Append(
		record.EventID,
		record.Name,
		record.URL,
		record.EventTimestamp,
		record.Lat,
		record.Lon,
		record.RSVPID,
		record.Response,
		record.RSVPTimestamp,
		attrs.City,
		attrs.Country,
		attrs.GroupMembers,
		attrs.GroupEvents,
		record.ProcessedAt,
		record.Version,
	)
	if err != nil {
		_ = batch.Abort()
		return writeFailure(fmt.Errorf("failed to append record: %w", err))
	}

	if err := batch.Send(); err != nil {
		return writeFailure(fmt.Errorf("failed to send record: %w", err))
	}

	return domain.WriteResult{Status: domain.WriteCommitted}
}

// writeFailure classifies an insert error. Duplicate key conflicts are
// idempotent and reported separately from real failures.
func writeFailure(err error) domain.WriteResult {
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "duplicate") {
		return domain.WriteResult{Status: domain.WriteDuplicate, Message: msg}
	}
	return domain.WriteResult{Status: domain.WriteFailed, Message: msg}
}

// attributesQuery selects one row per event id carrying any stored attribute
func (r *Repository) attributesQuery() string {
	return fmt.Sprintf(`
		SELECT
			event_id,
			any(city) AS city,
			any(country) AS country,
			any(group_members) AS group_members,
			any(group_events) AS group_events
		FROM %s FINAL
		WHERE has(?, event_id)
			AND (city IS NOT NULL OR country IS NOT NULL
				OR group_members IS NOT NULL OR group_events IS NOT NULL)
		GROUP BY event_id
	`, r.table)
}

// FindAttributes returns stored attributes for the given event ids
func (r *Repository) FindAttributes(ctx context.Context, eventIDs []string) (map[string]domain.Attributes, error) {
	found := make(map[string]domain.Attributes)
	if len(eventIDs) == 0 {
		return found, nil
	}

	rows, err := r.client.Conn().Query(ctx, r.attributesQuery(), eventIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query stored attributes: %w", err)
	}
	defer func(rows driver.Rows) {
		err := rows.Close()
		if err != nil {
			r.log.Error("Failed to close attribute rows", zap.Error(err))
		}
	}(rows)

	for rows.Next() {
		var (
			eventID string
			attrs   domain.Attributes
		)
		if err := rows.Scan(&eventID, &attrs.City, &attrs.Country, &attrs.GroupMembers, &attrs.GroupEvents); err != nil {
			r.log.Warn("Skipping undecodable attribute row", zap.Error(err))
			continue
		}
		if !validText(attrs.City) || !validText(attrs.Country) {
			r.log.Warn("Skipping attribute row with invalid text encoding",
				zap.String("event_id", eventID))
			continue
		}
		found[eventID] = attrs
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attribute rows: %w", err)
	}

	return found, nil
}

func validText(s *string) bool {
	return s == nil || utf8.ValidString(*s)
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.client.Close()
}

var (
	_ repository.RecordWriter    = (*Repository)(nil)
	_ repository.AttributeReader = (*Repository)(nil)
)
