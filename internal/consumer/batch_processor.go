package consumer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/domain"
	"github.com/profiq/meetup-analysis-kinetica/internal/metrics"
	"github.com/profiq/meetup-analysis-kinetica/internal/stream"
)

const shutdownFlushTimeout = 30 * time.Second

// BatchProcessorConfig configures the batch processor
type BatchProcessorConfig struct {
	BatchSize       int
	FlushOnShutdown bool
}

type processorStats struct {
	malformed  atomic.Int64
	committed  atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
	batches    atomic.Int64
}

// BatchProcessor buffers parsed records, enriches each full batch with a
// single resolve call and writes the records one by one
type BatchProcessor struct {
	parser   MessageParser
	resolver AttributeResolver
	writer   RecordInserter
	config   BatchProcessorConfig
	stats    processorStats
	log      *zap.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(parser MessageParser, resolver AttributeResolver, writer RecordInserter, config BatchProcessorConfig, log *zap.Logger) *BatchProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	return &BatchProcessor{
		parser:   parser,
		resolver: resolver,
		writer:   writer,
		config:   config,
		log:      log,
	}
}

// Start consumes the queue until ctx is done or the queue is closed.
// Batches are processed only when full; a partial buffer is discarded on
// exit unless FlushOnShutdown is set.
func (p *BatchProcessor) Start(ctx context.Context, in <-chan stream.Message) {
	batch := make([]*Envelope, 0, p.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Batch processor shutting down")
			p.finish(ctx, batch)
			return

		case msg, ok := <-in:
			if !ok {
				p.log.Info("Batch processor input channel closed")
				p.finish(ctx, batch)
				return
			}
			metrics.QueueDepth.Set(float64(len(in)))

			envelope := p.parseMessage(ctx, msg)
			if envelope == nil {
				continue
			}

			batch = append(batch, envelope)
			if len(batch) == p.config.BatchSize {
				p.processBatch(ctx, batch)
				batch = make([]*Envelope, 0, p.config.BatchSize)
			}
		}
	}
}

func (p *BatchProcessor) finish(ctx context.Context, batch []*Envelope) {
	if len(batch) == 0 {
		return
	}

	if !p.config.FlushOnShutdown {
		p.log.Warn("Discarding partial batch on shutdown",
			zap.Int("envelope_count", len(batch)))
		return
	}

	p.log.Info("Flushing partial batch on shutdown", zap.Int("envelope_count", len(batch)))
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
	defer cancel()
	p.processBatch(flushCtx, batch)
}

// parseMessage decodes a message. Malformed messages are acked and dropped.
func (p *BatchProcessor) parseMessage(ctx context.Context, msg stream.Message) *Envelope {
	ev, err := p.parser.Parse(msg.Body)
	if err != nil {
		p.stats.malformed.Add(1)
		metrics.MalformedMessagesTotal.Inc()
		p.log.Warn("Failed to parse message",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		if err := msg.Ack(ctx); err != nil {
			p.log.Error("Failed to ack malformed message",
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
		return nil
	}

	return NewEnvelope(domain.NewRecord(ev), msg)
}

// processBatch enriches and writes one full batch. The buffer is owned by
// the caller and is discarded afterwards regardless of outcome.
func (p *BatchProcessor) processBatch(ctx context.Context, batch []*Envelope) {
	batchID := uuid.NewString()
	start := time.Now()
	log := p.log.With(zap.String("batch_id", batchID))

	ids := make([]string, 0, len(batch))
	seen := make(map[string]struct{}, len(batch))
	for _, envelope := range batch {
		id := envelope.Record.EventID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	attrs := p.resolver.Resolve(ctx, ids)
	for _, envelope := range batch {
		envelope.Record.Attach(attrs[envelope.Record.EventID])
	}

	var committed, failed int
	for _, envelope := range batch {
		result := p.writer.Insert(ctx, envelope.Record)
		metrics.RecordWritesTotal.WithLabelValues(result.Status.String()).Inc()

		switch result.Status {
		case domain.WriteCommitted:
			committed++
			p.stats.committed.Add(1)
		case domain.WriteDuplicate:
			committed++
			p.stats.duplicates.Add(1)
			log.Debug("Record already stored",
				zap.String("event_id", envelope.Record.EventID),
				zap.Int64("rsvp_id", envelope.Record.RSVPID),
				zap.String("message", result.Message))
		default:
			failed++
			p.stats.failed.Add(1)
			log.Error("Failed to write record",
				zap.String("event_id", envelope.Record.EventID),
				zap.Int64("rsvp_id", envelope.Record.RSVPID),
				zap.String("message", result.Message))
		}

		if err := envelope.Ack(ctx); err != nil {
			log.Error("Failed to ack message",
				zap.String("message_id", envelope.MessageID()),
				zap.Error(err))
		}
	}

	p.stats.batches.Add(1)
	metrics.BatchesProcessedTotal.Inc()
	metrics.BatchDuration.Observe(time.Since(start).Seconds())

	log.Info("Batch processed",
		zap.Int("record_count", len(batch)),
		zap.Int("distinct_events", len(ids)),
		zap.Int("committed", committed),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)))
}
