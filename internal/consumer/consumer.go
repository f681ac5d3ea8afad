package consumer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/stream"
)

// Config configures the ingestion pipeline
type Config struct {
	BatchSize        int
	QueueSize        int
	OverflowPolicy   OverflowPolicy
	FlushOnShutdown  bool
	MaxReceiveErrors int
}

// Stats is a snapshot of pipeline counters
type Stats struct {
	Source     string `json:"source"`
	Received   int64  `json:"received"`
	Dropped    int64  `json:"dropped"`
	Queued     int    `json:"queued"`
	Malformed  int64  `json:"malformed"`
	Committed  int64  `json:"committed"`
	Duplicates int64  `json:"duplicates"`
	Failed     int64  `json:"failed"`
	Batches    int64  `json:"batches"`
}

// Consumer runs the receiver and the batch processor joined by a bounded queue
type Consumer struct {
	source    stream.Source
	queue     *Queue
	receiver  *Receiver
	processor *BatchProcessor
	log       *zap.Logger
}

// NewConsumer creates a new consumer
func NewConsumer(cfg Config, source stream.Source, resolver AttributeResolver, writer RecordInserter, log *zap.Logger) *Consumer {
	queue := NewQueue(cfg.QueueSize, cfg.OverflowPolicy)

	return &Consumer{
		source:   source,
		queue:    queue,
		receiver: NewReceiver(source, queue, cfg.MaxReceiveErrors, log),
		processor: NewBatchProcessor(NewRSVPParser(), resolver, writer, BatchProcessorConfig{
			BatchSize:       cfg.BatchSize,
			FlushOnShutdown: cfg.FlushOnShutdown,
		}, log),
		log: log,
	}
}

// Start runs the pipeline until ctx is done or the source closes. It returns
// the receiver's error once the queued messages have been processed.
func (c *Consumer) Start(ctx context.Context) error {
	c.log.Info("Consumer pipeline starting",
		zap.String("source", c.source.Name()),
		zap.Int("batch_size", c.processor.config.BatchSize),
		zap.Int("queue_size", cap(c.queue.ch)),
		zap.String("overflow_policy", c.queue.policy.String()))

	var (
		wg          sync.WaitGroup
		receiverErr error
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		receiverErr = c.receiver.Start(ctx)
	}()

	go func() {
		defer wg.Done()
		c.processor.Start(ctx, c.queue.Messages())
	}()

	wg.Wait()
	if receiverErr != nil {
		c.log.Error("Consumer pipeline stopped", zap.Error(receiverErr))
		return receiverErr
	}
	c.log.Info("Consumer pipeline stopped")
	return nil
}

// Stats returns the current pipeline counters
func (c *Consumer) Stats() Stats {
	return Stats{
		Source:     c.source.Name(),
		Received:   c.receiver.Received(),
		Dropped:    c.queue.Dropped(),
		Queued:     c.queue.Len(),
		Malformed:  c.processor.stats.malformed.Load(),
		Committed:  c.processor.stats.committed.Load(),
		Duplicates: c.processor.stats.duplicates.Load(),
		Failed:     c.processor.stats.failed.Load(),
		Batches:    c.processor.stats.batches.Load(),
	}
}
