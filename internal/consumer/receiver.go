package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/profiq/meetup-analysis-kinetica/internal/metrics"
	"github.com/profiq/meetup-analysis-kinetica/internal/stream"
)

// ErrReceiveFailed is returned by Start after too many consecutive receive errors
var ErrReceiveFailed = errors.New("stream source keeps failing")

// Receiver moves messages from the stream source onto the queue
type Receiver struct {
	source     stream.Source
	queue      *Queue
	errorDelay time.Duration
	maxErrors  int
	received   atomic.Int64
	log        *zap.Logger
}

// NewReceiver creates a new receiver. maxErrors consecutive receive errors
// stop it; zero retries forever.
func NewReceiver(source stream.Source, queue *Queue, maxErrors int, log *zap.Logger) *Receiver {
	return &Receiver{
		source:     source,
		queue:      queue,
		errorDelay: time.Second,
		maxErrors:  maxErrors,
		log:        log,
	}
}

// Start receives until ctx is done or the source is closed. The queue is
// closed on return so the processor can drain it. Only a source that keeps
// failing yields an error.
func (r *Receiver) Start(ctx context.Context) error {
	defer r.queue.Close()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			r.log.Info("Receiver shutting down")
			return nil
		default:
		}

		messages, err := r.source.Receive(ctx)
		if err != nil {
			if errors.Is(err, stream.ErrClosed) {
				r.log.Warn("Stream source closed, receiver stopping",
					zap.String("source", r.source.Name()))
				return nil
			}
			if ctx.Err() != nil {
				r.log.Info("Receiver shutting down")
				return nil
			}

			failures++
			r.log.Error("Error receiving messages",
				zap.String("source", r.source.Name()),
				zap.Int("consecutive_failures", failures),
				zap.Error(err))
			if r.maxErrors > 0 && failures >= r.maxErrors {
				return fmt.Errorf("%w: %d consecutive errors from %s: %w",
					ErrReceiveFailed, failures, r.source.Name(), err)
			}
			if !sleepCtx(ctx, r.errorDelay) {
				return nil
			}
			continue
		}
		failures = 0

		if len(messages) == 0 {
			continue
		}

		r.log.Debug("Received messages",
			zap.String("source", r.source.Name()),
			zap.Int("message_count", len(messages)))
		metrics.MessagesReceivedTotal.WithLabelValues(r.source.Name()).Add(float64(len(messages)))

		for _, msg := range messages {
			if err := r.queue.Push(ctx, msg); err != nil {
				r.log.Info("Receiver shutting down while enqueueing messages")
				return nil
			}
			r.received.Add(1)
		}
	}
}

// Received returns the number of messages enqueued so far
func (r *Receiver) Received() int64 {
	return r.received.Load()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
