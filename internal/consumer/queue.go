package consumer

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/profiq/meetup-analysis-kinetica/internal/config"
	"github.com/profiq/meetup-analysis-kinetica/internal/metrics"
	"github.com/profiq/meetup-analysis-kinetica/internal/stream"
)

// OverflowPolicy decides what Push does when the queue is full
type OverflowPolicy int

const (
	// Block makes the producer wait for free capacity
	Block OverflowPolicy = iota
	// DropOldest discards the oldest queued message to make room
	DropOldest
)

// ParseOverflowPolicy maps a configuration value to a policy
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case config.OverflowBlock, "":
		return Block, nil
	case config.OverflowDropOldest:
		return DropOldest, nil
	default:
		return Block, fmt.Errorf("%w: %q", config.ErrInvalidOverflow, s)
	}
}

func (p OverflowPolicy) String() string {
	if p == DropOldest {
		return config.OverflowDropOldest
	}
	return config.OverflowBlock
}

// Queue is the bounded hand-off between the receiver and the batch processor.
// It supports a single producer; Close must be called by that producer.
type Queue struct {
	ch      chan stream.Message
	policy  OverflowPolicy
	dropped atomic.Int64
}

// NewQueue creates a queue holding at most capacity messages
func NewQueue(capacity int, policy OverflowPolicy) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch:     make(chan stream.Message, capacity),
		policy: policy,
	}
}

// Push enqueues a message. With Block it waits until there is room or ctx
// is done; with DropOldest it never waits.
func (q *Queue) Push(ctx context.Context, msg stream.Message) error {
	if q.policy == DropOldest {
		for {
			select {
			case q.ch <- msg:
				metrics.QueueDepth.Set(float64(len(q.ch)))
				return nil
			default:
			}

			select {
			case <-q.ch:
				q.dropped.Add(1)
				metrics.QueueDroppedTotal.Inc()
			default:
			}
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- msg:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return nil
	}
}

// Messages is the consuming end of the queue; it is closed by Close
func (q *Queue) Messages() <-chan stream.Message {
	return q.ch
}

// Close signals that no more messages will be pushed
func (q *Queue) Close() {
	close(q.ch)
}

// Len returns the number of queued messages
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped returns how many messages the drop-oldest policy has discarded
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}
