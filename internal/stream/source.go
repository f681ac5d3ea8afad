// Package stream defines the source of raw RSVP messages.
package stream

import (
	"context"
	"errors"
)

// ErrClosed is returned by Receive once the source has been closed
var ErrClosed = errors.New("stream source closed")

// Message is one raw RSVP payload delivered by a source
type Message struct {
	ID   string
	Body []byte
	ack  func(context.Context) error
}

// NewMessage creates a message. ack may be nil for sources without acknowledgment.
func NewMessage(id string, body []byte, ack func(context.Context) error) Message {
	return Message{ID: id, Body: body, ack: ack}
}

// Ack tells the source the message has been handled
func (m Message) Ack(ctx context.Context) error {
	if m.ack != nil {
		return m.ack(ctx)
	}
	return nil
}

// Source delivers raw messages from the upstream event stream
type Source interface {
	// Name identifies the source in logs and metrics
	Name() string

	// Receive blocks until at least one message is available
	Receive(ctx context.Context) ([]Message, error)

	// Close releases the underlying connection
	Close() error
}
