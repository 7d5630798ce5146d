// Package broker abstracts the message queues between the API and the
// classifier.
package broker

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("queue is closed")

// Message is one delivery. DequeueCount starts at 1 and grows with every
// redelivery of the same message.
type Message struct {
	ID           string
	Body         []byte
	DequeueCount int64
}

// Handler processes a delivery. Returning nil acknowledges the message,
// returning an error leaves it for redelivery.
type Handler func(ctx context.Context, msg Message) error

type Sender interface {
	Send(ctx context.Context, body []byte) error
}

type Queue interface {
	Sender
	// Consume runs handler on incoming messages until ctx is cancelled.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

// Options tune consumption. Zero values fall back to the defaults below.
type Options struct {
	Workers           int
	BatchSize         int
	PollInterval      time.Duration
	VisibilityTimeout time.Duration
	MaxDequeueCount   int64
}

func (o Options) WithDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}

	if o.BatchSize <= 0 {
		o.BatchSize = 16
	}

	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}

	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = 30 * time.Second
	}

	if o.MaxDequeueCount <= 0 {
		o.MaxDequeueCount = 5
	}

	return o
}

// PoisonName is the queue that receives messages redelivered too often.
func PoisonName(queue string) string {
	return queue + "-poison"
}
