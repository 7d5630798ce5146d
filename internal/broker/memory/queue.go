// Package memory is a channel-backed broker.Queue for single-process
// deployments and tests.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/broker"
)

// Queue delivers every message at least once. A handler error puts the
// message back after RedeliveryDelay; messages failing more than
// MaxDequeueCount times are parked and can be read with Poisoned.
type Queue struct {
	ch        chan broker.Message
	closeChan chan struct{}
	opts      broker.Options
	delay     time.Duration
	logger    *slog.Logger

	mu       sync.RWMutex
	closed   bool
	poisoned []broker.Message
	pending  sync.WaitGroup
}

type Option func(*Queue)

// WithRedeliveryDelay sets how long a failed message waits before it is
// delivered again.
func WithRedeliveryDelay(d time.Duration) Option {
	return func(q *Queue) {
		q.delay = d
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// New creates a queue that buffers up to bufferSize messages before Send
// blocks.
func New(bufferSize int, opts broker.Options, options ...Option) *Queue {
	q := &Queue{
		ch:        make(chan broker.Message, bufferSize),
		closeChan: make(chan struct{}),
		opts:      opts.WithDefaults(),
		delay:     100 * time.Millisecond,
		logger:    slog.Default(),
	}

	for _, o := range options {
		o(q)
	}

	return q
}

func (q *Queue) Send(ctx context.Context, body []byte) error {
	return q.enqueue(ctx, broker.Message{ID: uuid.NewString(), Body: body})
}

func (q *Queue) enqueue(ctx context.Context, msg broker.Message) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()

	if closed {
		return broker.ErrClosed
	}

	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return broker.ErrClosed
	}
}

// Consume starts the workers and blocks until ctx is cancelled or the queue
// is closed. In-flight handlers finish before it returns.
func (q *Queue) Consume(ctx context.Context, handler broker.Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return broker.ErrClosed
	}
	q.mu.RUnlock()

	var wg sync.WaitGroup

	for range q.opts.Workers {
		wg.Add(1)

		go func() {
			defer wg.Done()
			q.worker(ctx, handler)
		}()
	}

	wg.Wait()

	return nil
}

func (q *Queue) worker(ctx context.Context, handler broker.Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case msg := <-q.ch:
			q.process(ctx, msg, handler)
		}
	}
}

func (q *Queue) process(ctx context.Context, msg broker.Message, handler broker.Handler) {
	msg.DequeueCount++

	if msg.DequeueCount > q.opts.MaxDequeueCount {
		q.logger.Warn("message exceeded max dequeue count", "message_id", msg.ID)
		q.mu.Lock()
		q.poisoned = append(q.poisoned, msg)
		q.mu.Unlock()

		return
	}

	err := handler(ctx, msg)
	if err == nil {
		return
	}

	q.logger.Error("handling message, scheduling redelivery", "message_id", msg.ID, "error", err)

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return
	}

	q.pending.Add(1)
	time.AfterFunc(q.delay, func() {
		defer q.pending.Done()

		if err := q.enqueue(context.Background(), msg); err != nil {
			q.logger.Warn("dropping message on redelivery", "message_id", msg.ID, "error", err)
		}
	})
}

// Poisoned returns the messages that exhausted their deliveries.
func (q *Queue) Poisoned() []broker.Message {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]broker.Message, len(q.poisoned))
	copy(out, q.poisoned)

	return out
}

func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}

	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	q.pending.Wait()

	return nil
}

var _ broker.Queue = (*Queue)(nil)
