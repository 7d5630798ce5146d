package classify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
)

// CompletionHandler applies classifier results. It keeps no state between
// messages: everything it needs travels in the MatchResult, so redelivered
// or late results are handled like any other.
type CompletionHandler struct {
	cache    Cache
	applier  Applier
	tracker  Tracker
	attempts uint
	delay    time.Duration
	logger   *slog.Logger
}

type HandlerOption func(*CompletionHandler)

// WithUpsertRetry sets how often a failed cache batch is retried as a whole.
func WithUpsertRetry(attempts uint, delay time.Duration) HandlerOption {
	return func(h *CompletionHandler) {
		if attempts > 0 {
			h.attempts = attempts
		}

		h.delay = delay
	}
}

func WithHandlerTracker(t Tracker) HandlerOption {
	return func(h *CompletionHandler) {
		h.tracker = t
	}
}

func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *CompletionHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewCompletionHandler(cache Cache, applier Applier, opts ...HandlerOption) *CompletionHandler {
	h := &CompletionHandler{
		cache:    cache,
		applier:  applier,
		attempts: 3,
		delay:    200 * time.Millisecond,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// OnMessage stores the learned matches carried by result and re-applies the
// cache to the user's transactions. A failed result touches nothing and is
// returned as *ClassificationFailedError.
func (h *CompletionHandler) OnMessage(ctx context.Context, result MatchResult) (*ApplyResult, error) {
	if err := result.Validate(); err != nil {
		return nil, err
	}

	userID, err := result.User()
	if err != nil {
		return nil, err
	}

	logger := h.logger.With("correlation_id", result.CorrelationID, "user_id", userID)

	if !result.Success {
		reason := result.Reason()
		logger.Warn("classification failed", "reason", reason)
		h.resolve(ctx, result.CorrelationID, StatusFailed, reason)

		return nil, &ClassificationFailedError{CorrelationID: result.CorrelationID, Reason: reason}
	}

	if len(result.LabelToCategory) > 0 {
		err := retry.Do(
			func() error {
				return h.cache.UpsertBatch(ctx, result.LabelToCategory)
			},
			retry.Attempts(h.attempts),
			retry.Delay(h.delay),
			retry.DelayType(retry.FixedDelay),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				logger.Warn("retrying learned match batch", "attempt", n+1, "error", err)
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: storing learned matches: %w", ErrPersistence, err)
		}
	}

	applied, err := h.applier.Apply(ctx, userID)
	if err != nil {
		if IsTerminal(err) {
			h.resolve(ctx, result.CorrelationID, StatusFailed, err.Error())
		}

		return nil, err
	}

	h.resolve(ctx, result.CorrelationID, StatusCompleted, "")

	logger.Info("match result applied",
		"learned", len(result.LabelToCategory),
		"assigned", applied.Assigned,
	)

	return applied, nil
}

func (h *CompletionHandler) resolve(ctx context.Context, correlationID string, status Status, reason string) {
	if h.tracker == nil {
		return
	}

	if err := h.tracker.Resolve(ctx, correlationID, status, reason); err != nil {
		h.logger.Warn("resolving match request", "correlation_id", correlationID, "status", status, "error", err)
	}
}
