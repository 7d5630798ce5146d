package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/matching"
)

// DispatchResult describes what Dispatch did with a label set.
type DispatchResult struct {
	CorrelationID string
	// Sent lists the labels published to the classifier.
	Sent []string
	// Skipped is set when every label was already known and the category set
	// was unchanged, so the remote round trip was replaced by a local apply.
	Skipped bool
	Applied *ApplyResult
}

// Dispatcher publishes match requests for labels the cache cannot resolve.
type Dispatcher struct {
	publisher Publisher
	cache     Cache
	applier   Applier
	tracker   Tracker
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

type DispatcherOption func(*Dispatcher)

// WithTracker records every dispatched request. Without a tracker an
// all-known label set always short-circuits to a local apply.
func WithTracker(t Tracker) DispatcherOption {
	return func(d *Dispatcher) {
		d.tracker = t
	}
}

func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDispatcher(publisher Publisher, cache Cache, applier Applier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		publisher: publisher,
		cache:     cache,
		applier:   applier,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Dispatch requests classification of the labels the cache does not know yet.
// It returns as soon as the broker accepts the request and never waits for
// the classifier. A broker failure is returned wrapped in
// ErrDispatchTransport and is not retried.
func (d *Dispatcher) Dispatch(ctx context.Context, userID uuid.UUID, labels, knownCategoryLabels []string) (*DispatchResult, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id is empty", ErrInvalidMessage)
	}

	candidates := uniqueLabels(labels)
	categories := uniqueLabels(knownCategoryLabels)

	known, err := d.cache.LookupBatch(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("looking up learned matches: %w", err)
	}

	unresolved := make([]string, 0, len(candidates))

	for _, l := range candidates {
		if _, ok := known[l]; !ok {
			unresolved = append(unresolved, l)
		}
	}

	fingerprint := Fingerprint(categories)

	if len(unresolved) == 0 && !d.categoriesChanged(ctx, userID, fingerprint) {
		applied, err := d.applier.Apply(ctx, userID)
		if err != nil {
			return nil, err
		}

		return &DispatchResult{Skipped: true, Applied: applied}, nil
	}

	req := MatchRequest{
		CorrelationID:       d.newID(),
		UserID:              userID.String(),
		Labels:              unresolved,
		KnownCategoryLabels: categories,
		Prompt:              BuildPrompt(unresolved, categories),
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.record(ctx, Request{
		CorrelationID: req.CorrelationID,
		UserID:        userID,
		Labels:        len(unresolved),
		Fingerprint:   fingerprint,
		Status:        StatusPending,
		DispatchedAt:  d.now(),
	})

	if err := d.publisher.Publish(ctx, req); err != nil {
		d.resolve(ctx, req.CorrelationID, StatusFailed, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrDispatchTransport, err)
	}

	d.logger.Info("dispatched match request",
		"correlation_id", req.CorrelationID,
		"user_id", userID,
		"labels", len(unresolved),
	)

	return &DispatchResult{CorrelationID: req.CorrelationID, Sent: unresolved}, nil
}

func (d *Dispatcher) categoriesChanged(ctx context.Context, userID uuid.UUID, fingerprint string) bool {
	if d.tracker == nil {
		return false
	}

	last, ok, err := d.tracker.LastFingerprint(ctx, userID)
	if err != nil {
		d.logger.Warn("reading last category fingerprint", "user_id", userID, "error", err)
		return true
	}

	return !ok || last != fingerprint
}

func (d *Dispatcher) record(ctx context.Context, req Request) {
	if d.tracker == nil {
		return
	}

	if err := d.tracker.Record(ctx, req); err != nil {
		d.logger.Warn("recording match request", "correlation_id", req.CorrelationID, "error", err)
	}
}

func (d *Dispatcher) resolve(ctx context.Context, correlationID string, status Status, reason string) {
	if d.tracker == nil {
		return
	}

	if err := d.tracker.Resolve(ctx, correlationID, status, reason); err != nil {
		d.logger.Warn("resolving match request", "correlation_id", correlationID, "status", status, "error", err)
	}
}

// Fingerprint identifies a category label set independent of order.
func Fingerprint(categories []string) string {
	sorted := uniqueLabels(categories)
	h := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))

	return hex.EncodeToString(h[:])
}

// uniqueLabels trims, drops empties and dedupes, returning a sorted slice.
func uniqueLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))

	for _, l := range labels {
		l = matching.NormalizeLabel(l)
		if l == "" {
			continue
		}

		if _, ok := seen[l]; ok {
			continue
		}

		seen[l] = struct{}{}
		out = append(out, l)
	}

	sort.Strings(out)

	return out
}
