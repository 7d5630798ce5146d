package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/classify"
)

// Tracker persists dispatched requests in match_requests.
type Tracker struct {
	db *sql.DB
}

func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db}
}

func (t *Tracker) Record(ctx context.Context, req classify.Request) error {
	query := `
		INSERT INTO match_requests (correlation_id, user_id, labels, fingerprint, status, dispatched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (correlation_id) DO NOTHING
	`

	_, err := t.db.ExecContext(ctx, query,
		req.CorrelationID, req.UserID, req.Labels, req.Fingerprint, string(req.Status), req.DispatchedAt)
	if err != nil {
		return fmt.Errorf("recording match request: %w", err)
	}

	return nil
}

// Resolve moves a request out of pending. A late result may still complete
// an expired request; resolved requests are left alone.
func (t *Tracker) Resolve(ctx context.Context, correlationID string, status classify.Status, reason string) error {
	query := `
		UPDATE match_requests
		SET status = $2, reason = NULLIF($3, ''), resolved_at = NOW()
		WHERE correlation_id = $1 AND status IN ('pending', 'expired')
	`

	if _, err := t.db.ExecContext(ctx, query, correlationID, string(status), reason); err != nil {
		return fmt.Errorf("resolving match request: %w", err)
	}

	return nil
}

// LastFingerprint returns the category fingerprint of the user's most recent
// request that was not lost.
func (t *Tracker) LastFingerprint(ctx context.Context, userID uuid.UUID) (string, bool, error) {
	query := `
		SELECT fingerprint
		FROM match_requests
		WHERE user_id = $1 AND status IN ('pending', 'completed')
		ORDER BY dispatched_at DESC
		LIMIT 1
	`

	var fp string

	err := t.db.QueryRowContext(ctx, query, userID).Scan(&fp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("reading last fingerprint: %w", err)
	}

	return fp, true, nil
}

func (t *Tracker) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE match_requests
		SET status = 'expired', reason = 'no result received', resolved_at = NOW()
		WHERE status = 'pending' AND dispatched_at < $1
	`

	res, err := t.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expiring match requests: %w", err)
	}

	return res.RowsAffected()
}

// ListRequests returns the user's most recent requests, newest first.
func (t *Tracker) ListRequests(ctx context.Context, userID uuid.UUID, limit int) ([]classify.Request, error) {
	query := `
		SELECT correlation_id, user_id, labels, fingerprint, status, COALESCE(reason, ''), dispatched_at, resolved_at
		FROM match_requests
		WHERE user_id = $1
		ORDER BY dispatched_at DESC
		LIMIT $2
	`

	rows, err := t.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing match requests: %w", err)
	}
	defer rows.Close()

	var out []classify.Request

	for rows.Next() {
		var (
			r      classify.Request
			status string
		)

		if err := rows.Scan(&r.CorrelationID, &r.UserID, &r.Labels, &r.Fingerprint, &status, &r.Reason, &r.DispatchedAt, &r.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scanning match request: %w", err)
		}

		r.Status = classify.Status(status)
		out = append(out, r)
	}

	return out, rows.Err()
}

var _ classify.Tracker = (*Tracker)(nil)
