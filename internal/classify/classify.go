// Package classify runs the asynchronous categorisation pipeline: dispatching
// match requests, handling the correlated results, and applying learned
// matches to a user's transactions.
package classify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/grouper/internal/category"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
	"github.com/MrJamesThe3rd/grouper/internal/user"
)

//go:generate mockgen -source=classify.go -destination=classify_mock.go -package=classify

// Cache is the learned-match table.
type Cache interface {
	LookupBatch(ctx context.Context, labels []string) (map[string]string, error)
	UpsertBatch(ctx context.Context, matches map[string]string) error
}

// Publisher hands a request to the broker. It returns once the broker has
// accepted the message.
type Publisher interface {
	Publish(ctx context.Context, req MatchRequest) error
}

type Applier interface {
	Apply(ctx context.Context, userID uuid.UUID) (*ApplyResult, error)
}

type RateSource interface {
	Snapshot(ctx context.Context) (*money.Snapshot, error)
}

// Store opens the per-user unit of work used by Apply. Implementations must
// serialise units of work for the same user.
type Store interface {
	BeginApply(ctx context.Context, userID uuid.UUID) (ApplyTx, error)
}

type ApplyTx interface {
	LoadUser(ctx context.Context) (*user.User, error)
	LoadUserTransactions(ctx context.Context) ([]*transaction.Transaction, error)
	LoadUserCategories(ctx context.Context) ([]*category.Category, error)
	// SaveChanges writes every change and commits.
	SaveChanges(ctx context.Context, changes []Change) error
	Rollback() error
}

// Tracker keeps the observational record of dispatched requests.
type Tracker interface {
	Record(ctx context.Context, req Request) error
	Resolve(ctx context.Context, correlationID string, status Status, reason string) error
	LastFingerprint(ctx context.Context, userID uuid.UUID) (string, bool, error)
	ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// Request is the tracked form of a dispatched MatchRequest.
type Request struct {
	CorrelationID string
	UserID        uuid.UUID
	Labels        int
	Fingerprint   string
	Status        Status
	Reason        string
	DispatchedAt  time.Time
	ResolvedAt    *time.Time
}

// Change is one transaction row rewritten by Apply. AssignCategory is set
// only when the row was uncategorised and a learned match resolved it.
type Change struct {
	TransactionID  uuid.UUID
	AssignCategory *uuid.UUID
	BaseAmount     decimal.Decimal
	BaseCurrency   money.Currency
}

// ApplyResult summarises one Apply run.
type ApplyResult struct {
	UserID       uuid.UUID
	Transactions int
	// Assigned is the number of transactions that received a category.
	Assigned int
	// Unresolved transactions had no learned match for their label.
	Unresolved int
	// MissingCategory transactions had a learned match naming a category the
	// user does not own.
	MissingCategory int
	Unconvertible   []ConversionUnavailable
	Written         int
}
