package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/grouper/internal/category"
	"github.com/MrJamesThe3rd/grouper/internal/matching"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
	"github.com/MrJamesThe3rd/grouper/internal/user"
)

const defaultApplyBatchSize = 500

// BatchApplier resolves a user's uncategorised transactions through the
// learned-match cache and refreshes their reporting-currency value.
type BatchApplier struct {
	store     Store
	cache     Cache
	rates     RateSource
	batchSize int
	logger    *slog.Logger
}

type ApplierOption func(*BatchApplier)

// WithBatchSize sets how many rows are processed between cancellation checks.
func WithBatchSize(n int) ApplierOption {
	return func(a *BatchApplier) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

func WithApplierLogger(l *slog.Logger) ApplierOption {
	return func(a *BatchApplier) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewBatchApplier(store Store, cache Cache, rates RateSource, opts ...ApplierOption) *BatchApplier {
	a := &BatchApplier{
		store:     store,
		cache:     cache,
		rates:     rates,
		batchSize: defaultApplyBatchSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Apply runs one read-modify-write cycle for the user inside a single unit of
// work. Nothing is written when it returns an error.
func (a *BatchApplier) Apply(ctx context.Context, userID uuid.UUID) (*ApplyResult, error) {
	tx, err := a.store.BeginApply(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: begin apply: %w", ErrPersistence, err)
	}
	defer tx.Rollback()

	u, err := tx.LoadUser(ctx)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}

		return nil, fmt.Errorf("loading user: %w", err)
	}

	txs, err := tx.LoadUserTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}

	if len(txs) == 0 {
		return nil, ErrNoTransactions
	}

	cats, err := tx.LoadUserCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}

	if len(cats) == 0 {
		return nil, ErrNoCategories
	}

	snapshot, err := a.rates.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading exchange rates: %w", err)
	}

	learned, err := a.cache.LookupBatch(ctx, transaction.UnmatchedLabels(txs))
	if err != nil {
		return nil, fmt.Errorf("looking up learned matches: %w", err)
	}

	byLabel := categoriesByLabel(cats)
	result := &ApplyResult{UserID: userID, Transactions: len(txs)}

	var changes []Change

	for i, t := range txs {
		if i%a.batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		change := Change{TransactionID: t.ID}
		dirty := false

		if t.CategoryID == nil {
			categoryLabel, known := learned[matching.NormalizeLabel(t.Label)]

			switch id, owned := byLabel[categoryLabel]; {
			case !known:
				result.Unresolved++
			case !owned:
				result.MissingCategory++
			default:
				change.AssignCategory = &id
				result.Assigned++
				dirty = true
			}
		}

		base, currency, ok := baseValue(t, u.BaseCurrency, snapshot)
		if !ok {
			result.Unconvertible = append(result.Unconvertible, ConversionUnavailable{
				TransactionID: t.ID,
				From:          t.Currency,
				To:            u.BaseCurrency,
			})
		}

		change.BaseAmount = base
		change.BaseCurrency = currency

		if t.BaseAmount == nil || !t.BaseAmount.Equal(base) || t.BaseCurrency != currency {
			dirty = true
		}

		if dirty {
			changes = append(changes, change)
		}
	}

	if err := tx.SaveChanges(ctx, changes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	result.Written = len(changes)

	a.logger.Info("applied learned matches",
		"user_id", userID,
		"transactions", result.Transactions,
		"assigned", result.Assigned,
		"unresolved", result.Unresolved,
		"missing_category", result.MissingCategory,
		"unconvertible", len(result.Unconvertible),
	)

	return result, nil
}

// baseValue converts t into the reporting currency. When no rate exists the
// value is zero in money.Unconvertible.
func baseValue(t *transaction.Transaction, base money.Currency, rates money.RateLookup) (decimal.Decimal, money.Currency, bool) {
	converted, ok := money.Convert(t.Amount, t.Currency, base, rates)
	if !ok {
		return decimal.Zero, money.Unconvertible, false
	}

	return converted, base, true
}

func categoriesByLabel(cats []*category.Category) map[string]uuid.UUID {
	out := make(map[string]uuid.UUID, len(cats))

	for _, c := range cats {
		label := strings.TrimSpace(c.Label)
		if label == "" {
			continue
		}

		out[label] = c.ID
	}

	return out
}
