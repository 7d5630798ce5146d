package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/category"
	categorystore "github.com/MrJamesThe3rd/grouper/internal/category/store"
	"github.com/MrJamesThe3rd/grouper/internal/classify"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
	transactionstore "github.com/MrJamesThe3rd/grouper/internal/transaction/store"
	"github.com/MrJamesThe3rd/grouper/internal/user"
)

// Store opens apply units of work. Each one holds the same per-user
// advisory lock as CSV imports, so applies and imports for one user never
// interleave.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type applyTx struct {
	tx     *sql.Tx
	userID uuid.UUID
}

func (s *Store) BeginApply(ctx context.Context, userID uuid.UUID) (classify.ApplyTx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning apply tx: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", transactionstore.UserLockKey(userID)); err != nil {
		dbTx.Rollback()
		return nil, fmt.Errorf("acquiring apply lock: %w", err)
	}

	return &applyTx{tx: dbTx, userID: userID}, nil
}

func (a *applyTx) Rollback() error {
	err := a.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}

	return err
}

func (a *applyTx) LoadUser(ctx context.Context) (*user.User, error) {
	query := `SELECT id, email, base_currency, created_at FROM users WHERE id = $1`

	var (
		u    user.User
		base string
	)

	err := a.tx.QueryRowContext(ctx, query, a.userID).Scan(&u.ID, &u.Email, &base, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}

		return nil, fmt.Errorf("loading user: %w", err)
	}

	u.BaseCurrency = money.Currency(base)

	return &u, nil
}

func (a *applyTx) LoadUserTransactions(ctx context.Context) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionstore.SelectColumns + `
		FROM transactions t
		WHERE t.user_id = $1 AND t.deleted_at IS NULL
		ORDER BY t.date ASC, t.id ASC`

	rows, err := a.tx.QueryContext(ctx, query, a.userID)
	if err != nil {
		return nil, fmt.Errorf("loading transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction

	for rows.Next() {
		t, err := transactionstore.ScanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, t)
	}

	return txs, rows.Err()
}

func (a *applyTx) LoadUserCategories(ctx context.Context) ([]*category.Category, error) {
	query := `SELECT ` + categorystore.SelectColumns + ` FROM categories WHERE user_id = $1`

	rows, err := a.tx.QueryContext(ctx, query, a.userID)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}
	defer rows.Close()

	var cats []*category.Category

	for rows.Next() {
		c, err := categorystore.ScanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}

		cats = append(cats, c)
	}

	return cats, rows.Err()
}

// SaveChanges writes the changes and commits. A category is only ever
// written onto a row that is still uncategorised.
func (a *applyTx) SaveChanges(ctx context.Context, changes []classify.Change) error {
	assign, err := a.tx.PrepareContext(ctx, `
		UPDATE transactions
		SET category_id = $3, base_amount = $4, base_currency = $5, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND category_id IS NULL
	`)
	if err != nil {
		return fmt.Errorf("preparing assignment: %w", err)
	}
	defer assign.Close()

	rebase, err := a.tx.PrepareContext(ctx, `
		UPDATE transactions
		SET base_amount = $3, base_currency = $4
		WHERE id = $1 AND user_id = $2
	`)
	if err != nil {
		return fmt.Errorf("preparing base value update: %w", err)
	}
	defer rebase.Close()

	for _, c := range changes {
		if c.AssignCategory != nil {
			res, err := assign.ExecContext(ctx, c.TransactionID, a.userID, *c.AssignCategory, c.BaseAmount, string(c.BaseCurrency))
			if err != nil {
				return fmt.Errorf("assigning category to %s: %w", c.TransactionID, err)
			}

			if n, err := res.RowsAffected(); err == nil && n == 1 {
				continue
			}
		}

		if _, err := rebase.ExecContext(ctx, c.TransactionID, a.userID, c.BaseAmount, string(c.BaseCurrency)); err != nil {
			return fmt.Errorf("updating base value of %s: %w", c.TransactionID, err)
		}
	}

	if err := a.tx.Commit(); err != nil {
		return fmt.Errorf("committing apply: %w", err)
	}

	return nil
}
