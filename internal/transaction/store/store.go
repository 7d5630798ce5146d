package store

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Scanner is satisfied by both *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanTransaction reads a transaction row from the scanner and returns a populated Transaction.
// Expected column order: id, user_id, label, amount, currency, type, date, category_id,
// base_amount, base_currency, created_at, updated_at, deleted_at
func ScanTransaction(s Scanner) (*transaction.Transaction, error) {
	var tx transaction.Transaction

	var currency, typeStr string

	var baseAmount decimal.NullDecimal

	var baseCurrency sql.NullString

	if err := s.Scan(
		&tx.ID, &tx.UserID, &tx.Label, &tx.Amount, &currency, &typeStr, &tx.Date, &tx.CategoryID,
		&baseAmount, &baseCurrency,
		&tx.CreatedAt, &tx.UpdatedAt, &tx.DeletedAt,
	); err != nil {
		return nil, err
	}

	tx.Currency = money.Currency(currency)
	tx.Type = transaction.Type(typeStr)
	tx.BaseCurrency = money.Currency(baseCurrency.String)

	if baseAmount.Valid {
		tx.BaseAmount = &baseAmount.Decimal
	}

	return &tx, nil
}

// SelectColumns is the column list ScanTransaction expects, aliased on t.
const SelectColumns = `
	t.id, t.user_id, t.label, t.amount, t.currency, t.type, t.date, t.category_id,
	t.base_amount, t.base_currency, t.created_at, t.updated_at, t.deleted_at
`

const insertTransaction = `
	INSERT INTO transactions (user_id, label, amount, currency, type, date, category_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	RETURNING id, created_at, updated_at
`

func (s *Store) CreateTransaction(ctx context.Context, tx *transaction.Transaction) error {
	err := s.db.QueryRowContext(ctx, insertTransaction,
		tx.UserID,
		tx.Label,
		tx.Amount,
		tx.Currency,
		tx.Type,
		tx.Date,
		tx.CategoryID,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating transaction: %w", err)
	}

	return nil
}

func (s *Store) GetTransaction(ctx context.Context, userID, id uuid.UUID) (*transaction.Transaction, error) {
	query := `SELECT ` + SelectColumns + `
		FROM transactions t
		WHERE t.id = $1 AND t.user_id = $2 AND t.deleted_at IS NULL`

	tx, err := ScanTransaction(s.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	query := `SELECT ` + SelectColumns + `
		FROM transactions t
		WHERE t.deleted_at IS NULL AND t.user_id = $1`

	args := []any{filter.UserID}

	argIdx := 2

	if filter.CategoryID != nil {
		query += fmt.Sprintf(" AND t.category_id = $%d", argIdx)

		args = append(args, *filter.CategoryID)
		argIdx++
	}

	if filter.Uncategorized {
		query += " AND t.category_id IS NULL"
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND t.date >= $%d", argIdx)

		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND t.date <= $%d", argIdx)

		args = append(args, *filter.EndDate)
		argIdx++
	}

	query += " ORDER BY t.date ASC, t.created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction

	for rows.Next() {
		tx, err := ScanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction rows: %w", err)
	}

	return txs, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *transaction.Transaction) error {
	query := `
		UPDATE transactions
		SET label = $1, amount = $2, currency = $3, type = $4, date = $5,
			base_amount = NULL, base_currency = NULL, updated_at = NOW()
		WHERE id = $6 AND user_id = $7 AND deleted_at IS NULL
	`

	res, err := s.db.ExecContext(ctx, query,
		tx.Label,
		tx.Amount,
		tx.Currency,
		tx.Type,
		tx.Date,
		tx.ID,
		tx.UserID,
	)
	if err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}

	return expectOne(res)
}

// SetCategory only links categories owned by the same user.
func (s *Store) SetCategory(ctx context.Context, userID, id uuid.UUID, categoryID *uuid.UUID) error {
	query := `
		UPDATE transactions t
		SET category_id = $1, updated_at = NOW()
		WHERE t.id = $2 AND t.user_id = $3 AND t.deleted_at IS NULL
			AND ($1::uuid IS NULL OR EXISTS (
				SELECT 1 FROM categories c WHERE c.id = $1 AND c.user_id = $3
			))
	`

	res, err := s.db.ExecContext(ctx, query, categoryID, id, userID)
	if err != nil {
		return fmt.Errorf("setting category: %w", err)
	}

	return expectOne(res)
}

func (s *Store) DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error {
	query := `
		UPDATE transactions
		SET deleted_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`

	res, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}

	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}

	if n == 0 {
		return transaction.ErrNotFound
	}

	return nil
}

// UserLockKey is the advisory lock key serializing writes to one user's
// transaction set.
func UserLockKey(userID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write([]byte("transactions"))
	h.Write([]byte{0})
	h.Write(userID[:])

	return int64(h.Sum64())
}

type importTx struct {
	tx     *sql.Tx
	userID uuid.UUID
}

func (s *Store) BeginImport(ctx context.Context, userID uuid.UUID, _, _ time.Time) (transaction.ImportTx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning import tx: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", UserLockKey(userID)); err != nil {
		dbTx.Rollback()
		return nil, fmt.Errorf("acquiring import lock: %w", err)
	}

	return &importTx{tx: dbTx, userID: userID}, nil
}

func (itx *importTx) Commit() error   { return itx.tx.Commit() }
func (itx *importTx) Rollback() error { return itx.tx.Rollback() }

func (itx *importTx) FindDuplicates(ctx context.Context, params []transaction.CreateParams) ([]*transaction.Transaction, error) {
	if len(params) == 0 {
		return nil, nil
	}

	type lookupKey struct {
		Date     string
		Amount   string
		Currency money.Currency
		Type     transaction.Type
		Label    string
	}

	// Find min/max dates and build lookup set.
	minDate := params[0].Date
	maxDate := params[0].Date
	keySet := make(map[lookupKey]struct{}, len(params))

	for _, p := range params {
		if p.Date.Before(minDate) {
			minDate = p.Date
		}

		if p.Date.After(maxDate) {
			maxDate = p.Date
		}

		keySet[lookupKey{
			Date:     p.Date.Format(time.DateOnly),
			Amount:   p.Amount.Abs().StringFixed(2),
			Currency: p.Currency,
			Type:     p.Type,
			Label:    strings.TrimSpace(p.Label),
		}] = struct{}{}
	}

	query := `SELECT ` + SelectColumns + `
		FROM transactions t
		WHERE t.deleted_at IS NULL AND t.user_id = $1 AND t.date >= $2 AND t.date <= $3
		ORDER BY t.date ASC`

	rows, err := itx.tx.QueryContext(ctx, query, itx.userID, minDate, maxDate)
	if err != nil {
		return nil, fmt.Errorf("finding duplicates: %w", err)
	}
	defer rows.Close()

	var duplicates []*transaction.Transaction

	for rows.Next() {
		tx, err := ScanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		k := lookupKey{
			Date:     tx.Date.Format(time.DateOnly),
			Amount:   tx.Amount.StringFixed(2),
			Currency: tx.Currency,
			Type:     tx.Type,
			Label:    tx.Label,
		}

		if _, found := keySet[k]; !found {
			continue
		}

		duplicates = append(duplicates, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating duplicate rows: %w", err)
	}

	return duplicates, nil
}

func (itx *importTx) CreateTransactions(ctx context.Context, txs []*transaction.Transaction) error {
	for _, tx := range txs {
		err := itx.tx.QueryRowContext(ctx, insertTransaction,
			tx.UserID,
			tx.Label,
			tx.Amount,
			tx.Currency,
			tx.Type,
			tx.Date,
			tx.CategoryID,
		).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
		if err != nil {
			return fmt.Errorf("creating transaction: %w", err)
		}
	}

	return nil
}
