package transaction

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/grouper/internal/money"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=transaction
type Repository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, userID, id uuid.UUID) (*Transaction, error)
	UpdateTransaction(ctx context.Context, tx *Transaction) error
	SetCategory(ctx context.Context, userID, id uuid.UUID, categoryID *uuid.UUID) error

	ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error

	BeginImport(ctx context.Context, userID uuid.UUID, minDate, maxDate time.Time) (ImportTx, error)
}

type ImportTx interface {
	FindDuplicates(ctx context.Context, params []CreateParams) ([]*Transaction, error)
	CreateTransactions(ctx context.Context, txs []*Transaction) error
	Commit() error
	Rollback() error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateParams struct {
	Label      string
	Amount     decimal.Decimal
	Currency   money.Currency
	Type       Type
	Date       time.Time
	CategoryID *uuid.UUID
}

type ListFilter struct {
	UserID        uuid.UUID
	CategoryID    *uuid.UUID
	Uncategorized bool
	StartDate     *time.Time
	EndDate       *time.Time
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, params CreateParams) (*Transaction, error) {
	tx := newTransaction(userID, params)
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	return tx, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

func (s *Service) Update(ctx context.Context, tx *Transaction) error {
	return s.repo.UpdateTransaction(ctx, tx)
}

// AssignCategory sets or clears (nil) the category of a transaction. The
// category must belong to the same user.
func (s *Service) AssignCategory(ctx context.Context, userID, id uuid.UUID, categoryID *uuid.UUID) error {
	return s.repo.SetCategory(ctx, userID, id, categoryID)
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, userID, id)
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.DeleteTransaction(ctx, userID, id)
}

type ImportResult struct {
	Imported  []*Transaction
	New       []CreateParams
	Conflicts []Conflict
}

type Conflict struct {
	Incoming CreateParams
	Existing *Transaction
}

type dupKey struct {
	Date     string
	Amount   string
	Currency money.Currency
	Type     Type
	Label    string
}

func keyOf(date time.Time, amount decimal.Decimal, currency money.Currency, typ Type, label string) dupKey {
	return dupKey{
		Date:     date.Format(time.DateOnly),
		Amount:   amount.StringFixed(currency.MinorUnits()),
		Currency: currency,
		Type:     typ,
		Label:    strings.TrimSpace(label),
	}
}

func (s *Service) ImportBatch(ctx context.Context, userID uuid.UUID, params []CreateParams) (*ImportResult, error) {
	if len(params) == 0 {
		return &ImportResult{}, nil
	}

	minDate, maxDate := dateRange(params)

	itx, err := s.repo.BeginImport(ctx, userID, minDate, maxDate)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer itx.Rollback()

	duplicates, err := itx.FindDuplicates(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("find duplicates: %w", err)
	}

	lookup := make(map[dupKey]*Transaction, len(duplicates))

	for _, d := range duplicates {
		lookup[keyOf(d.Date, d.Amount, d.Currency, d.Type, d.Label)] = d
	}

	var newParams []CreateParams

	var conflicts []Conflict

	for _, p := range params {
		existing, found := lookup[keyOf(p.Date, p.Amount, p.Currency, p.Type, p.Label)]
		if found {
			conflicts = append(conflicts, Conflict{Incoming: p, Existing: existing})
			continue
		}

		newParams = append(newParams, p)
	}

	if len(conflicts) > 0 {
		return &ImportResult{New: newParams, Conflicts: conflicts}, nil
	}

	txs := paramsToTransactions(userID, newParams)
	if err := itx.CreateTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("create transactions: %w", err)
	}

	if err := itx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}

	return &ImportResult{Imported: txs}, nil
}

func (s *Service) CreateBatch(ctx context.Context, userID uuid.UUID, params []CreateParams) ([]*Transaction, error) {
	if len(params) == 0 {
		return nil, nil
	}

	minDate, maxDate := dateRange(params)

	itx, err := s.repo.BeginImport(ctx, userID, minDate, maxDate)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer itx.Rollback()

	txs := paramsToTransactions(userID, params)
	if err := itx.CreateTransactions(ctx, txs); err != nil {
		return nil, fmt.Errorf("create transactions: %w", err)
	}

	if err := itx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}

	return txs, nil
}

// UnmatchedLabels returns the distinct, trimmed labels of the transactions
// that have no category yet, sorted.
func UnmatchedLabels(txs []*Transaction) []string {
	seen := make(map[string]struct{}, len(txs))

	for _, tx := range txs {
		if tx.CategoryID != nil {
			continue
		}

		label := strings.TrimSpace(tx.Label)
		if label == "" {
			continue
		}

		seen[label] = struct{}{}
	}

	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}

	sort.Strings(labels)

	return labels
}

func dateRange(params []CreateParams) (time.Time, time.Time) {
	minDate := params[0].Date
	maxDate := params[0].Date

	for _, p := range params[1:] {
		if p.Date.Before(minDate) {
			minDate = p.Date
		}

		if p.Date.After(maxDate) {
			maxDate = p.Date
		}
	}

	return minDate, maxDate
}

func newTransaction(userID uuid.UUID, p CreateParams) *Transaction {
	return &Transaction{
		UserID:     userID,
		Label:      strings.TrimSpace(p.Label),
		Amount:     p.Amount.Abs(),
		Currency:   p.Currency,
		Type:       p.Type,
		Date:       p.Date,
		CategoryID: p.CategoryID,
	}
}

func paramsToTransactions(userID uuid.UUID, params []CreateParams) []*Transaction {
	txs := make([]*Transaction, len(params))
	for i, p := range params {
		txs[i] = newTransaction(userID, p)
	}

	return txs
}
