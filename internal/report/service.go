// Package report aggregates a user's transactions per category in their
// reporting currency.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/grouper/internal/category"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
	"github.com/MrJamesThe3rd/grouper/internal/user"
)

// UncategorizedLabel names the row for transactions without a category.
const UncategorizedLabel = "Uncategorized"

//go:generate mockgen -source=service.go -destination=service_mock.go -package=report
type Transactions interface {
	List(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error)
}

type Categories interface {
	List(ctx context.Context, userID uuid.UUID) ([]*category.Category, error)
}

type Users interface {
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type RateSource interface {
	Snapshot(ctx context.Context) (*money.Snapshot, error)
}

type Filter struct {
	StartDate *time.Time
	EndDate   *time.Time
}

// Line is the total of one category. Income adds, expenses subtract.
type Line struct {
	CategoryID *uuid.UUID
	Label      string
	Count      int
	Income     decimal.Decimal
	Expense    decimal.Decimal
	Net        decimal.Decimal
}

type Summary struct {
	UserID   uuid.UUID
	Currency money.Currency
	RatesAt  time.Time
	Lines    []Line
	Income   decimal.Decimal
	Expense  decimal.Decimal
	Net      decimal.Decimal
	// Excluded lists transactions left out because no rate converts them.
	Excluded []*transaction.Transaction
}

type Service struct {
	txs        Transactions
	categories Categories
	users      Users
	rates      RateSource
}

func NewService(txs Transactions, categories Categories, users Users, rates RateSource) *Service {
	return &Service{
		txs:        txs,
		categories: categories,
		users:      users,
		rates:      rates,
	}
}

// Summary converts every transaction with the current rate snapshot. Values
// in the reporting currency need no rate.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID, filter Filter) (*Summary, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	snapshot, err := s.rates.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rates: %w", err)
	}

	cats, err := s.categories.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	txs, err := s.txs.List(ctx, transaction.ListFilter{
		UserID:    userID,
		StartDate: filter.StartDate,
		EndDate:   filter.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	summary := &Summary{
		UserID:   userID,
		Currency: u.BaseCurrency,
		Income:   decimal.Zero,
		Expense:  decimal.Zero,
	}

	if snapshot != nil {
		summary.RatesAt = snapshot.AsOf
	}

	labels := make(map[uuid.UUID]string, len(cats))
	for _, c := range cats {
		labels[c.ID] = c.Label
	}

	lines := make(map[string]*Line)

	for _, tx := range txs {
		value, ok := money.Convert(tx.Amount, tx.Currency, u.BaseCurrency, snapshot)
		if !ok {
			summary.Excluded = append(summary.Excluded, tx)
			continue
		}

		line := lineFor(lines, labels, tx.CategoryID)
		line.Count++

		if tx.Type == transaction.TypeExpense {
			line.Expense = line.Expense.Add(value)
			summary.Expense = summary.Expense.Add(value)
		} else {
			line.Income = line.Income.Add(value)
			summary.Income = summary.Income.Add(value)
		}
	}

	for _, l := range lines {
		l.Net = money.Round(l.Income.Sub(l.Expense), u.BaseCurrency)
		summary.Lines = append(summary.Lines, *l)
	}

	sort.Slice(summary.Lines, func(i, j int) bool {
		return summary.Lines[i].Label < summary.Lines[j].Label
	})

	summary.Income = money.Round(summary.Income, u.BaseCurrency)
	summary.Expense = money.Round(summary.Expense, u.BaseCurrency)
	summary.Net = summary.Income.Sub(summary.Expense)

	return summary, nil
}

func lineFor(lines map[string]*Line, labels map[uuid.UUID]string, categoryID *uuid.UUID) *Line {
	key := ""
	label := UncategorizedLabel

	if categoryID != nil {
		key = categoryID.String()

		if l, ok := labels[*categoryID]; ok {
			label = l
		}
	}

	line, ok := lines[key]
	if !ok {
		line = &Line{CategoryID: categoryID, Label: label, Income: decimal.Zero, Expense: decimal.Zero}
		lines[key] = line
	}

	return line
}

// WriteCSV writes one row per category followed by the total.
func WriteCSV(w io.Writer, s *Summary) error {
	cw := csv.NewWriter(w)
	places := s.Currency.MinorUnits()

	if err := cw.Write([]string{"category", "count", "income", "expense", "net", "currency"}); err != nil {
		return err
	}

	for _, l := range s.Lines {
		row := []string{
			l.Label,
			fmt.Sprint(l.Count),
			l.Income.StringFixed(places),
			l.Expense.StringFixed(places),
			l.Net.StringFixed(places),
			string(s.Currency),
		}

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	count := 0
	for _, l := range s.Lines {
		count += l.Count
	}

	total := []string{
		"Total",
		fmt.Sprint(count),
		s.Income.StringFixed(places),
		s.Expense.StringFixed(places),
		s.Net.StringFixed(places),
		string(s.Currency),
	}

	if err := cw.Write(total); err != nil {
		return err
	}

	cw.Flush()

	return cw.Error()
}
