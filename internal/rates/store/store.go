package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/grouper/internal/money"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// LatestRates returns the most recent rate recorded for every pair.
func (s *Store) LatestRates(ctx context.Context) ([]money.Rate, error) {
	query := `
		SELECT DISTINCT ON (base_currency, target_currency)
			base_currency, target_currency, rate, valid_at
		FROM exchange_rates
		ORDER BY base_currency, target_currency, valid_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing rates: %w", err)
	}
	defer rows.Close()

	var rates []money.Rate

	for rows.Next() {
		var (
			r          money.Rate
			base, tgt  string
			rateString string
		)

		if err := rows.Scan(&base, &tgt, &rateString, &r.ValidAt); err != nil {
			return nil, fmt.Errorf("scanning rate: %w", err)
		}

		d, err := decimal.NewFromString(rateString)
		if err != nil {
			return nil, fmt.Errorf("parsing rate %s/%s: %w", base, tgt, err)
		}

		r.Base = money.Currency(base)
		r.Target = money.Currency(tgt)
		r.Rate = d
		rates = append(rates, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rate rows: %w", err)
	}

	return rates, nil
}

func (s *Store) UpsertRates(ctx context.Context, rates []money.Rate) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	query := `
		INSERT INTO exchange_rates (base_currency, target_currency, rate, valid_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (base_currency, target_currency, valid_at) DO UPDATE SET rate = EXCLUDED.rate
	`

	for _, r := range rates {
		if _, err := dbTx.ExecContext(ctx, query, r.Base, r.Target, r.Rate.String(), r.ValidAt); err != nil {
			return fmt.Errorf("upserting rate %s/%s: %w", r.Base, r.Target, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing rates: %w", err)
	}

	return nil
}
