package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindMatch(ctx context.Context, label string) (string, bool, error) {
	query := `
		SELECT category_label
		FROM learned_matches
		WHERE label = $1
	`

	var category string

	err := s.db.QueryRowContext(ctx, query, label).Scan(&category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("finding match: %w", err)
	}

	return category, true, nil
}

func (s *Store) FindMatches(ctx context.Context, labels []string) (map[string]string, error) {
	query := `
		SELECT label, category_label
		FROM learned_matches
		WHERE label = ANY($1)
	`

	rows, err := s.db.QueryContext(ctx, query, labels)
	if err != nil {
		return nil, fmt.Errorf("finding matches: %w", err)
	}
	defer rows.Close()

	matches := make(map[string]string, len(labels))

	for rows.Next() {
		var label, category string
		if err := rows.Scan(&label, &category); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}

		matches[label] = category
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}

	return matches, nil
}

const upsertMatch = `
	INSERT INTO learned_matches (label, category_label, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (label) DO UPDATE
	SET category_label = EXCLUDED.category_label, updated_at = NOW()
`

func (s *Store) SaveMatch(ctx context.Context, label, categoryLabel string) error {
	if _, err := s.db.ExecContext(ctx, upsertMatch, label, categoryLabel); err != nil {
		return fmt.Errorf("saving match: %w", err)
	}

	return nil
}

func (s *Store) SaveMatches(ctx context.Context, matches map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertMatch)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	// Sorted keys keep the row lock order stable across concurrent batches.
	labels := make([]string, 0, len(matches))
	for label := range matches {
		labels = append(labels, label)
	}

	sort.Strings(labels)

	for _, label := range labels {
		if _, err := stmt.ExecContext(ctx, label, matches[label]); err != nil {
			return fmt.Errorf("saving match %q: %w", label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing matches: %w", err)
	}

	return nil
}
