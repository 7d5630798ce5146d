package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrJamesThe3rd/grouper/internal/category"
)

const uniqueViolation = "23505"

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

func ScanCategory(s Scanner) (*category.Category, error) {
	var (
		c           category.Category
		description sql.NullString
		icon        sql.NullString
	)

	if err := s.Scan(&c.ID, &c.UserID, &c.Label, &description, &icon, &c.CreatedAt); err != nil {
		return nil, err
	}

	c.Description = description.String
	c.Icon = icon.String

	return &c, nil
}

const SelectColumns = `id, user_id, label, description, icon, created_at`

func (s *Store) CreateCategory(ctx context.Context, c *category.Category) error {
	query := `
		INSERT INTO categories (user_id, label, description, icon, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query, c.UserID, c.Label, c.Description, c.Icon).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return category.ErrDuplicateLabel
		}

		return fmt.Errorf("creating category: %w", err)
	}

	return nil
}

func (s *Store) GetCategory(ctx context.Context, userID, id uuid.UUID) (*category.Category, error) {
	query := `SELECT ` + SelectColumns + ` FROM categories WHERE id = $1 AND user_id = $2`

	c, err := ScanCategory(s.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, category.ErrNotFound
		}

		return nil, fmt.Errorf("getting category: %w", err)
	}

	return c, nil
}

func (s *Store) ListCategories(ctx context.Context, userID uuid.UUID) ([]*category.Category, error) {
	query := `SELECT ` + SelectColumns + ` FROM categories WHERE user_id = $1 ORDER BY label ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var cats []*category.Category

	for rows.Next() {
		c, err := ScanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}

		cats = append(cats, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating category rows: %w", err)
	}

	return cats, nil
}

// DeleteCategory removes the category and detaches it from the user's
// transactions in one database transaction.
func (s *Store) DeleteCategory(ctx context.Context, userID, id uuid.UUID) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	detach := `
		UPDATE transactions
		SET category_id = NULL, updated_at = NOW()
		WHERE category_id = $1 AND user_id = $2
	`
	if _, err := dbTx.ExecContext(ctx, detach, id, userID); err != nil {
		return fmt.Errorf("detaching transactions: %w", err)
	}

	res, err := dbTx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}

	if n == 0 {
		return category.ErrNotFound
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
