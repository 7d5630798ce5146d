package category

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=category
type Repository interface {
	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, userID, id uuid.UUID) (*Category, error)
	ListCategories(ctx context.Context, userID uuid.UUID) ([]*Category, error)
	DeleteCategory(ctx context.Context, userID, id uuid.UUID) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateParams struct {
	Label       string
	Description string
	Icon        string
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, params CreateParams) (*Category, error) {
	label := strings.TrimSpace(params.Label)
	if label == "" {
		return nil, ErrEmptyLabel
	}

	c := &Category{
		UserID:      userID,
		Label:       label,
		Description: strings.TrimSpace(params.Description),
		Icon:        params.Icon,
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

// CreateDefaults seeds the default categories, skipping labels the user
// already has.
func (s *Service) CreateDefaults(ctx context.Context, userID uuid.UUID) error {
	for _, p := range Defaults {
		_, err := s.Create(ctx, userID, p)
		if err == nil || errors.Is(err, ErrDuplicateLabel) {
			continue
		}

		return fmt.Errorf("creating %q: %w", p.Label, err)
	}

	return nil
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Category, error) {
	return s.repo.GetCategory(ctx, userID, id)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*Category, error) {
	return s.repo.ListCategories(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.DeleteCategory(ctx, userID, id)
}

// Labels returns the user's category labels in listing order.
func (s *Service) Labels(ctx context.Context, userID uuid.UUID) ([]string, error) {
	cats, err := s.repo.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}

	labels := make([]string, len(cats))
	for i, c := range cats {
		labels[i] = c.Label
	}

	return labels, nil
}
