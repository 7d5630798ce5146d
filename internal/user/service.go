package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/money"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=user
type Repository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	UpdateBaseCurrency(ctx context.Context, id uuid.UUID, c money.Currency) error
}

// Onboarder runs once for every new user, e.g. to seed default categories.
type Onboarder interface {
	CreateDefaults(ctx context.Context, userID uuid.UUID) error
}

type Service struct {
	repo      Repository
	onboarder Onboarder
}

func NewService(repo Repository, onboarder Onboarder) *Service {
	return &Service{repo: repo, onboarder: onboarder}
}

type CreateParams struct {
	Email        string
	BaseCurrency money.Currency
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	base := params.BaseCurrency
	if base == "" {
		base = money.EUR
	}

	u := &User{
		Email:        email,
		BaseCurrency: base,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	if s.onboarder != nil {
		if err := s.onboarder.CreateDefaults(ctx, u.ID); err != nil {
			return nil, fmt.Errorf("creating default categories: %w", err)
		}
	}

	return u, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) SetBaseCurrency(ctx context.Context, id uuid.UUID, c money.Currency) error {
	return s.repo.UpdateBaseCurrency(ctx, id, c)
}
