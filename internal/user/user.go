package user

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/money"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrInvalidEmail = errors.New("invalid email")
)

// User owns transactions and categories. BaseCurrency is the reporting
// currency every aggregate is expressed in.
type User struct {
	ID           uuid.UUID
	Email        string
	BaseCurrency money.Currency
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}
