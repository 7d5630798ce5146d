package transaction

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/grouper/internal/money"
)

var ErrNotFound = errors.New("transaction not found")

// Type represents the type of transaction (income or expense).
type Type string

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

// Transaction represents a financial transaction owned by a user.
//
// Amount is always positive, Type carries the direction. The original
// currency is never rewritten; BaseAmount/BaseCurrency cache the value in
// the owner's reporting currency as of the last apply run, with
// BaseCurrency set to money.Unconvertible when no rate was available.
type Transaction struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Label        string
	Amount       decimal.Decimal
	Currency     money.Currency
	Type         Type
	Date         time.Time
	CategoryID   *uuid.UUID
	BaseAmount   *decimal.Decimal
	BaseCurrency money.Currency
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	DeletedAt    *time.Time
}

// Value returns the original monetary value.
func (t *Transaction) Value() money.Money {
	return money.Money{Amount: t.Amount, Currency: t.Currency}
}

// Signed returns the amount negated for expenses.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == TypeExpense {
		return t.Amount.Neg()
	}

	return t.Amount
}
