package view

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

const dbTimeout = 5 * time.Second

// FormatMoney renders an amount with its currency code, e.g. "12.50 EUR".
func FormatMoney(amount decimal.Decimal, c money.Currency) string {
	return money.Money{Amount: amount, Currency: c}.String()
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// DbCtx returns a context with a standard timeout for database operations.
func DbCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}

func signed(amount decimal.Decimal, typ transaction.Type) decimal.Decimal {
	if typ == transaction.TypeExpense {
		return amount.Neg()
	}

	return amount
}
