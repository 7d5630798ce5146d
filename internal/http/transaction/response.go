package transaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

type Response struct {
	ID           uuid.UUID        `json:"id"`
	Label        string           `json:"label"`
	Amount       string           `json:"amount"`
	Currency     money.Currency   `json:"currency"`
	Type         transaction.Type `json:"type"`
	Date         string           `json:"date"`
	CategoryID   *uuid.UUID       `json:"category_id,omitempty"`
	BaseAmount   *string          `json:"base_amount,omitempty"`
	BaseCurrency money.Currency   `json:"base_currency,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    *time.Time       `json:"updated_at,omitempty"`
}

// ToResponse is shared with the import handler.
func ToResponse(tx *transaction.Transaction) Response {
	resp := Response{
		ID:           tx.ID,
		Label:        tx.Label,
		Amount:       tx.Amount.StringFixed(tx.Currency.MinorUnits()),
		Currency:     tx.Currency,
		Type:         tx.Type,
		Date:         tx.Date.Format(time.DateOnly),
		CategoryID:   tx.CategoryID,
		BaseCurrency: tx.BaseCurrency,
		CreatedAt:    tx.CreatedAt,
		UpdatedAt:    tx.UpdatedAt,
	}

	if tx.BaseAmount != nil {
		resp.BaseAmount = new(tx.BaseAmount.StringFixed(2))
	}

	return resp
}

func ToResponseList(txs []*transaction.Transaction) []Response {
	resp := make([]Response, len(txs))
	for i, tx := range txs {
		resp[i] = ToResponse(tx)
	}

	return resp
}
