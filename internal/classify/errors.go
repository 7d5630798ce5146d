package classify

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/money"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrNoTransactions    = errors.New("user has no transactions")
	ErrNoCategories      = errors.New("user has no categories")
	ErrDispatchTransport = errors.New("classification request could not be published")
	ErrPersistence       = errors.New("persisting classification results failed")
	ErrInvalidMessage    = errors.New("invalid classification message")
)

// ClassificationFailedError is raised when the remote classifier reports a
// failure for a request.
type ClassificationFailedError struct {
	CorrelationID string
	Reason        string
}

func (e *ClassificationFailedError) Error() string {
	return fmt.Sprintf("classification %s failed: %s", e.CorrelationID, e.Reason)
}

// ConversionUnavailable records a transaction whose value could not be
// expressed in the reporting currency. It never fails a batch.
type ConversionUnavailable struct {
	TransactionID uuid.UUID
	From          money.Currency
	To            money.Currency
}

func (c ConversionUnavailable) Error() string {
	return fmt.Sprintf("no rate %s->%s for transaction %s", c.From, c.To, c.TransactionID)
}

// IsTerminal reports whether err is a business outcome that redelivering the
// same message cannot change.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}

	var failed *ClassificationFailedError
	if errors.As(err, &failed) {
		return true
	}

	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrNoTransactions) ||
		errors.Is(err, ErrNoCategories) ||
		errors.Is(err, ErrInvalidMessage)
}
