// Package render holds the response helpers shared by the HTTP handlers.
package render

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/auth"
	"github.com/MrJamesThe3rd/grouper/internal/category"
	"github.com/MrJamesThe3rd/grouper/internal/classify"
	"github.com/MrJamesThe3rd/grouper/internal/matching"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
	"github.com/MrJamesThe3rd/grouper/internal/user"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Error maps domain errors to a status code. Unknown errors are logged and
// reported as a bare 500.
func Error(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transaction.ErrNotFound),
		errors.Is(err, category.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, classify.ErrUserNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, category.ErrDuplicateLabel),
		errors.Is(err, user.ErrEmailTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, category.ErrEmptyLabel),
		errors.Is(err, user.ErrInvalidEmail),
		errors.Is(err, matching.ErrEmptyLabel),
		errors.Is(err, money.ErrUnknownCurrency),
		errors.Is(err, classify.ErrNoTransactions),
		errors.Is(err, classify.ErrNoCategories):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, classify.ErrDispatchTransport):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// UserID reads the authenticated user, answering 401 when there is none.
func UserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, auth.ErrUnauthorized.Error(), http.StatusUnauthorized)
	}

	return id, ok
}

// DateParam parses an optional YYYY-MM-DD query parameter.
func DateParam(r *http.Request, name string) (*time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
