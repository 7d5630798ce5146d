package transaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/grouper/internal/http/render"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

type Handler struct {
	svc *transaction.Service
}

func NewHandler(svc *transaction.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	r.Put("/{id}/category", h.assignCategory)
	r.Patch("/{id}", h.update)
}

// ParamsRequest is the JSON form of a new transaction.
type ParamsRequest struct {
	Label      string           `json:"label"`
	Amount     decimal.Decimal  `json:"amount"`
	Currency   string           `json:"currency"`
	Type       transaction.Type `json:"type"`
	Date       string           `json:"date"`
	CategoryID *uuid.UUID       `json:"category_id,omitempty"`
}

// Params validates the request. A negative amount is read as an expense.
func (p ParamsRequest) Params() (transaction.CreateParams, error) {
	var out transaction.CreateParams

	if strings.TrimSpace(p.Label) == "" {
		return out, errors.New("label is required")
	}

	currency, err := money.ParseCurrency(p.Currency)
	if err != nil {
		return out, err
	}

	date, err := time.Parse(time.DateOnly, p.Date)
	if err != nil {
		return out, fmt.Errorf("invalid date %q", p.Date)
	}

	typ := p.Type
	switch {
	case p.Amount.IsNegative():
		typ = transaction.TypeExpense
	case typ == "":
		typ = transaction.TypeIncome
	case typ != transaction.TypeIncome && typ != transaction.TypeExpense:
		return out, fmt.Errorf("invalid type %q", p.Type)
	}

	return transaction.CreateParams{
		Label:      p.Label,
		Amount:     p.Amount.Abs(),
		Currency:   currency,
		Type:       typ,
		Date:       date,
		CategoryID: p.CategoryID,
	}, nil
}

func FromParams(p transaction.CreateParams) ParamsRequest {
	return ParamsRequest{
		Label:      p.Label,
		Amount:     p.Amount,
		Currency:   string(p.Currency),
		Type:       p.Type,
		Date:       p.Date.Format(time.DateOnly),
		CategoryID: p.CategoryID,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	var req ParamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params, err := req.Params()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := h.svc.Create(r.Context(), userID, params)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusCreated, ToResponse(tx))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	filter := transaction.ListFilter{UserID: userID}

	q := r.URL.Query()
	if q.Get("uncategorized") == "true" {
		filter.Uncategorized = true
	}

	if s := q.Get("category_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			http.Error(w, "invalid category_id", http.StatusBadRequest)
			return
		}

		filter.CategoryID = &id
	}

	var err error

	if filter.StartDate, err = render.DateParam(r, "start_date"); err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}

	if filter.EndDate, err = render.DateParam(r, "end_date"); err != nil {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}

	txs, err := h.svc.List(r.Context(), filter)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, ToResponseList(txs))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	tx, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, ToResponse(tx))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		render.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type assignCategoryRequest struct {
	CategoryID *uuid.UUID `json:"category_id"`
}

func (h *Handler) assignCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req assignCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.svc.AssignCategory(r.Context(), userID, id, req.CategoryID); err != nil {
		render.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type updateTransactionRequest struct {
	Label  *string           `json:"label,omitempty"`
	Amount *decimal.Decimal  `json:"amount,omitempty"`
	Type   *transaction.Type `json:"type,omitempty"`
	Date   *string           `json:"date,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		render.Error(w, err)
		return
	}

	if req.Label != nil {
		tx.Label = strings.TrimSpace(*req.Label)
	}

	if req.Amount != nil {
		tx.Amount = req.Amount.Abs()
	}

	if req.Type != nil {
		tx.Type = *req.Type
	}

	if req.Date != nil {
		date, err := time.Parse(time.DateOnly, *req.Date)
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}

		tx.Date = date
	}

	if err := h.svc.Update(r.Context(), tx); err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, ToResponse(tx))
}
