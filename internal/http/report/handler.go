package report

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/http/render"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/report"
)

type Handler struct {
	svc *report.Service
}

func NewHandler(svc *report.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/summary", h.summary)
}

type lineResponse struct {
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	Label      string     `json:"label"`
	Count      int        `json:"count"`
	Income     string     `json:"income"`
	Expense    string     `json:"expense"`
	Net        string     `json:"net"`
}

type excludedResponse struct {
	ID       uuid.UUID      `json:"id"`
	Label    string         `json:"label"`
	Amount   string         `json:"amount"`
	Currency money.Currency `json:"currency"`
}

type summaryResponse struct {
	Currency money.Currency     `json:"currency"`
	RatesAt  time.Time          `json:"rates_at"`
	Lines    []lineResponse     `json:"lines"`
	Income   string             `json:"income"`
	Expense  string             `json:"expense"`
	Net      string             `json:"net"`
	Excluded []excludedResponse `json:"excluded"`
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	var (
		filter report.Filter
		err    error
	)

	if filter.StartDate, err = render.DateParam(r, "start_date"); err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}

	if filter.EndDate, err = render.DateParam(r, "end_date"); err != nil {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}

	s, err := h.svc.Summary(r.Context(), userID, filter)
	if err != nil {
		render.Error(w, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=summary_%s.csv", time.Now().Format("20060102")))

		if err := report.WriteCSV(w, s); err != nil {
			slog.Error("failed to write csv", "error", err)
		}

		return
	}

	render.JSON(w, http.StatusOK, toResponse(s))
}

func toResponse(s *report.Summary) summaryResponse {
	places := s.Currency.MinorUnits()

	resp := summaryResponse{
		Currency: s.Currency,
		RatesAt:  s.RatesAt,
		Lines:    make([]lineResponse, 0, len(s.Lines)),
		Income:   s.Income.StringFixed(places),
		Expense:  s.Expense.StringFixed(places),
		Net:      s.Net.StringFixed(places),
		Excluded: make([]excludedResponse, 0, len(s.Excluded)),
	}

	for _, l := range s.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			CategoryID: l.CategoryID,
			Label:      l.Label,
			Count:      l.Count,
			Income:     l.Income.StringFixed(places),
			Expense:    l.Expense.StringFixed(places),
			Net:        l.Net.StringFixed(places),
		})
	}

	for _, tx := range s.Excluded {
		resp.Excluded = append(resp.Excluded, excludedResponse{
			ID:       tx.ID,
			Label:    tx.Label,
			Amount:   tx.Amount.StringFixed(tx.Currency.MinorUnits()),
			Currency: tx.Currency,
		})
	}

	return resp
}
