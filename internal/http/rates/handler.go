package rates

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/grouper/internal/http/render"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/rates"
)

type Handler struct {
	svc *rates.Service
}

func NewHandler(svc *rates.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Put("/", h.update)
}

type rateDTO struct {
	Base    string          `json:"base"`
	Target  string          `json:"target"`
	Rate    decimal.Decimal `json:"rate"`
	ValidAt *time.Time      `json:"valid_at,omitempty"`
}

type snapshotResponse struct {
	AsOf  time.Time `json:"as_of"`
	Rates []rateDTO `json:"rates"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.svc.Snapshot(r.Context())
	if err != nil {
		render.Error(w, err)
		return
	}

	resp := snapshotResponse{AsOf: snapshot.AsOf, Rates: []rateDTO{}}
	for _, rate := range snapshot.Rates() {
		resp.Rates = append(resp.Rates, rateDTO{
			Base:   string(rate.Base),
			Target: string(rate.Target),
			Rate:   rate.Rate,
		})
	}

	sort.Slice(resp.Rates, func(i, j int) bool {
		if resp.Rates[i].Base != resp.Rates[j].Base {
			return resp.Rates[i].Base < resp.Rates[j].Base
		}

		return resp.Rates[i].Target < resp.Rates[j].Target
	})

	render.JSON(w, http.StatusOK, resp)
}

type updateRequest struct {
	Rates []rateDTO `json:"rates"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if len(req.Rates) == 0 {
		http.Error(w, "rates are required", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	out := make([]money.Rate, 0, len(req.Rates))

	for i, dto := range req.Rates {
		rate, err := toRate(dto, now)
		if err != nil {
			http.Error(w, fmt.Sprintf("rate %d: %v", i, err), http.StatusBadRequest)
			return
		}

		out = append(out, rate)
	}

	if err := h.svc.Update(r.Context(), out); err != nil {
		render.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toRate(dto rateDTO, now time.Time) (money.Rate, error) {
	base, err := money.ParseCurrency(dto.Base)
	if err != nil {
		return money.Rate{}, err
	}

	target, err := money.ParseCurrency(dto.Target)
	if err != nil {
		return money.Rate{}, err
	}

	if base == target {
		return money.Rate{}, fmt.Errorf("base and target are both %s", base)
	}

	if !dto.Rate.IsPositive() {
		return money.Rate{}, errors.New("rate must be positive")
	}

	validAt := now
	if dto.ValidAt != nil {
		validAt = *dto.ValidAt
	}

	return money.Rate{Base: base, Target: target, Rate: dto.Rate, ValidAt: validAt}, nil
}
