package matching

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/classify"
	"github.com/MrJamesThe3rd/grouper/internal/http/render"
	"github.com/MrJamesThe3rd/grouper/internal/ingest"
	"github.com/MrJamesThe3rd/grouper/internal/matching"
)

const defaultRequestLimit = 20

type RequestLister interface {
	ListRequests(ctx context.Context, userID uuid.UUID, limit int) ([]classify.Request, error)
}

type Handler struct {
	svc      *matching.Service
	applier  classify.Applier
	ingest   *ingest.Service
	requests RequestLister
}

func NewHandler(svc *matching.Service, applier classify.Applier, ingestSvc *ingest.Service, requests RequestLister) *Handler {
	return &Handler{
		svc:      svc,
		applier:  applier,
		ingest:   ingestSvc,
		requests: requests,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.lookup)
	r.Post("/", h.upsert)
	r.Post("/apply", h.apply)
	r.Post("/classify", h.classify)
	r.Get("/requests", h.listRequests)
}

type matchResponse struct {
	Label         string `json:"label"`
	CategoryLabel string `json:"category_label,omitempty"`
	Found         bool   `json:"found"`
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("label")
	if label == "" {
		http.Error(w, "label query parameter is required", http.StatusBadRequest)
		return
	}

	category, found, err := h.svc.Lookup(r.Context(), label)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, matchResponse{
		Label:         matching.NormalizeLabel(label),
		CategoryLabel: category,
		Found:         found,
	})
}

type upsertRequest struct {
	Label         string `json:"label"`
	CategoryLabel string `json:"category_label"`
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.svc.Upsert(r.Context(), req.Label, req.CategoryLabel); err != nil {
		render.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

type conversionResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
}

type applyResponse struct {
	Transactions    int                  `json:"transactions"`
	Assigned        int                  `json:"assigned"`
	Unresolved      int                  `json:"unresolved"`
	MissingCategory int                  `json:"missing_category"`
	Written         int                  `json:"written"`
	Unconvertible   []conversionResponse `json:"unconvertible"`
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	res, err := h.applier.Apply(r.Context(), userID)
	if err != nil {
		render.Error(w, err)
		return
	}

	resp := applyResponse{
		Transactions:    res.Transactions,
		Assigned:        res.Assigned,
		Unresolved:      res.Unresolved,
		MissingCategory: res.MissingCategory,
		Written:         res.Written,
		Unconvertible:   make([]conversionResponse, 0, len(res.Unconvertible)),
	}

	for _, c := range res.Unconvertible {
		resp.Unconvertible = append(resp.Unconvertible, conversionResponse{
			TransactionID: c.TransactionID,
			From:          string(c.From),
			To:            string(c.To),
		})
	}

	render.JSON(w, http.StatusOK, resp)
}

type classifyResponse struct {
	Classification ingest.Classification `json:"classification"`
	CorrelationID  string                `json:"correlation_id,omitempty"`
	Reason         string                `json:"reason,omitempty"`
}

func (h *Handler) classify(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	out := h.ingest.Classify(r.Context(), userID)

	render.JSON(w, http.StatusAccepted, classifyResponse{
		Classification: out.Classification,
		CorrelationID:  out.CorrelationID,
		Reason:         out.Reason,
	})
}

type requestResponse struct {
	CorrelationID string          `json:"correlation_id"`
	Labels        int             `json:"labels"`
	Status        classify.Status `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	DispatchedAt  time.Time       `json:"dispatched_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	limit := defaultRequestLimit

	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}

		limit = n
	}

	reqs, err := h.requests.ListRequests(r.Context(), userID, limit)
	if err != nil {
		render.Error(w, err)
		return
	}

	resp := make([]requestResponse, 0, len(reqs))
	for _, req := range reqs {
		resp = append(resp, requestResponse{
			CorrelationID: req.CorrelationID,
			Labels:        req.Labels,
			Status:        req.Status,
			Reason:        req.Reason,
			DispatchedAt:  req.DispatchedAt,
			ResolvedAt:    req.ResolvedAt,
		})
	}

	render.JSON(w, http.StatusOK, resp)
}
