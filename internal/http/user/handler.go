package user

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/auth"
	"github.com/MrJamesThe3rd/grouper/internal/classify"
	"github.com/MrJamesThe3rd/grouper/internal/http/render"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/user"
)

const tokenTTL = 30 * 24 * time.Hour

type Handler struct {
	svc     *user.Service
	auth    *auth.Authenticator
	applier classify.Applier
}

// NewHandler wires the user endpoints. applier rebases cached reporting
// values after a currency change and may be nil.
func NewHandler(svc *user.Service, authenticator *auth.Authenticator, applier classify.Applier) *Handler {
	return &Handler{svc: svc, auth: authenticator, applier: applier}
}

// PublicRoutes are mounted outside the auth middleware.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/", h.create)
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.me)
	r.Patch("/", h.update)
}

type userResponse struct {
	ID           uuid.UUID      `json:"id"`
	Email        string         `json:"email"`
	BaseCurrency money.Currency `json:"base_currency"`
	CreatedAt    time.Time      `json:"created_at"`
}

type createUserRequest struct {
	Email        string `json:"email"`
	BaseCurrency string `json:"base_currency"`
}

type createUserResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := user.CreateParams{Email: req.Email}

	if req.BaseCurrency != "" {
		c, err := money.ParseCurrency(req.BaseCurrency)
		if err != nil {
			render.Error(w, err)
			return
		}

		params.BaseCurrency = c
	}

	u, err := h.svc.Create(r.Context(), params)
	if err != nil {
		render.Error(w, err)
		return
	}

	token, err := h.auth.Issue(u.ID, tokenTTL)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusCreated, createUserResponse{User: toResponse(u), Token: token})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	u, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(u))
}

type updateUserRequest struct {
	BaseCurrency string `json:"base_currency"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := render.UserID(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := money.ParseCurrency(req.BaseCurrency)
	if err != nil {
		render.Error(w, err)
		return
	}

	if err := h.svc.SetBaseCurrency(r.Context(), userID, c); err != nil {
		render.Error(w, err)
		return
	}

	if h.applier != nil {
		_, err := h.applier.Apply(r.Context(), userID)
		if err != nil && !errors.Is(err, classify.ErrNoTransactions) && !errors.Is(err, classify.ErrNoCategories) {
			slog.Warn("rebasing after currency change", "user_id", userID, "error", err)
		}
	}

	u, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(u))
}

func toResponse(u *user.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Email:        u.Email,
		BaseCurrency: u.BaseCurrency,
		CreatedAt:    u.CreatedAt,
	}
}
