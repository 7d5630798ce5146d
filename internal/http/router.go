package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/grouper/internal/auth"
	"github.com/MrJamesThe3rd/grouper/internal/http/category"
	"github.com/MrJamesThe3rd/grouper/internal/http/importcsv"
	"github.com/MrJamesThe3rd/grouper/internal/http/matching"
	"github.com/MrJamesThe3rd/grouper/internal/http/rates"
	"github.com/MrJamesThe3rd/grouper/internal/http/report"
	"github.com/MrJamesThe3rd/grouper/internal/http/transaction"
	"github.com/MrJamesThe3rd/grouper/internal/http/user"
)

type Handlers struct {
	Users        *user.Handler
	Categories   *category.Handler
	Transactions *transaction.Handler
	Import       *importcsv.Handler
	Matching     *matching.Handler
	Rates        *rates.Handler
	Reports      *report.Handler
}

func New(authenticator *auth.Authenticator, allowedOrigins []string, h Handlers) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", h.Users.PublicRoutes)

		r.Group(func(r chi.Router) {
			r.Use(authenticator.Middleware)

			r.Route("/me", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				h.Users.Routes(r)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				h.Categories.Routes(r)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				h.Transactions.Routes(r)
			})

			r.Route("/import", h.Import.Routes)

			r.Route("/matching", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				h.Matching.Routes(r)
			})

			r.Route("/rates", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				h.Rates.Routes(r)
			})

			r.Route("/reports", h.Reports.Routes)
		})
	})

	return router
}
