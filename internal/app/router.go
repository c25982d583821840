package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/razezix/authgate/internal/accounts"
	"github.com/razezix/authgate/internal/authn"
	"github.com/razezix/authgate/internal/authz"
	"github.com/razezix/authgate/internal/business"
	"github.com/razezix/authgate/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Authn           authn.Middleware
	AccountsHandler *accounts.Handler
	AdminHandler    *authz.Handler
	BusinessHandler *business.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with authgate defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Authn:   params.Authn,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/auth", func(r chi.Router) {
		params.AccountsHandler.MountRoutes(r)
	})

	r.Route("/api/admin", func(r chi.Router) {
		params.AdminHandler.MountRoutes(r)
	})

	r.Route("/api", func(r chi.Router) {
		params.BusinessHandler.MountRoutes(r)
	})

	return r
}
