package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/clinora/clinora/internal/auth"
	"github.com/clinora/clinora/internal/estoque"
	"github.com/clinora/clinora/internal/financeiro"
	"github.com/clinora/clinora/internal/financeiro/webhook"
	"github.com/clinora/clinora/internal/observability"
	"github.com/clinora/clinora/internal/pacientes"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Verifier          *auth.Verifier
	PacientesHandler  *pacientes.Handler
	EstoqueHandler    *estoque.Handler
	FinanceiroHandler *financeiro.Handler
	WebhookHandler    *webhook.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router. Webhook, health and metrics stay
// outside the bearer-token group; everything else is tenant scoped.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
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

	if params.WebhookHandler != nil {
		// The gateway retries aggressively; give the webhook its own
		// tighter rate budget instead of the per-tenant one.
		r.With(httprate.Limit(300, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
			Method(http.MethodPost, "/financeiro/webhook", params.WebhookHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.Verifier.RequireTenant)

		r.Route("/pacientes", params.PacientesHandler.MountRoutes)
		r.Route("/estoque", params.EstoqueHandler.MountRoutes)
		r.Route("/financeiro", params.FinanceiroHandler.MountRoutes)
	})

	return r
}
