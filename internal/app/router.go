package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fleetcore/fleetcore/internal/billing"
	"github.com/fleetcore/fleetcore/internal/expenses"
	"github.com/fleetcore/fleetcore/internal/observability"
	"github.com/fleetcore/fleetcore/internal/payouts"
	"github.com/fleetcore/fleetcore/internal/pnl"
	"github.com/fleetcore/fleetcore/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	BillingHandler  *billing.Handler
	ExpensesHandler *expenses.Handler
	PnLHandler      *pnl.Handler
	PayoutsHandler  *payouts.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Fleetcore defaults.
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
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		params.BillingHandler.MountRoutes(api)
		params.ExpensesHandler.MountRoutes(api)
		params.PnLHandler.MountRoutes(api)
		params.PayoutsHandler.MountRoutes(api)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(jr chi.Router) {
			params.JobHandler.MountRoutes(jr)
		})
	}

	return r
}
