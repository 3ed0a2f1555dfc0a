package payouts

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches payout endpoints to the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/payouts/preview", h.Preview)
	r.Get("/payouts", h.List)
	r.Post("/payouts", h.Create)
	r.Get("/payouts/{id}", h.Get)
	r.Put("/payouts/{id}/period", h.UpdatePeriod)
	r.Post("/payouts/{id}/recalculate", h.Recalculate)
	r.Post("/payouts/{id}/approve", h.Approve)
	r.Post("/payouts/{id}/pay", h.MarkPaid)
	r.Post("/payouts/{id}/cancel", h.Cancel)
	r.Get("/payments/{id}", h.GetPayment)
}
