package billing

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches pricing and invoice endpoints to the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/billing/quote", h.Quote)
	r.Post("/invoices", h.Create)
	r.Get("/invoices/{id}", h.Get)
	r.Put("/invoices/{id}/items", h.Reprice)
	r.Post("/invoices/{id}/issue", h.Issue)
	r.Post("/invoices/{id}/pay", h.MarkPaid)
	r.Post("/invoices/{id}/void", h.Void)
}
