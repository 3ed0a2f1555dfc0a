package expenses

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches expense endpoints to the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/expenses", h.List)
	r.Post("/expenses", h.Create)
	r.Get("/expenses/{id}", h.Get)
	r.Patch("/expenses/{id}", h.Update)
	r.Delete("/expenses/{id}", h.Delete)
}
