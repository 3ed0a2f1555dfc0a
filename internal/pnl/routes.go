package pnl

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes attaches report endpoints. The CSV export carries its own
// tighter rate limit since each hit recomputes the full aggregation.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pnl/report", h.Report)
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Get("/pnl/report/export.csv", h.ExportCSV)
	})
}
