package pnl

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fleetcore/fleetcore/internal/platform/httpx"
	"github.com/fleetcore/fleetcore/internal/shared"
)

// CSVWriter serialises a report for file download. Injected so the export
// package stays free of handler concerns.
type CSVWriter func(w io.Writer, report *Report) error

// Handler exposes the P&L report over JSON and CSV.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	cache    *Cache
	writeCSV CSVWriter
}

// NewHandler builds a Handler. The cache may be nil.
func NewHandler(logger *slog.Logger, service *Service, cache *Cache, writeCSV CSVWriter) *Handler {
	return &Handler{logger: logger, service: service, cache: cache, writeCSV: writeCSV}
}

func parseQuery(r *http.Request) (Query, error) {
	q := r.URL.Query()

	from, err := time.Parse("2006-01-02", q.Get("from"))
	if err != nil {
		return Query{}, shared.NewValidation("PNL_INVALID_WINDOW", "from must be a YYYY-MM-DD date")
	}
	to, err := time.Parse("2006-01-02", q.Get("to"))
	if err != nil {
		return Query{}, shared.NewValidation("PNL_INVALID_WINDOW", "to must be a YYYY-MM-DD date")
	}

	out := Query{
		From:        from,
		To:          to,
		Granularity: shared.Granularity(q.Get("granularity")),
		Comparison:  ComparisonMode(q.Get("compare")),
	}
	if v := q.Get("branch"); v != "" {
		out.Branch = &v
	}
	return out, nil
}

// Report computes (or serves from cache) the P&L report for the window.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	report, err := h.compute(r.Context(), q)
	if err != nil {
		h.logger.Error("pnl report failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// ExportCSV streams the report as a CSV attachment. The export always
// recomputes: file downloads must reflect the store, not the cache.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Compute(r.Context(), q)
	if err != nil {
		h.logger.Error("pnl export failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="pnl_report.csv"`)
	if err := h.writeCSV(w, report); err != nil {
		h.logger.Error("pnl csv write failed", slog.Any("error", err))
	}
}

func (h *Handler) compute(ctx context.Context, q Query) (*Report, error) {
	key, err := h.cache.BuildKey(ctx, q)
	if err != nil {
		h.logger.Warn("pnl cache key failed, computing directly", slog.Any("error", err))
		return h.service.Compute(ctx, q)
	}
	var report Report
	err = h.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		return h.service.Compute(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}
