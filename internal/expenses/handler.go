package expenses

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fleetcore/fleetcore/internal/platform/httpx"
	"github.com/fleetcore/fleetcore/internal/shared"
)

// ReportInvalidator bumps cached report versions after ledger writes.
type ReportInvalidator interface {
	Bump(ctx context.Context) error
}

// Handler exposes the expense ledger over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	reports  ReportInvalidator
	validate *validator.Validate
}

// NewHandler builds a Handler. The invalidator is optional; without it cached
// reports age out on TTL alone.
func NewHandler(logger *slog.Logger, service *Service, reports ReportInvalidator) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		reports:  reports,
		validate: validator.New(),
	}
}

func (h *Handler) bumpReports(ctx context.Context) {
	if h.reports == nil {
		return
	}
	if err := h.reports.Bump(ctx); err != nil {
		h.logger.Warn("report cache bump failed", slog.Any("error", err))
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	expense, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("create expense failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.bumpReports(r.Context())
	httpx.JSON(w, http.StatusCreated, expense)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid expense id")
		return
	}
	expense, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, expense)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid expense id")
		return
	}
	var req UpdateExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	expense, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.logger.Error("update expense failed", slog.String("id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.bumpReports(r.Context())
	httpx.JSON(w, http.StatusOK, expense)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid expense id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete expense failed", slog.String("id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.bumpReports(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var req ListExpensesRequest
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.To = &t
		}
	}
	if v := q.Get("category_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.CategoryID = &id
		}
	}
	if v := q.Get("branch"); v != "" {
		req.Branch = &v
	}

	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage > 1000 {
		perPage = shared.DefaultPerPage
	}
	pagination := shared.NewPagination(page, perPage, 0)
	req.Limit = pagination.PerPage
	req.Offset = pagination.Offset()

	out, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list expenses failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"expenses":   out,
		"pagination": shared.NewPagination(pagination.Page, pagination.PerPage, total),
	})
}
