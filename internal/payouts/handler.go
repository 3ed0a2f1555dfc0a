package payouts

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fleetcore/fleetcore/internal/platform/httpx"
)

// Identity headers stamped by the upstream authenticating gateway.
const (
	headerRole     = "X-User-Role"
	headerInvestor = "X-Investor-Id"
)

// ReportInvalidator bumps cached report versions after ledger writes.
type ReportInvalidator interface {
	Bump(ctx context.Context) error
}

// Handler exposes payout endpoints over JSON.
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

// scopeFrom reads the caller identity the gateway stamped on the request.
// Requests without a role header are internal staff traffic.
func scopeFrom(r *http.Request) Scope {
	scope := Scope{Role: r.Header.Get(headerRole)}
	if scope.Role == "" {
		scope.Role = RoleStaff
	}
	if v := r.Header.Get(headerInvestor); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			scope.InvestorID = id
		}
	}
	return scope
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	preview, err := h.service.Preview(r.Context(), scopeFrom(r), req)
	if err != nil {
		h.logger.Error("payout preview failed", slog.Int64("investor_id", req.InvestorID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, preview)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	payout, err := h.service.Create(r.Context(), scopeFrom(r), req)
	if err != nil {
		h.logger.Error("create payout failed", slog.Int64("investor_id", req.InvestorID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.bumpReports(r.Context())
	httpx.JSON(w, http.StatusCreated, payout)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payout id")
		return
	}
	payout, err := h.service.Get(r.Context(), scopeFrom(r), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payout)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var investorID *int64
	if v := r.URL.Query().Get("investor_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			investorID = &id
		}
	}
	payouts, err := h.service.List(r.Context(), scopeFrom(r), investorID)
	if err != nil {
		h.logger.Error("list payouts failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payouts": payouts})
}

func (h *Handler) UpdatePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payout id")
		return
	}
	var req UpdatePeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	payout, err := h.service.UpdatePeriod(r.Context(), scopeFrom(r), id, req)
	if err != nil {
		h.logger.Error("update payout failed", slog.String("id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.bumpReports(r.Context())
	httpx.JSON(w, http.StatusOK, payout)
}

type transitionFunc func(r *http.Request, id uuid.UUID, version int64) (*Payout, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, fn transitionFunc) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payout id")
		return
	}
	var req TransitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	payout, err := fn(r, id, req.Version)
	if err != nil {
		h.logger.Error(action+" payout failed", slog.String("id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.bumpReports(r.Context())
	httpx.JSON(w, http.StatusOK, payout)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve", func(r *http.Request, id uuid.UUID, version int64) (*Payout, error) {
		return h.service.Approve(r.Context(), scopeFrom(r), id, version)
	})
}

func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "mark paid", func(r *http.Request, id uuid.UUID, version int64) (*Payout, error) {
		return h.service.MarkPaid(r.Context(), scopeFrom(r), id, version)
	})
}

func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "recalculate", func(r *http.Request, id uuid.UUID, version int64) (*Payout, error) {
		return h.service.Recalculate(r.Context(), scopeFrom(r), id, version)
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", func(r *http.Request, id uuid.UUID, version int64) (*Payout, error) {
		return h.service.Cancel(r.Context(), scopeFrom(r), id, version)
	})
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment id")
		return
	}
	payment, err := h.service.GetPayment(r.Context(), scopeFrom(r), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}
