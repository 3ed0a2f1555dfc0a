package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fleetcore/fleetcore/internal/platform/httpx"
	"github.com/fleetcore/fleetcore/internal/settings"
	"github.com/fleetcore/fleetcore/internal/shared"
)

// TaxResolver supplies the tax parameters for a pricing call.
type TaxResolver interface {
	TaxConfig(ctx context.Context) (settings.TaxConfig, error)
}

// ReportInvalidator bumps cached report versions after ledger writes.
type ReportInvalidator interface {
	Bump(ctx context.Context) error
}

// Handler exposes pricing and invoice endpoints over JSON.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	tax         TaxResolver
	idempotency *shared.IdempotencyStore
	reports     ReportInvalidator
	validate    *validator.Validate
}

// NewHandler builds a Handler. The idempotency store and report invalidator
// are optional; when nil, Idempotency-Key headers are ignored and cached
// reports age out on TTL alone.
func NewHandler(logger *slog.Logger, service *Service, tax TaxResolver, idempotency *shared.IdempotencyStore, reports ReportInvalidator) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		tax:         tax,
		idempotency: idempotency,
		reports:     reports,
		validate:    validator.New(),
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

func (h *Handler) taxConfig(w http.ResponseWriter, r *http.Request) (settings.TaxConfig, bool) {
	cfg, err := h.tax.TaxConfig(r.Context())
	if err != nil {
		h.logger.Error("resolve tax config failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not resolve tax configuration")
		return settings.TaxConfig{}, false
	}
	return cfg, true
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req PriceBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	cfg, ok := h.taxConfig(w, r)
	if !ok {
		return
	}

	quote, err := h.service.PriceBooking(r.Context(), req.BookingID, req.RateOverride, cfg)
	if err != nil {
		h.logger.Error("price booking failed", slog.Int64("booking_id", req.BookingID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	cfg, ok := h.taxConfig(w, r)
	if !ok {
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if h.idempotency != nil && idemKey != "" {
		if err := h.idempotency.CheckAndInsert(r.Context(), idemKey, "billing"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "request already processed")
				return
			}
			h.logger.Error("idempotency check failed", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "idempotency check failed")
			return
		}
	}

	inv, err := h.service.CreateInvoice(r.Context(), req.BookingID, req.RateOverride, cfg)
	if err != nil {
		if h.idempotency != nil && idemKey != "" {
			if delErr := h.idempotency.Delete(r.Context(), idemKey); delErr != nil {
				h.logger.Warn("release idempotency key failed", slog.Any("error", delErr))
			}
		}
		h.logger.Error("create invoice failed", slog.Int64("booking_id", req.BookingID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.bumpReports(r.Context())
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) Reprice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	var req RepriceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	cfg, ok := h.taxConfig(w, r)
	if !ok {
		return
	}

	inv, err := h.service.Reprice(r.Context(), id, req.Items, req.Version, cfg)
	if err != nil {
		h.logger.Error("reprice invoice failed", slog.Int64("invoice_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.bumpReports(r.Context())
	httpx.JSON(w, http.StatusOK, inv)
}

type transitionFunc func(ctx context.Context, invoiceID, expectedVersion int64) (*Invoice, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, fn transitionFunc) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
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

	inv, err := fn(r.Context(), id, req.Version)
	if err != nil {
		h.logger.Error(action+" invoice failed", slog.Int64("invoice_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.bumpReports(r.Context())
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "issue", h.service.Issue)
}

func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "mark paid", h.service.MarkPaid)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "void", h.service.Void)
}
