package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fleetcore/fleetcore/internal/expenses"
	"github.com/fleetcore/fleetcore/internal/settings"
	"github.com/fleetcore/fleetcore/internal/shared"
)

// dueDateOffset is the default payment term applied to new invoices.
const dueDateOffset = 30 * 24 * time.Hour

// FineRecorder writes fine expenses on behalf of the pricing engine.
type FineRecorder interface {
	RecordFine(ctx context.Context, rec expenses.FineRecord) (*expenses.Expense, error)
}

// Service implements the invoice pricing engine.
type Service struct {
	repo  Repository
	fines FineRecorder
	now   func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository, fines FineRecorder) *Service {
	return &Service{repo: repo, fines: fines, now: time.Now}
}

func (s *Service) loadBooking(ctx context.Context, bookingID int64) (*Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFound("booking", strconv.FormatInt(bookingID, 10))
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking.EndDate.Before(booking.StartDate) {
		return nil, shared.NewValidation("BOOKING_INVALID_PERIOD", "booking end date precedes start date")
	}
	return booking, nil
}

// PriceBooking produces the signed line-item ledger and derived totals for a
// booking without persisting anything.
func (s *Service) PriceBooking(ctx context.Context, bookingID int64, rateOverride *float64, cfg settings.TaxConfig) (*Quote, error) {
	if rateOverride != nil && *rateOverride <= 0 {
		return nil, shared.NewValidation("RATE_OVERRIDE_INVALID", "rate override must be positive")
	}
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	items := BuildLineItems(*booking, rateOverride)
	totals := ComputeTotals(items, cfg.VATPercent)
	return &Quote{
		Items:       items,
		Subtotal:    totals.Subtotal,
		TaxableBase: totals.TaxableBase,
		TaxAmount:   totals.TaxAmount,
		Total:       totals.Total,
		Currency:    cfg.Currency,
	}, nil
}

// CreateInvoice prices the booking and persists the invoice. At most one
// invoice exists per booking; a second attempt surfaces the conflict. Fine
// items present at creation flow into the expense ledger immediately.
func (s *Service) CreateInvoice(ctx context.Context, bookingID int64, rateOverride *float64, cfg settings.TaxConfig) (*Invoice, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if rateOverride != nil && *rateOverride <= 0 {
		return nil, shared.NewValidation("RATE_OVERRIDE_INVALID", "rate override must be positive")
	}

	items := BuildLineItems(*booking, rateOverride)
	totals := ComputeTotals(items, cfg.VATPercent)

	issueDate := s.now().UTC().Truncate(24 * time.Hour)
	sequence, err := s.repo.NextInvoiceSequence(ctx, issueDate)
	if err != nil {
		return nil, fmt.Errorf("next invoice sequence: %w", err)
	}

	now := s.now()
	inv := Invoice{
		Number:     InvoiceNumber(issueDate, sequence),
		BookingID:  booking.ID,
		IssueDate:  issueDate,
		DueDate:    issueDate.Add(dueDateOffset),
		Items:      items,
		Subtotal:   totals.Subtotal,
		TaxAmount:  totals.TaxAmount,
		Total:      totals.Total,
		Currency:   cfg.Currency,
		Status:     StatusDraft,
		FineLabels: FineLabels(items),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	id, err := s.repo.CreateInvoice(ctx, inv)
	if err != nil {
		if errors.Is(err, ErrDuplicateInvoice) {
			return nil, shared.NewStateConflict("INVOICE_ALREADY_EXISTS",
				"booking already has an invoice", "")
		}
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	inv.ID = id

	if err := s.recordFines(ctx, inv, *booking, inv.FineLabels); err != nil {
		return &inv, shared.NewPartialFailure("INVOICE_FINE_SYNC_FAILED",
			"invoice created but fine expense creation failed", strconv.FormatInt(id, 10), err)
	}
	return &inv, nil
}

// Reprice replaces the line items of a mutable invoice and recomputes its
// totals atomically. New fine labels, detected by diffing against the labels
// stored on the prior save, flow into the expense ledger exactly once.
func (s *Service) Reprice(ctx context.Context, invoiceID int64, newItems []LineItem, expectedVersion int64, cfg settings.TaxConfig) (*Invoice, error) {
	if len(newItems) == 0 {
		return nil, shared.NewValidation("INVOICE_ITEMS_REQUIRED", "at least one line item is required")
	}

	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFound("invoice", strconv.FormatInt(invoiceID, 10))
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if inv.Status.Terminal() {
		return nil, shared.NewStateConflict("INVOICE_TERMINAL_STATUS",
			"a PAID or VOID invoice cannot be repriced", string(inv.Status))
	}

	totals := ComputeTotals(newItems, cfg.VATPercent)
	currentFines := FineLabels(newItems)
	freshFines := NewFineLabels(currentFines, inv.FineLabels)

	updated := *inv
	updated.Items = newItems
	updated.Subtotal = totals.Subtotal
	updated.TaxAmount = totals.TaxAmount
	updated.Total = totals.Total
	updated.FineLabels = mergeFineLabels(inv.FineLabels, freshFines)

	if err := s.repo.ReplaceItems(ctx, updated, expectedVersion); err != nil {
		if errors.Is(err, ErrStaleVersion) {
			return nil, shared.NewStateConflict("INVOICE_VERSION_CONFLICT",
				"invoice was modified concurrently, re-read and retry", string(inv.Status))
		}
		return nil, fmt.Errorf("replace items: %w", err)
	}
	updated.Version = expectedVersion + 1

	if len(freshFines) > 0 {
		booking, err := s.repo.GetBooking(ctx, inv.BookingID)
		if err != nil {
			return &updated, shared.NewPartialFailure("INVOICE_FINE_SYNC_FAILED",
				"invoice repriced but fine expense creation failed", strconv.FormatInt(invoiceID, 10), err)
		}
		if err := s.recordFineItems(ctx, updated, *booking, newItems, freshFines); err != nil {
			return &updated, shared.NewPartialFailure("INVOICE_FINE_SYNC_FAILED",
				"invoice repriced but fine expense creation failed", strconv.FormatInt(invoiceID, 10), err)
		}
	}
	return &updated, nil
}

func mergeFineLabels(stored, fresh []string) []string {
	out := append([]string(nil), stored...)
	return append(out, fresh...)
}

func (s *Service) recordFines(ctx context.Context, inv Invoice, booking Booking, labels []string) error {
	return s.recordFineItems(ctx, inv, booking, inv.Items, labels)
}

func (s *Service) recordFineItems(ctx context.Context, inv Invoice, booking Booking, items []LineItem, labels []string) error {
	if s.fines == nil || len(labels) == 0 {
		return nil
	}
	amounts := make(map[string]float64, len(items))
	for _, item := range items {
		amounts[item.Label] = item.Amount
	}
	for _, label := range labels {
		rec := expenses.FineRecord{
			Label:      label,
			Amount:     amounts[label],
			Currency:   inv.Currency,
			IncurredOn: inv.IssueDate,
			Branch:     booking.Branch,
		}
		if _, err := s.fines.RecordFine(ctx, rec); err != nil {
			return fmt.Errorf("record fine %q: %w", label, err)
		}
	}
	return nil
}

// Issue transitions a draft invoice to ISSUED.
func (s *Service) Issue(ctx context.Context, invoiceID, expectedVersion int64) (*Invoice, error) {
	return s.transition(ctx, invoiceID, expectedVersion, StatusIssued, map[InvoiceStatus]bool{StatusDraft: true})
}

// MarkPaid transitions an issued invoice to PAID (terminal).
func (s *Service) MarkPaid(ctx context.Context, invoiceID, expectedVersion int64) (*Invoice, error) {
	return s.transition(ctx, invoiceID, expectedVersion, StatusPaid, map[InvoiceStatus]bool{StatusIssued: true})
}

// Void transitions a mutable invoice to VOID (terminal).
func (s *Service) Void(ctx context.Context, invoiceID, expectedVersion int64) (*Invoice, error) {
	return s.transition(ctx, invoiceID, expectedVersion, StatusVoid, map[InvoiceStatus]bool{StatusDraft: true, StatusIssued: true})
}

func (s *Service) transition(ctx context.Context, invoiceID, expectedVersion int64, target InvoiceStatus, allowedFrom map[InvoiceStatus]bool) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFound("invoice", strconv.FormatInt(invoiceID, 10))
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if !allowedFrom[inv.Status] {
		return nil, shared.NewStateConflict("INVOICE_INVALID_TRANSITION",
			fmt.Sprintf("cannot move invoice to %s", target), string(inv.Status))
	}
	if err := s.repo.UpdateStatus(ctx, invoiceID, target, expectedVersion); err != nil {
		if errors.Is(err, ErrStaleVersion) {
			return nil, shared.NewStateConflict("INVOICE_VERSION_CONFLICT",
				"invoice was modified concurrently, re-read and retry", string(inv.Status))
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	inv.Status = target
	inv.Version = expectedVersion + 1
	return inv, nil
}

// GetInvoice returns a single invoice.
func (s *Service) GetInvoice(ctx context.Context, invoiceID int64) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFound("invoice", strconv.FormatInt(invoiceID, 10))
		}
		return nil, err
	}
	return inv, nil
}
