package payouts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fleetcore/fleetcore/internal/expenses"
	"github.com/fleetcore/fleetcore/internal/shared"
)

// CategoryResolver locates the reserved expense category the payout engine
// writes under. Satisfied by the expenses repository.
type CategoryResolver interface {
	CategoryByCode(ctx context.Context, code string) (*expenses.Category, error)
}

// Service implements the payout computation and the payout/expense/payment
// synchronization rules.
type Service struct {
	repo       Repository
	categories CategoryResolver
	currency   string
	now        func() time.Time
}

// NewService builds a Service. currency falls back to the shared default.
func NewService(repo Repository, categories CategoryResolver, currency string) *Service {
	if currency == "" {
		currency = shared.DefaultCurrency
	}
	return &Service{repo: repo, categories: categories, currency: currency, now: time.Now}
}

func (s *Service) requireStaff(scope Scope) error {
	if !scope.staff() {
		return shared.ErrForbidden
	}
	return nil
}

// computeTotals snapshots the revenue attribution for an investor and period.
func (s *Service) computeTotals(ctx context.Context, investorID int64, from, to time.Time, branch *string, override *float64) (Totals, error) {
	if to.Before(from) {
		return Totals{}, shared.NewValidation("PAYOUT_INVALID_PERIOD", "period end precedes start")
	}
	if override != nil && (*override < 0 || *override > 100) {
		return Totals{}, shared.NewValidation("PAYOUT_COMMISSION_INVALID", "commission percent must be between 0 and 100")
	}

	investor, err := s.repo.GetInvestor(ctx, investorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Totals{}, shared.NewNotFound("investor", fmt.Sprintf("%d", investorID))
		}
		return Totals{}, fmt.Errorf("get investor: %w", err)
	}

	breakdown, err := s.repo.RevenueByVehicle(ctx, investorID, from, to, branch)
	if err != nil {
		return Totals{}, fmt.Errorf("revenue by vehicle: %w", err)
	}
	sort.SliceStable(breakdown, func(i, j int) bool {
		if breakdown[i].Revenue != breakdown[j].Revenue {
			return breakdown[i].Revenue > breakdown[j].Revenue
		}
		return breakdown[i].VehicleID < breakdown[j].VehicleID
	})

	var totalRevenue float64
	for _, row := range breakdown {
		totalRevenue += row.Revenue
	}

	pct := investor.CommissionPercent
	if override != nil {
		pct = *override
	}
	commission := totalRevenue * pct / 100

	return Totals{
		TotalRevenue:      shared.Round2(totalRevenue),
		CommissionPercent: pct,
		CommissionAmount:  shared.Round2(commission),
		NetPayout:         shared.Round2(totalRevenue - commission),
		Breakdown:         breakdown,
	}, nil
}

// Preview computes a payout proposal without persisting anything. Investors
// may preview only their own profile.
func (s *Service) Preview(ctx context.Context, scope Scope, req PreviewRequest) (*Preview, error) {
	if !scope.canRead(req.InvestorID) {
		return nil, shared.ErrForbidden
	}
	totals, err := s.computeTotals(ctx, req.InvestorID, req.PeriodFrom, req.PeriodTo, req.Branch, req.CommissionOverride)
	if err != nil {
		return nil, err
	}
	return &Preview{
		InvestorID: req.InvestorID,
		PeriodFrom: req.PeriodFrom,
		PeriodTo:   req.PeriodTo,
		Totals:     totals,
	}, nil
}

// Create persists a payout with its generated expense in one transaction,
// then creates the optional payment. A payment failure after the commit is a
// partial failure carrying the payout id so an operator can complete the
// sequence.
func (s *Service) Create(ctx context.Context, scope Scope, req CreateRequest) (*Payout, error) {
	if err := s.requireStaff(scope); err != nil {
		return nil, err
	}
	if req.CreatePayment && req.PaymentStatus != "" && !req.PaymentStatus.Valid() {
		return nil, shared.NewValidation("PAYOUT_PAYMENT_STATUS_INVALID",
			fmt.Sprintf("unsupported payment status %q", req.PaymentStatus))
	}

	totals, err := s.computeTotals(ctx, req.InvestorID, req.PeriodFrom, req.PeriodTo, req.Branch, req.CommissionOverride)
	if err != nil {
		return nil, err
	}

	category, err := s.categories.CategoryByCode(ctx, expenses.CategoryCodeInvestorPayouts)
	if err != nil {
		return nil, fmt.Errorf("resolve payout category: %w", err)
	}

	now := s.now()
	payout := Payout{
		ID:         uuid.New(),
		InvestorID: req.InvestorID,
		PeriodFrom: req.PeriodFrom,
		PeriodTo:   req.PeriodTo,
		Totals:     totals,
		Currency:   s.currency,
		Status:     StatusDraft,
		ExpenseID:  uuid.New(),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	expense := expenses.Expense{
		ID:          payout.ExpenseID,
		CategoryID:  category.ID,
		Description: fmt.Sprintf("Investor payout %s", payout.ID),
		Amount:      totals.NetPayout,
		Currency:    payout.Currency,
		IncurredOn:  req.PeriodTo,
		PayoutID:    &payout.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreatePayoutAndExpense(ctx, payout, expense); err != nil {
		return nil, fmt.Errorf("create payout: %w", err)
	}

	if req.CreatePayment {
		status := req.PaymentStatus
		if status == "" {
			status = PaymentPending
		}
		payment := Payment{
			ID:        uuid.New(),
			PayoutID:  payout.ID,
			Amount:    totals.NetPayout,
			Currency:  payout.Currency,
			Status:    status,
			CreatedAt: now,
		}
		if err := s.repo.CreatePayment(ctx, payment); err != nil {
			return &payout, shared.NewPartialFailure("PAYOUT_PAYMENT_SYNC_FAILED",
				"payout and expense created but payment creation failed", payout.ID.String(), err)
		}
		if err := s.repo.AttachPayment(ctx, payout.ID, payment.ID); err != nil {
			return &payout, shared.NewPartialFailure("PAYOUT_PAYMENT_SYNC_FAILED",
				"payment created but could not be linked to the payout", payout.ID.String(), err)
		}
		payout.PaymentID = &payment.ID
	}
	return &payout, nil
}

func (s *Service) loadPayout(ctx context.Context, id uuid.UUID) (*Payout, error) {
	p, err := s.repo.GetPayout(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFound("payout", id.String())
		}
		return nil, fmt.Errorf("get payout: %w", err)
	}
	return p, nil
}

// editable guards financial edits: PAID and CANCELLED snapshots are frozen.
func editable(status PayoutStatus) bool {
	return status == StatusDraft || status == StatusApproved
}

// UpdatePeriod moves the payout to a new period, recomputes the snapshot and
// propagates amount and date to the linked expense.
func (s *Service) UpdatePeriod(ctx context.Context, scope Scope, id uuid.UUID, req UpdatePeriodRequest) (*Payout, error) {
	if err := s.requireStaff(scope); err != nil {
		return nil, err
	}
	p, err := s.loadPayout(ctx, id)
	if err != nil {
		return nil, err
	}
	if !editable(p.Status) {
		return nil, shared.NewStateConflict("PAYOUT_TERMINAL_STATUS",
			"a PAID or CANCELLED payout cannot be edited", string(p.Status))
	}

	totals, err := s.computeTotals(ctx, p.InvestorID, req.PeriodFrom, req.PeriodTo, nil, &p.Totals.CommissionPercent)
	if err != nil {
		return nil, err
	}

	updated := *p
	updated.PeriodFrom = req.PeriodFrom
	updated.PeriodTo = req.PeriodTo
	updated.Totals = totals

	if err := s.repo.UpdatePayoutAndExpense(ctx, updated, req.Version); err != nil {
		if errors.Is(err, ErrStaleVersion) {
			return nil, shared.NewStateConflict("PAYOUT_VERSION_CONFLICT",
				"payout was modified concurrently, re-read and retry", string(p.Status))
		}
		return nil, fmt.Errorf("update payout: %w", err)
	}
	updated.Version = req.Version + 1
	return &updated, nil
}

// Recalculate refreshes the snapshot for the existing period, for when
// underlying invoices changed after the payout was drafted.
func (s *Service) Recalculate(ctx context.Context, scope Scope, id uuid.UUID, version int64) (*Payout, error) {
	p, err := s.loadPayout(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.UpdatePeriod(ctx, scope, id, UpdatePeriodRequest{
		PeriodFrom: p.PeriodFrom,
		PeriodTo:   p.PeriodTo,
		Version:    version,
	})
}

// Approve transitions DRAFT to APPROVED.
func (s *Service) Approve(ctx context.Context, scope Scope, id uuid.UUID, version int64) (*Payout, error) {
	return s.transition(ctx, scope, id, version, StatusApproved, map[PayoutStatus]bool{StatusDraft: true})
}

// MarkPaid transitions APPROVED to PAID, freezing the financial total.
func (s *Service) MarkPaid(ctx context.Context, scope Scope, id uuid.UUID, version int64) (*Payout, error) {
	return s.transition(ctx, scope, id, version, StatusPaid, map[PayoutStatus]bool{StatusApproved: true})
}

func (s *Service) transition(ctx context.Context, scope Scope, id uuid.UUID, version int64, target PayoutStatus, allowedFrom map[PayoutStatus]bool) (*Payout, error) {
	if err := s.requireStaff(scope); err != nil {
		return nil, err
	}
	p, err := s.loadPayout(ctx, id)
	if err != nil {
		return nil, err
	}
	if !allowedFrom[p.Status] {
		return nil, shared.NewStateConflict("PAYOUT_INVALID_TRANSITION",
			fmt.Sprintf("cannot move payout to %s", target), string(p.Status))
	}
	if err := s.repo.UpdateStatus(ctx, id, target, version); err != nil {
		if errors.Is(err, ErrStaleVersion) {
			return nil, shared.NewStateConflict("PAYOUT_VERSION_CONFLICT",
				"payout was modified concurrently, re-read and retry", string(p.Status))
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	p.Status = target
	p.Version = version + 1
	return p, nil
}

// Cancel sets a non-PAID payout to CANCELLED and soft-deletes its expense in
// one transaction. The linked payment survives: payment history is audit
// evidence and must remain queryable after cancellation.
func (s *Service) Cancel(ctx context.Context, scope Scope, id uuid.UUID, version int64) (*Payout, error) {
	if err := s.requireStaff(scope); err != nil {
		return nil, err
	}
	p, err := s.loadPayout(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusPaid || p.Status == StatusCancelled {
		return nil, shared.NewStateConflict("PAYOUT_INVALID_TRANSITION",
			"a PAID or CANCELLED payout cannot be cancelled", string(p.Status))
	}

	if err := s.repo.CancelPayoutAndExpense(ctx, id, p.ExpenseID, version); err != nil {
		if errors.Is(err, ErrStaleVersion) {
			return nil, shared.NewStateConflict("PAYOUT_VERSION_CONFLICT",
				"payout was modified concurrently, re-read and retry", string(p.Status))
		}
		return nil, fmt.Errorf("cancel payout: %w", err)
	}
	p.Status = StatusCancelled
	p.Version = version + 1
	return p, nil
}

// Get returns one payout. Investors may only read their own.
func (s *Service) Get(ctx context.Context, scope Scope, id uuid.UUID) (*Payout, error) {
	p, err := s.loadPayout(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.canRead(p.InvestorID) {
		return nil, shared.ErrForbidden
	}
	return p, nil
}

// List returns payouts, forced to the caller's own profile for investors.
func (s *Service) List(ctx context.Context, scope Scope, investorID *int64) ([]Payout, error) {
	if scope.Role == RoleInvestor {
		own := scope.InvestorID
		investorID = &own
	} else if !scope.staff() {
		return nil, shared.ErrForbidden
	}
	out, err := s.repo.ListPayouts(ctx, investorID)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	return out, nil
}

// GetPayment returns a payment record, scoped through its owning payout.
func (s *Service) GetPayment(ctx context.Context, scope Scope, id uuid.UUID) (*Payment, error) {
	pay, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewNotFound("payment", id.String())
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	p, err := s.loadPayout(ctx, pay.PayoutID)
	if err != nil {
		return nil, err
	}
	if !scope.canRead(p.InvestorID) {
		return nil, shared.ErrForbidden
	}
	return pay, nil
}
