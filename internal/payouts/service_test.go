package payouts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fleetcore/fleetcore/internal/expenses"
	"github.com/fleetcore/fleetcore/internal/shared"
)

type fakeRepo struct {
	investors map[int64]*Investor
	revenue   map[int64][]VehicleRevenue
	payouts   map[uuid.UUID]*Payout
	expenses  map[uuid.UUID]*expenses.Expense
	payments  map[uuid.UUID]*Payment

	paymentErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		investors: map[int64]*Investor{},
		revenue:   map[int64][]VehicleRevenue{},
		payouts:   map[uuid.UUID]*Payout{},
		expenses:  map[uuid.UUID]*expenses.Expense{},
		payments:  map[uuid.UUID]*Payment{},
	}
}

func (f *fakeRepo) GetInvestor(_ context.Context, id int64) (*Investor, error) {
	inv, ok := f.investors[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return inv, nil
}

func (f *fakeRepo) RevenueByVehicle(_ context.Context, investorID int64, _, _ time.Time, _ *string) ([]VehicleRevenue, error) {
	return append([]VehicleRevenue(nil), f.revenue[investorID]...), nil
}

func (f *fakeRepo) CreatePayoutAndExpense(_ context.Context, p Payout, e expenses.Expense) error {
	clone := p
	f.payouts[p.ID] = &clone
	expClone := e
	f.expenses[e.ID] = &expClone
	return nil
}

func (f *fakeRepo) GetPayout(_ context.Context, id uuid.UUID) (*Payout, error) {
	p, ok := f.payouts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakeRepo) ListPayouts(_ context.Context, investorID *int64) ([]Payout, error) {
	var out []Payout
	for _, p := range f.payouts {
		if investorID != nil && p.InvestorID != *investorID {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeRepo) UpdatePayoutAndExpense(_ context.Context, p Payout, expectedVersion int64) error {
	stored, ok := f.payouts[p.ID]
	if !ok || stored.Version != expectedVersion {
		return ErrStaleVersion
	}
	p.Version = expectedVersion + 1
	p.Status = stored.Status
	f.payouts[p.ID] = &p
	if exp, ok := f.expenses[p.ExpenseID]; ok {
		exp.Amount = p.Totals.NetPayout
		exp.IncurredOn = p.PeriodTo
	}
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, status PayoutStatus, expectedVersion int64) error {
	stored, ok := f.payouts[id]
	if !ok || stored.Version != expectedVersion {
		return ErrStaleVersion
	}
	stored.Status = status
	stored.Version++
	return nil
}

func (f *fakeRepo) CancelPayoutAndExpense(_ context.Context, id uuid.UUID, expenseID uuid.UUID, expectedVersion int64) error {
	stored, ok := f.payouts[id]
	if !ok || stored.Version != expectedVersion {
		return ErrStaleVersion
	}
	stored.Status = StatusCancelled
	stored.Version++
	if exp, ok := f.expenses[expenseID]; ok {
		exp.Deleted = true
	}
	return nil
}

func (f *fakeRepo) CreatePayment(_ context.Context, pay Payment) error {
	if f.paymentErr != nil {
		return f.paymentErr
	}
	clone := pay
	f.payments[pay.ID] = &clone
	return nil
}

func (f *fakeRepo) GetPayment(_ context.Context, id uuid.UUID) (*Payment, error) {
	pay, ok := f.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *pay
	return &clone, nil
}

func (f *fakeRepo) AttachPayment(_ context.Context, payoutID, paymentID uuid.UUID) error {
	if p, ok := f.payouts[payoutID]; ok {
		id := paymentID
		p.PaymentID = &id
	}
	return nil
}

type fakeCategories struct{}

func (fakeCategories) CategoryByCode(_ context.Context, code string) (*expenses.Category, error) {
	if code != expenses.CategoryCodeInvestorPayouts {
		return nil, shared.ErrNotFound
	}
	return &expenses.Category{ID: 42, Code: code, Name: "Investor payouts", Kind: expenses.KindOPEX}, nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

var (
	staff    = Scope{Role: RoleStaff}
	investor = Scope{Role: RoleInvestor, InvestorID: 7}
)

func seededRepo() *fakeRepo {
	repo := newFakeRepo()
	repo.investors[7] = &Investor{ID: 7, Name: "Falcon Capital", CommissionPercent: 20}
	repo.revenue[7] = []VehicleRevenue{
		{VehicleID: 1, Plate: "A-11111", Bookings: 2, Revenue: 4000},
		{VehicleID: 2, Plate: "A-22222", Bookings: 3, Revenue: 6000},
	}
	return repo
}

func previewReq() PreviewRequest {
	return PreviewRequest{InvestorID: 7, PeriodFrom: day("2026-03-01"), PeriodTo: day("2026-03-31")}
}

func createReq() CreateRequest {
	return CreateRequest{InvestorID: 7, PeriodFrom: day("2026-03-01"), PeriodTo: day("2026-03-31")}
}

func TestPreviewComputesTotals(t *testing.T) {
	svc := NewService(seededRepo(), fakeCategories{}, "AED")

	preview, err := svc.Preview(context.Background(), staff, previewReq())
	require.NoError(t, err)
	require.InDelta(t, 10000, preview.Totals.TotalRevenue, 1e-9)
	require.InDelta(t, 20, preview.Totals.CommissionPercent, 1e-9)
	require.InDelta(t, 2000, preview.Totals.CommissionAmount, 1e-9)
	require.InDelta(t, 8000, preview.Totals.NetPayout, 1e-9)

	// Breakdown sorted by revenue descending.
	require.Equal(t, int64(2), preview.Totals.Breakdown[0].VehicleID)
	require.Equal(t, int64(1), preview.Totals.Breakdown[1].VehicleID)

	// Identity: netPayout + commission == totalRevenue.
	require.InDelta(t, preview.Totals.TotalRevenue,
		preview.Totals.NetPayout+preview.Totals.CommissionAmount, 0.01)
}

func TestPreviewCommissionOverride(t *testing.T) {
	svc := NewService(seededRepo(), fakeCategories{}, "AED")

	req := previewReq()
	override := 35.0
	req.CommissionOverride = &override
	preview, err := svc.Preview(context.Background(), staff, req)
	require.NoError(t, err)
	require.InDelta(t, 3500, preview.Totals.CommissionAmount, 1e-9)
	require.InDelta(t, 6500, preview.Totals.NetPayout, 1e-9)
}

func TestPreviewScope(t *testing.T) {
	svc := NewService(seededRepo(), fakeCategories{}, "AED")

	// An investor may preview their own profile.
	_, err := svc.Preview(context.Background(), investor, previewReq())
	require.NoError(t, err)

	// But not another investor's.
	other := Scope{Role: RoleInvestor, InvestorID: 99}
	_, err = svc.Preview(context.Background(), other, previewReq())
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestPreviewInvalidPeriod(t *testing.T) {
	svc := NewService(seededRepo(), fakeCategories{}, "AED")

	req := previewReq()
	req.PeriodFrom, req.PeriodTo = req.PeriodTo, req.PeriodFrom
	_, err := svc.Preview(context.Background(), staff, req)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "PAYOUT_INVALID_PERIOD", verr.Code)
}

func TestCreatePayoutWithExpense(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, fakeCategories{}, "AED")

	payout, err := svc.Create(context.Background(), staff, createReq())
	require.NoError(t, err)
	require.Equal(t, StatusDraft, payout.Status)
	require.Equal(t, int64(1), payout.Version)
	require.InDelta(t, 8000, payout.Totals.NetPayout, 1e-9)

	// Exactly one expense, linked back and snapshotting the net payout.
	exp := repo.expenses[payout.ExpenseID]
	require.NotNil(t, exp)
	require.Equal(t, int64(42), exp.CategoryID)
	require.InDelta(t, 8000, exp.Amount, 1e-9)
	require.Equal(t, day("2026-03-31"), exp.IncurredOn)
	require.NotNil(t, exp.PayoutID)
	require.Equal(t, payout.ID, *exp.PayoutID)
	require.False(t, exp.Deleted)
	require.Nil(t, payout.PaymentID)
}

func TestCreatePayoutWithPayment(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, fakeCategories{}, "AED")

	req := createReq()
	req.CreatePayment = true
	req.PaymentStatus = PaymentSuccess
	payout, err := svc.Create(context.Background(), staff, req)
	require.NoError(t, err)
	require.NotNil(t, payout.PaymentID)

	pay := repo.payments[*payout.PaymentID]
	require.NotNil(t, pay)
	require.Equal(t, PaymentSuccess, pay.Status)
	require.InDelta(t, 8000, pay.Amount, 1e-9)
}

func TestCreatePayoutPaymentPartialFailure(t *testing.T) {
	repo := seededRepo()
	repo.paymentErr = errors.New("gateway down")
	svc := NewService(repo, fakeCategories{}, "AED")

	req := createReq()
	req.CreatePayment = true
	payout, err := svc.Create(context.Background(), staff, req)

	var perr *shared.PartialFailureError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "PAYOUT_PAYMENT_SYNC_FAILED", perr.Code)
	require.NotNil(t, payout)
	require.Equal(t, payout.ID.String(), perr.CreatedID)

	// Payout and expense did land.
	require.Contains(t, repo.payouts, payout.ID)
	require.Contains(t, repo.expenses, payout.ExpenseID)
}

func TestCreateRequiresStaff(t *testing.T) {
	svc := NewService(seededRepo(), fakeCategories{}, "AED")
	_, err := svc.Create(context.Background(), investor, createReq())
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestUpdatePeriodPropagatesToExpense(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, fakeCategories{}, "AED")

	payout, err := svc.Create(context.Background(), staff, createReq())
	require.NoError(t, err)

	// Revenue changed between drafting and the edit.
	repo.revenue[7] = []VehicleRevenue{{VehicleID: 1, Plate: "A-11111", Bookings: 1, Revenue: 5000}}

	updated, err := svc.UpdatePeriod(context.Background(), staff, payout.ID, UpdatePeriodRequest{
		PeriodFrom: day("2026-04-01"),
		PeriodTo:   day("2026-04-30"),
		Version:    payout.Version,
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), updated.Version)
	require.InDelta(t, 4000, updated.Totals.NetPayout, 1e-9)

	exp := repo.expenses[payout.ExpenseID]
	require.InDelta(t, 4000, exp.Amount, 1e-9)
	require.Equal(t, day("2026-04-30"), exp.IncurredOn)
}

func TestUpdatePeriodStaleVersion(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, fakeCategories{}, "AED")

	payout, err := svc.Create(context.Background(), staff, createReq())
	require.NoError(t, err)

	_, err = svc.UpdatePeriod(context.Background(), staff, payout.ID, UpdatePeriodRequest{
		PeriodFrom: payout.PeriodFrom,
		PeriodTo:   payout.PeriodTo,
		Version:    99,
	})
	var cerr *shared.StateConflictError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "PAYOUT_VERSION_CONFLICT", cerr.Code)
}

func TestStatusTransitions(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, fakeCategories{}, "AED")

	payout, err := svc.Create(context.Background(), staff, createReq())
	require.NoError(t, err)

	// DRAFT cannot be paid directly.
	_, err = svc.MarkPaid(context.Background(), staff, payout.ID, 1)
	var cerr *shared.StateConflictError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "PAYOUT_INVALID_TRANSITION", cerr.Code)

	approved, err := svc.Approve(context.Background(), staff, payout.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)

	paid, err := svc.MarkPaid(context.Background(), staff, payout.ID, 2)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)

	// PAID freezes the financial total.
	_, err = svc.UpdatePeriod(context.Background(), staff, payout.ID, UpdatePeriodRequest{
		PeriodFrom: payout.PeriodFrom, PeriodTo: payout.PeriodTo, Version: 3,
	})
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "PAYOUT_TERMINAL_STATUS", cerr.Code)

	// And cannot be cancelled.
	_, err = svc.Cancel(context.Background(), staff, payout.ID, 3)
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "PAYOUT_INVALID_TRANSITION", cerr.Code)
}

func TestCancelSoftDeletesExpenseKeepsPayment(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, fakeCategories{}, "AED")

	req := createReq()
	req.CreatePayment = true
	payout, err := svc.Create(context.Background(), staff, req)
	require.NoError(t, err)
	require.NotNil(t, payout.PaymentID)

	cancelled, err := svc.Cancel(context.Background(), staff, payout.ID, payout.Version)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	// Expense is soft-deleted, not removed.
	exp := repo.expenses[payout.ExpenseID]
	require.NotNil(t, exp)
	require.True(t, exp.Deleted)

	// Payment history survives and stays queryable.
	pay, err := svc.GetPayment(context.Background(), staff, *payout.PaymentID)
	require.NoError(t, err)
	require.InDelta(t, 8000, pay.Amount, 1e-9)
}

func TestGetScopedToOwnInvestor(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, fakeCategories{}, "AED")

	payout, err := svc.Create(context.Background(), staff, createReq())
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), investor, payout.ID)
	require.NoError(t, err)
	require.Equal(t, payout.ID, got.ID)

	other := Scope{Role: RoleInvestor, InvestorID: 99}
	_, err = svc.Get(context.Background(), other, payout.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestListForcesInvestorScope(t *testing.T) {
	repo := seededRepo()
	repo.investors[8] = &Investor{ID: 8, Name: "Oryx Holdings", CommissionPercent: 10}
	repo.revenue[8] = []VehicleRevenue{{VehicleID: 9, Plate: "B-33333", Bookings: 1, Revenue: 1000}}
	svc := NewService(repo, fakeCategories{}, "AED")

	_, err := svc.Create(context.Background(), staff, createReq())
	require.NoError(t, err)
	otherReq := createReq()
	otherReq.InvestorID = 8
	_, err = svc.Create(context.Background(), staff, otherReq)
	require.NoError(t, err)

	all, err := svc.List(context.Background(), staff, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Investor 7 sees only their own even when asking for someone else's.
	eight := int64(8)
	own, err := svc.List(context.Background(), investor, &eight)
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, int64(7), own[0].InvestorID)
}
