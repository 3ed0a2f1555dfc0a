package pnl

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetcore/fleetcore/internal/shared"
)

type fakeRepo struct {
	invoices    []InvoiceRecord
	expenses    []ExpenseRecord
	maintenance []MaintenanceRecord
}

func (f *fakeRepo) InvoicesInWindow(_ context.Context, from, to time.Time) ([]InvoiceRecord, error) {
	var out []InvoiceRecord
	for _, inv := range f.invoices {
		if !inv.IssueDate.Before(from) && !inv.IssueDate.After(to) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeRepo) ExpensesInWindow(_ context.Context, from, to time.Time, branch *string) ([]ExpenseRecord, error) {
	var out []ExpenseRecord
	for _, e := range f.expenses {
		if e.IncurredOn.Before(from) || e.IncurredOn.After(to) {
			continue
		}
		if branch != nil && (e.Branch == nil || *e.Branch != *branch) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeRepo) MaintenanceInWindow(_ context.Context, from, to time.Time, branch *string) ([]MaintenanceRecord, error) {
	var out []MaintenanceRecord
	for _, m := range f.maintenance {
		if m.ServiceDate.Before(from) || m.ServiceDate.After(to) {
			continue
		}
		if branch != nil && (m.Branch == nil || *m.Branch != *branch) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func strPtr(s string) *string { return &s }

func baseQuery() Query {
	return Query{
		From:        day("2026-03-01"),
		To:          day("2026-03-31"),
		Granularity: shared.GranularityMonth,
		Comparison:  CompareNone,
	}
}

func expense(amount float64, on string, code, name, kind string) ExpenseRecord {
	rec := ExpenseRecord{Amount: amount, IncurredOn: day(on)}
	if code != "" {
		rec.CategoryCode = strPtr(code)
	}
	if name != "" {
		rec.CategoryName = strPtr(name)
	}
	if kind != "" {
		rec.CategoryKind = strPtr(kind)
	}
	return rec
}

func TestComputeRevenueExcludesFines(t *testing.T) {
	repo := &fakeRepo{
		invoices: []InvoiceRecord{
			{
				IssueDate: day("2026-03-05"),
				Total:     1450,
				Items: []LineItem{
					{Label: "Rental charge (5 days)", Amount: 1000},
					{Label: "Traffic fine - RTA", Amount: 400},
				},
			},
			{
				IssueDate: day("2026-03-10"),
				Total:     525,
				Items:     []LineItem{{Label: "Rental charge (2 days)", Amount: 500}},
			},
		},
	}
	svc := NewService(repo)

	report, err := svc.Compute(context.Background(), baseQuery())
	require.NoError(t, err)
	// 1450 - 400 fine pass-through, plus 525.
	require.InDelta(t, 1575, report.Revenue.Total, 1e-9)
	require.Len(t, report.Revenue.Series, 1)
	require.Equal(t, "2026-03", report.Revenue.Series[0].Period)
}

func TestComputeBranchFilterUsesBookingBranch(t *testing.T) {
	repo := &fakeRepo{
		invoices: []InvoiceRecord{
			{IssueDate: day("2026-03-05"), Total: 300, Branch: strPtr("DXB")},
			{IssueDate: day("2026-03-06"), Total: 200, Branch: strPtr("AUH")},
			{IssueDate: day("2026-03-07"), Total: 100},
		},
	}
	svc := NewService(repo)

	q := baseQuery()
	q.Branch = strPtr("DXB")
	report, err := svc.Compute(context.Background(), q)
	require.NoError(t, err)
	require.InDelta(t, 300, report.Revenue.Total, 1e-9)
}

func TestComputeExpenseClassification(t *testing.T) {
	repo := &fakeRepo{
		expenses: []ExpenseRecord{
			expense(500, "2026-03-02", "FINES", "Fines", "COGS"),
			expense(200, "2026-03-03", "", "", ""),                              // no category -> COGS
			expense(300, "2026-03-04", "MISC", "Parts (COGS)", "OPEX"),          // name marker rescues
			expense(150, "2026-03-05", "SUPPLY", "Cost of Goods Sundry", "OPEX"), // name marker rescues
			expense(4000, "2026-03-06", "SALARIES", "Salaries", "OPEX"),
			expense(2500, "2026-03-07", "RENT", "Office rent", "OPEX"),
			expense(600, "2026-03-08", "UTILITIES", "Utilities", "OPEX"),
			expense(250, "2026-03-09", "MARKETING", "Marketing", "OPEX"),
		},
	}
	svc := NewService(repo)

	report, err := svc.Compute(context.Background(), baseQuery())
	require.NoError(t, err)

	require.InDelta(t, 1150, report.COGS.Total, 1e-9)
	require.InDelta(t, 7350, report.OPEX.Total, 1e-9)
	require.InDelta(t, 4000, report.OPEX.FixedCosts.Salaries, 1e-9)
	require.InDelta(t, 2500, report.OPEX.FixedCosts.Rent, 1e-9)
	require.InDelta(t, 600, report.OPEX.FixedCosts.Utilities, 1e-9)
	require.InDelta(t, 250, report.OPEX.FixedCosts.Other, 1e-9)

	require.Len(t, report.COGS.Categories, 4)
	require.Equal(t, "Fines", report.COGS.Categories[0].Category)
	require.Equal(t, "Uncategorized", report.COGS.Categories[2].Category)
}

func TestComputeMaintenanceSeparateFromCOGSCategories(t *testing.T) {
	repo := &fakeRepo{
		invoices: []InvoiceRecord{{IssueDate: day("2026-03-05"), Total: 10000}},
		expenses: []ExpenseRecord{expense(1000, "2026-03-02", "FINES", "Fines", "COGS")},
		maintenance: []MaintenanceRecord{
			{Type: "OIL_CHANGE", Cost: 300, ServiceDate: day("2026-03-10")},
			{Type: "TYRES", Cost: 700, ServiceDate: day("2026-03-12")},
			{Type: "OIL_CHANGE", Cost: 200, ServiceDate: day("2026-03-20")},
		},
	}
	svc := NewService(repo)

	report, err := svc.Compute(context.Background(), baseQuery())
	require.NoError(t, err)

	require.InDelta(t, 1200, report.Maintenance.Total, 1e-9)
	require.Equal(t, []TypeAmount{
		{Type: "TYRES", Amount: 700},
		{Type: "OIL_CHANGE", Amount: 500},
	}, report.Maintenance.ByType)
	// Maintenance stays out of the per-category COGS list.
	require.Len(t, report.COGS.Categories, 1)

	// Gross profit nets out both expense COGS and maintenance.
	require.InDelta(t, 10000-1000-1200, report.GrossProfit, 1e-9)
	require.InDelta(t, report.GrossProfit, report.NetProfit, 1e-9)
}

func TestComputeMarginIdentities(t *testing.T) {
	repo := &fakeRepo{
		invoices: []InvoiceRecord{{IssueDate: day("2026-03-05"), Total: 5000}},
		expenses: []ExpenseRecord{
			expense(1200, "2026-03-02", "FINES", "Fines", "COGS"),
			expense(800, "2026-03-03", "MARKETING", "Marketing", "OPEX"),
		},
	}
	svc := NewService(repo)

	report, err := svc.Compute(context.Background(), baseQuery())
	require.NoError(t, err)

	totalCOGS := report.COGS.Total + report.Maintenance.Total
	require.InDelta(t, report.Revenue.Total, report.GrossProfit+totalCOGS, 1e-9)
	require.InDelta(t, report.Revenue.Total, report.NetProfit+totalCOGS+report.OPEX.Total, 1e-9)
	require.InDelta(t, 76, report.GrossMargin, 1e-9)
	require.InDelta(t, 60, report.NetMargin, 1e-9)
}

func TestComputeZeroRevenueMargins(t *testing.T) {
	svc := NewService(&fakeRepo{expenses: []ExpenseRecord{expense(100, "2026-03-02", "RENT", "Rent", "OPEX")}})

	report, err := svc.Compute(context.Background(), baseQuery())
	require.NoError(t, err)
	require.Zero(t, report.GrossMargin)
	require.Zero(t, report.NetMargin)
}

func TestComputeIdempotent(t *testing.T) {
	repo := &fakeRepo{
		invoices: []InvoiceRecord{
			{IssueDate: day("2026-03-05"), Total: 900, Items: []LineItem{{Label: "Parking penalty", Amount: 50}}},
			{IssueDate: day("2026-03-20"), Total: 700},
		},
		expenses: []ExpenseRecord{
			expense(400, "2026-03-02", "FINES", "Fines", "COGS"),
			expense(200, "2026-03-15", "MISC", "Misc", "OPEX"),
		},
		maintenance: []MaintenanceRecord{{Type: "SERVICE", Cost: 150, ServiceDate: day("2026-03-09")}},
	}
	svc := NewService(repo)
	q := baseQuery()
	q.Granularity = shared.GranularityWeek

	first, err := svc.Compute(context.Background(), q)
	require.NoError(t, err)
	second, err := svc.Compute(context.Background(), q)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
}

func TestComputePreviousPeriodComparison(t *testing.T) {
	repo := &fakeRepo{
		invoices: []InvoiceRecord{
			{IssueDate: day("2026-03-10"), Total: 2000},
			{IssueDate: day("2026-02-10"), Total: 1000},
		},
	}
	svc := NewService(repo)

	q := Query{
		From:        day("2026-03-01"),
		To:          day("2026-03-31"),
		Granularity: shared.GranularityMonth,
		Comparison:  ComparePreviousPeriod,
	}
	report, err := svc.Compute(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, report.Comparison)
	require.Equal(t, ComparePreviousPeriod, report.Comparison.Mode)
	require.InDelta(t, 2000, report.Comparison.Revenue.Current, 1e-9)
	require.InDelta(t, 1000, report.Comparison.Revenue.Previous, 1e-9)
	require.InDelta(t, 1000, report.Comparison.Revenue.Absolute, 1e-9)
	require.InDelta(t, 100, report.Comparison.Revenue.PercentChange, 1e-9)
}

func TestComputeYearOverYearComparison(t *testing.T) {
	repo := &fakeRepo{
		invoices: []InvoiceRecord{
			{IssueDate: day("2026-03-10"), Total: 1800},
			{IssueDate: day("2025-03-10"), Total: 1500},
		},
	}
	svc := NewService(repo)

	q := baseQuery()
	q.Comparison = CompareYearOverYear
	report, err := svc.Compute(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, report.Comparison)
	require.Equal(t, day("2025-03-01"), report.Comparison.Window.From)
	require.InDelta(t, 1500, report.Comparison.Revenue.Previous, 1e-9)
	require.InDelta(t, 20, report.Comparison.Revenue.PercentChange, 1e-9)
}

func TestComputeValidation(t *testing.T) {
	svc := NewService(&fakeRepo{})

	q := baseQuery()
	q.From, q.To = q.To, q.From
	_, err := svc.Compute(context.Background(), q)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "PNL_INVALID_WINDOW", verr.Code)

	q = baseQuery()
	q.Granularity = "decade"
	_, err = svc.Compute(context.Background(), q)
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "PNL_INVALID_GRANULARITY", verr.Code)

	q = baseQuery()
	q.Comparison = "SIDEWAYS"
	_, err = svc.Compute(context.Background(), q)
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "PNL_INVALID_COMPARISON", verr.Code)
}
