package pnl

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fleetcore/fleetcore/internal/billing"
	"github.com/fleetcore/fleetcore/internal/shared"
)

// cogsNameMarkers rescue mis-typed legacy categories into COGS.
var cogsNameMarkers = []string{"(COGS)", "COST OF GOODS", "PURCHASE PRICE"}

// Service performs the P&L aggregation.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Compute builds the report for the query. Reads for the current window run
// concurrently; a comparison window repeats the aggregation and adds deltas.
func (s *Service) Compute(ctx context.Context, q Query) (*Report, error) {
	if q.To.Before(q.From) {
		return nil, shared.NewValidation("PNL_INVALID_WINDOW", "window end precedes start")
	}
	if q.Granularity == "" {
		q.Granularity = shared.GranularityMonth
	}
	if !q.Granularity.Valid() {
		return nil, shared.NewValidation("PNL_INVALID_GRANULARITY",
			fmt.Sprintf("unsupported granularity %q", q.Granularity))
	}
	if q.Comparison == "" {
		q.Comparison = CompareNone
	}
	if !q.Comparison.Valid() {
		return nil, shared.NewValidation("PNL_INVALID_COMPARISON",
			fmt.Sprintf("unsupported comparison mode %q", q.Comparison))
	}

	current, err := s.aggregate(ctx, q.From, q.To, q.Branch, q.Granularity)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Window:      Window{From: q.From, To: q.To},
		Granularity: q.Granularity,
		Branch:      q.Branch,
		Revenue:     RevenueBlock{Total: shared.Round2(current.revenue), Series: current.series},
		COGS:        current.cogs,
		Maintenance: current.maintenance,
		OPEX:        current.opex,
		GrossProfit: shared.Round2(current.grossProfit),
		NetProfit:   shared.Round2(current.netProfit),
		GrossMargin: marginPct(current.grossProfit, current.revenue),
		NetMargin:   marginPct(current.netProfit, current.revenue),
	}

	if q.Comparison != CompareNone {
		var prevFrom, prevTo time.Time
		if q.Comparison == CompareYearOverYear {
			prevFrom, prevTo = shared.YearAgoWindow(q.From, q.To)
		} else {
			prevFrom, prevTo = shared.PreviousWindow(q.From, q.To)
		}
		previous, err := s.aggregate(ctx, prevFrom, prevTo, q.Branch, q.Granularity)
		if err != nil {
			return nil, fmt.Errorf("comparison window: %w", err)
		}
		report.Comparison = &Comparison{
			Mode:        q.Comparison,
			Window:      Window{From: prevFrom, To: prevTo},
			Revenue:     delta(current.revenue, previous.revenue),
			COGS:        delta(current.cogs.Total+current.maintenance.Total, previous.cogs.Total+previous.maintenance.Total),
			OPEX:        delta(current.opex.Total, previous.opex.Total),
			GrossProfit: delta(current.grossProfit, previous.grossProfit),
			NetProfit:   delta(current.netProfit, previous.netProfit),
		}
	}
	return report, nil
}

type summary struct {
	revenue     float64
	series      []PeriodRevenue
	cogs        COGSBlock
	maintenance MaintenanceBlock
	opex        OPEXBlock
	grossProfit float64
	netProfit   float64
}

func (s *Service) aggregate(ctx context.Context, from, to time.Time, branch *string, gran shared.Granularity) (*summary, error) {
	var (
		invoices    []InvoiceRecord
		expenses    []ExpenseRecord
		maintenance []MaintenanceRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		invoices, err = s.repo.InvoicesInWindow(gctx, from, to)
		if err != nil {
			return fmt.Errorf("read invoices: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		expenses, err = s.repo.ExpensesInWindow(gctx, from, to, branch)
		if err != nil {
			return fmt.Errorf("read expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		maintenance, err = s.repo.MaintenanceInWindow(gctx, from, to, branch)
		if err != nil {
			return fmt.Errorf("read maintenance: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &summary{}
	out.revenue, out.series = aggregateRevenue(invoices, branch, gran)
	out.cogs, out.opex = classifyExpenses(expenses)
	out.maintenance = aggregateMaintenance(maintenance)

	totalCOGS := out.cogs.Total + out.maintenance.Total
	out.grossProfit = out.revenue - totalCOGS
	out.netProfit = out.grossProfit - out.opex.Total
	return out, nil
}

// aggregateRevenue sums invoice totals net of fine items and buckets them by
// sub-period key. Branch filtering happens here because branch lives on the
// owning booking.
func aggregateRevenue(invoices []InvoiceRecord, branch *string, gran shared.Granularity) (float64, []PeriodRevenue) {
	var total float64
	buckets := make(map[string]float64)
	for _, inv := range invoices {
		if branch != nil {
			if inv.Branch == nil || *inv.Branch != *branch {
				continue
			}
		}
		net := inv.Total - finesAmount(inv.Items)
		total += net
		buckets[shared.PeriodKey(inv.IssueDate, gran)] += net
	}

	series := make([]PeriodRevenue, 0, len(buckets))
	for period, amount := range buckets {
		series = append(series, PeriodRevenue{Period: period, Revenue: shared.Round2(amount)})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Period < series[j].Period })
	return total, series
}

// finesAmount sums the fine-classified items of an invoice ledger.
func finesAmount(items []LineItem) float64 {
	var sum float64
	for _, item := range items {
		if billing.IsFineLabel(item.Label) {
			sum += item.Amount
		}
	}
	return sum
}

// isCOGS classifies one expense. Expenses with a missing or untyped category
// land in COGS, as do categories whose name carries a legacy COGS marker even
// when mis-typed as OPEX.
func isCOGS(rec ExpenseRecord) bool {
	if rec.CategoryName != nil {
		upper := strings.ToUpper(*rec.CategoryName)
		for _, marker := range cogsNameMarkers {
			if strings.Contains(upper, marker) {
				return true
			}
		}
	}
	if rec.CategoryKind == nil || *rec.CategoryKind == "" {
		return true
	}
	return *rec.CategoryKind == "COGS"
}

func classifyExpenses(expenses []ExpenseRecord) (COGSBlock, OPEXBlock) {
	var cogs COGSBlock
	var opex OPEXBlock
	cogsByCategory := make(map[string]float64)

	for _, rec := range expenses {
		if isCOGS(rec) {
			cogs.Total += rec.Amount
			cogsByCategory[categoryLabel(rec)] += rec.Amount
			continue
		}

		opex.Total += rec.Amount
		switch {
		case rec.SalaryLinked || codeIs(rec, "SALARIES"):
			opex.FixedCosts.Salaries += rec.Amount
		case codeIs(rec, "RENT"):
			opex.FixedCosts.Rent += rec.Amount
		case codeIs(rec, "UTILITIES") || nameContains(rec, "UTILIT"):
			opex.FixedCosts.Utilities += rec.Amount
		default:
			opex.FixedCosts.Other += rec.Amount
		}
	}

	cogs.Categories = make([]CategoryAmount, 0, len(cogsByCategory))
	for name, amount := range cogsByCategory {
		cogs.Categories = append(cogs.Categories, CategoryAmount{Category: name, Amount: shared.Round2(amount)})
	}
	sort.Slice(cogs.Categories, func(i, j int) bool {
		a, b := cogs.Categories[i], cogs.Categories[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		return a.Category < b.Category
	})

	cogs.Total = shared.Round2(cogs.Total)
	opex.Total = shared.Round2(opex.Total)
	opex.FixedCosts.Salaries = shared.Round2(opex.FixedCosts.Salaries)
	opex.FixedCosts.Rent = shared.Round2(opex.FixedCosts.Rent)
	opex.FixedCosts.Utilities = shared.Round2(opex.FixedCosts.Utilities)
	opex.FixedCosts.Other = shared.Round2(opex.FixedCosts.Other)
	return cogs, opex
}

func categoryLabel(rec ExpenseRecord) string {
	if rec.CategoryName != nil && *rec.CategoryName != "" {
		return *rec.CategoryName
	}
	return "Uncategorized"
}

func codeIs(rec ExpenseRecord, code string) bool {
	return rec.CategoryCode != nil && *rec.CategoryCode == code
}

func nameContains(rec ExpenseRecord, marker string) bool {
	return rec.CategoryName != nil && strings.Contains(strings.ToUpper(*rec.CategoryName), marker)
}

func aggregateMaintenance(records []MaintenanceRecord) MaintenanceBlock {
	var block MaintenanceBlock
	byType := make(map[string]float64)
	for _, rec := range records {
		block.Total += rec.Cost
		byType[rec.Type] += rec.Cost
	}
	block.ByType = make([]TypeAmount, 0, len(byType))
	for typ, amount := range byType {
		block.ByType = append(block.ByType, TypeAmount{Type: typ, Amount: shared.Round2(amount)})
	}
	sort.Slice(block.ByType, func(i, j int) bool {
		a, b := block.ByType[i], block.ByType[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		return a.Type < b.Type
	})
	block.Total = shared.Round2(block.Total)
	return block
}

func marginPct(profit, revenue float64) float64 {
	if revenue == 0 {
		return 0
	}
	return shared.Round2(profit / revenue * 100)
}

func delta(current, previous float64) MetricDelta {
	d := MetricDelta{
		Current:  shared.Round2(current),
		Previous: shared.Round2(previous),
		Absolute: shared.Round2(current - previous),
	}
	if previous != 0 {
		d.PercentChange = shared.Round2((current - previous) / previous * 100)
	}
	return d
}
