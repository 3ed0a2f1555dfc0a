// Package pnl computes profit-and-loss reports over invoices, expenses and
// maintenance records. Every report is a fresh read-only aggregation; nothing
// in this package writes.
package pnl

import (
	"time"

	"github.com/fleetcore/fleetcore/internal/shared"
)

// ComparisonMode selects the optional delta block of a report.
type ComparisonMode string

const (
	CompareNone           ComparisonMode = "NONE"
	ComparePreviousPeriod ComparisonMode = "PREVIOUS_PERIOD"
	CompareYearOverYear   ComparisonMode = "YEAR_OVER_YEAR"
)

// Valid reports whether the mode is one of the supported values.
func (m ComparisonMode) Valid() bool {
	switch m {
	case CompareNone, ComparePreviousPeriod, CompareYearOverYear:
		return true
	}
	return false
}

// Query describes one report request.
type Query struct {
	From        time.Time
	To          time.Time
	Granularity shared.Granularity
	Branch      *string
	Comparison  ComparisonMode
}

// Window is the resolved date range of a report.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// PeriodRevenue is one bucket of the revenue breakdown series.
type PeriodRevenue struct {
	Period  string  `json:"period"`
	Revenue float64 `json:"revenue"`
}

// CategoryAmount is one row of the per-category cost breakdown.
type CategoryAmount struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// TypeAmount is one row of the maintenance-by-type breakdown.
type TypeAmount struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

// FixedCosts splits OPEX into its recurring components.
type FixedCosts struct {
	Salaries  float64 `json:"salaries"`
	Rent      float64 `json:"rent"`
	Utilities float64 `json:"utilities"`
	Other     float64 `json:"other"`
}

// RevenueBlock holds rental revenue with its sub-period series. Fines are
// excluded: they are pass-through costs, not rental income.
type RevenueBlock struct {
	Total  float64         `json:"total"`
	Series []PeriodRevenue `json:"series"`
}

// COGSBlock holds the expense-sourced cost of goods sold. Maintenance is
// carried in its own block and never folded into Categories.
type COGSBlock struct {
	Total      float64          `json:"total"`
	Categories []CategoryAmount `json:"categories"`
}

// MaintenanceBlock aggregates maintenance cost by type.
type MaintenanceBlock struct {
	Total  float64      `json:"total"`
	ByType []TypeAmount `json:"by_type"`
}

// OPEXBlock holds operating expenses with the fixed-cost split.
type OPEXBlock struct {
	Total      float64    `json:"total"`
	FixedCosts FixedCosts `json:"fixed_costs"`
}

// MetricDelta compares one metric across the current and comparison windows.
type MetricDelta struct {
	Current       float64 `json:"current"`
	Previous      float64 `json:"previous"`
	Absolute      float64 `json:"absolute"`
	PercentChange float64 `json:"percent_change"`
}

// Comparison is the optional period-over-period delta block.
type Comparison struct {
	Mode        ComparisonMode `json:"mode"`
	Window      Window         `json:"window"`
	Revenue     MetricDelta    `json:"revenue"`
	COGS        MetricDelta    `json:"cogs"`
	OPEX        MetricDelta    `json:"opex"`
	GrossProfit MetricDelta    `json:"gross_profit"`
	NetProfit   MetricDelta    `json:"net_profit"`
}

// Report is the derived, non-persisted P&L value object.
type Report struct {
	Window      Window             `json:"window"`
	Granularity shared.Granularity `json:"granularity"`
	Branch      *string            `json:"branch,omitempty"`
	Revenue     RevenueBlock       `json:"revenue"`
	COGS        COGSBlock          `json:"cogs"`
	Maintenance MaintenanceBlock   `json:"maintenance"`
	OPEX        OPEXBlock          `json:"opex"`
	GrossProfit float64            `json:"gross_profit"`
	NetProfit   float64            `json:"net_profit"`
	GrossMargin float64            `json:"gross_margin_pct"`
	NetMargin   float64            `json:"net_margin_pct"`
	Comparison  *Comparison        `json:"comparison,omitempty"`
}

// InvoiceRecord is the read-model row the aggregation consumes. Branch comes
// from the owning booking.
type InvoiceRecord struct {
	IssueDate time.Time
	Total     float64
	Items     []LineItem
	Branch    *string
}

// LineItem mirrors the invoice ledger entry shape.
type LineItem struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// ExpenseRecord is the read-model row for expense aggregation.
type ExpenseRecord struct {
	Amount       float64
	IncurredOn   time.Time
	Branch       *string
	CategoryCode *string
	CategoryName *string
	CategoryKind *string
	SalaryLinked bool
}

// MaintenanceRecord is the read-model row for maintenance aggregation.
// ServiceDate is the single date field the engine keys on.
type MaintenanceRecord struct {
	Type        string
	Cost        float64
	ServiceDate time.Time
	Branch      *string
}
