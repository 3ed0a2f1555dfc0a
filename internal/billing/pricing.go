package billing

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Labels used for generated line items. The deposit label must keep the word
// "deposit" so the taxable-base rule recognises it.
const (
	labelRental   = "Rental charge"
	labelDiscount = "Discount"
	labelDeposit  = "Security deposit"
)

// fineMarkers drive the label heuristic that classifies ad-hoc charges as
// pass-through fines. Kept behind IsFineLabel so a structured classification
// can replace the substring test without touching call sites.
var fineMarkers = []string{"fine", "penalty", "government", "traffic"}

// IsFineLabel reports whether a line-item label denotes a fine-type charge.
func IsFineLabel(label string) bool {
	lower := strings.ToLower(label)
	for _, marker := range fineMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsDepositLabel reports whether a line-item label denotes a deposit credit.
func IsDepositLabel(label string) bool {
	return strings.Contains(strings.ToLower(label), "deposit")
}

// RentalDays returns the chargeable day count: the rental period rounded up
// to whole days, never less than one.
func RentalDays(start, end time.Time) int {
	hours := end.Sub(start).Hours()
	days := int(math.Ceil(hours / 24))
	if days < 1 {
		return 1
	}
	return days
}

// EffectiveDailyRate derives the per-day rate from the booking's rental type.
// An explicit override wins.
func EffectiveDailyRate(b Booking, override *float64) float64 {
	if override != nil {
		return *override
	}
	switch b.RentalType {
	case RentalWeekly:
		return b.WeeklyRate / 7
	case RentalMonthly:
		return b.MonthlyRate / 30
	default:
		return b.DailyRate
	}
}

// BuildLineItems constructs the signed line-item ledger for a booking:
// base rental charge, discount and deposit credits, then ad-hoc charges.
func BuildLineItems(b Booking, override *float64) []LineItem {
	days := RentalDays(b.StartDate, b.EndDate)
	rate := EffectiveDailyRate(b, override)

	items := []LineItem{{
		Label:  fmt.Sprintf("%s (%d days)", labelRental, days),
		Amount: rate * float64(days),
	}}

	if b.DiscountAmount > 0 {
		items = append(items, LineItem{Label: labelDiscount, Amount: -b.DiscountAmount})
	}
	if b.DepositAmount > 0 {
		items = append(items, LineItem{Label: labelDeposit, Amount: -b.DepositAmount})
	}
	for _, charge := range b.Charges {
		items = append(items, LineItem{Label: charge.Label, Amount: charge.Amount})
	}
	return items
}

// Totals is the derived monetary summary of a line-item ledger.
type Totals struct {
	Subtotal    float64
	TaxableBase float64
	TaxAmount   float64
	Total       float64
}

// ComputeTotals applies the taxable-base rule: tax is computed on every item
// except deposits, so a deposit reduces the amount due but never the tax,
// while a discount reduces both. The final total is floored at zero.
func ComputeTotals(items []LineItem, vatPercent float64) Totals {
	var subtotal, taxable float64
	for _, item := range items {
		subtotal += item.Amount
		if !IsDepositLabel(item.Label) {
			taxable += item.Amount
		}
	}
	tax := math.Max(0, taxable*vatPercent/100)
	return Totals{
		Subtotal:    subtotal,
		TaxableBase: taxable,
		TaxAmount:   tax,
		Total:       math.Max(0, subtotal+tax),
	}
}

// FineLabels extracts the fine-classified labels of a ledger, preserving
// order. Used to diff against the labels stored on a prior save.
func FineLabels(items []LineItem) []string {
	var out []string
	for _, item := range items {
		if IsFineLabel(item.Label) {
			out = append(out, item.Label)
		}
	}
	return out
}

// NewFineLabels returns the labels in current that are absent from stored,
// compared case-insensitively.
func NewFineLabels(current, stored []string) []string {
	seen := make(map[string]struct{}, len(stored))
	for _, label := range stored {
		seen[strings.ToLower(label)] = struct{}{}
	}
	var fresh []string
	for _, label := range current {
		if _, ok := seen[strings.ToLower(label)]; !ok {
			fresh = append(fresh, label)
			seen[strings.ToLower(label)] = struct{}{}
		}
	}
	return fresh
}

// InvoiceNumber formats the daily-sequence invoice number.
func InvoiceNumber(issueDate time.Time, sequence int) string {
	return fmt.Sprintf("INV-%s-%04d", issueDate.Format("20060102"), sequence)
}
