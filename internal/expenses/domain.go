package expenses

import (
	"time"

	"github.com/google/uuid"
)

// CategoryKind classifies a category for P&L purposes.
type CategoryKind string

const (
	KindCOGS CategoryKind = "COGS"
	KindOPEX CategoryKind = "OPEX"
)

// Reserved category codes owned by subsystems.
const (
	CategoryCodeSalaries        = "SALARIES"
	CategoryCodeInvestorPayouts = "INVESTOR_PAYOUTS"
	CategoryCodeFines           = "FINES"
	CategoryCodeRent            = "RENT"
	CategoryCodeUtilities       = "UTILITIES"
)

// Category model. Kind may be empty for legacy rows.
type Category struct {
	ID   int64
	Code string
	Name string
	Kind CategoryKind
}

// Expense model. Amounts are signed; records are soft-deleted only.
type Expense struct {
	ID          uuid.UUID
	CategoryID  int64
	Description string
	Amount      float64
	Currency    string
	IncurredOn  time.Time
	Branch      *string
	SalaryID    *int64
	PayoutID    *uuid.UUID
	Deleted     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SystemManaged reports whether the expense belongs to an owning subsystem
// and must not be mutated through the generic expense interface.
func SystemManaged(e Expense, cat *Category) bool {
	if e.SalaryID != nil || e.PayoutID != nil {
		return true
	}
	if cat == nil {
		return false
	}
	return cat.Code == CategoryCodeSalaries || cat.Code == CategoryCodeInvestorPayouts
}
