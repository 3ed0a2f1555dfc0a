package expenses

import (
	"time"

	"github.com/google/uuid"
)

// CreateExpenseRequest describes a manually entered expense.
type CreateExpenseRequest struct {
	CategoryID  int64     `json:"category_id" validate:"required,gt=0"`
	Description string    `json:"description" validate:"required,max=500"`
	Amount      float64   `json:"amount" validate:"required"`
	Currency    string    `json:"currency" validate:"omitempty,len=3"`
	IncurredOn  time.Time `json:"incurred_on" validate:"required"`
	Branch      *string   `json:"branch,omitempty"`
}

// UpdateExpenseRequest mutates an expense through the generic interface.
// Amount, category and date edits are rejected for system-managed rows.
type UpdateExpenseRequest struct {
	CategoryID  *int64     `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=500"`
	Amount      *float64   `json:"amount,omitempty"`
	IncurredOn  *time.Time `json:"incurred_on,omitempty"`
	Branch      *string    `json:"branch,omitempty"`
}

// ListExpensesRequest filters the expense ledger.
type ListExpensesRequest struct {
	From       *time.Time
	To         *time.Time
	CategoryID *int64
	Branch     *string
	Limit      int
	Offset     int
}

// FineRecord is the entry point reserved for the invoice pricing engine,
// the sole writer of fine rows.
type FineRecord struct {
	Label      string
	Amount     float64
	Currency   string
	IncurredOn time.Time
	Branch     *string
}

// PayoutExpense captures the fields the payout engine maintains on its
// generated expense row.
type PayoutExpense struct {
	ID         uuid.UUID
	PayoutID   uuid.UUID
	InvestorID int64
	Amount     float64
	Currency   string
	IncurredOn time.Time
}
