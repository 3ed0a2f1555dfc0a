package billing

import (
	"time"
)

// InvoiceStatus enumerates rental invoice statuses.
type InvoiceStatus string

const (
	StatusDraft  InvoiceStatus = "DRAFT"
	StatusIssued InvoiceStatus = "ISSUED"
	StatusPaid   InvoiceStatus = "PAID"
	StatusVoid   InvoiceStatus = "VOID"
)

// Terminal reports whether the status rejects further edits.
func (s InvoiceStatus) Terminal() bool {
	return s == StatusPaid || s == StatusVoid
}

// RentalType selects which rate field on the booking applies.
type RentalType string

const (
	RentalDaily   RentalType = "DAILY"
	RentalWeekly  RentalType = "WEEKLY"
	RentalMonthly RentalType = "MONTHLY"
)

// LineItem is one signed ledger entry on an invoice. Charges are positive;
// discounts and deposits are negative.
type LineItem struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// Invoice model. Exactly one invoice exists per booking.
type Invoice struct {
	ID         int64
	Number     string
	BookingID  int64
	IssueDate  time.Time
	DueDate    time.Time
	Items      []LineItem
	Subtotal   float64
	TaxAmount  float64
	Total      float64
	Currency   string
	Status     InvoiceStatus
	FineLabels []string
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AdHocCharge is an extra charge recorded on the booking (fines, penalties,
// government or traffic fees).
type AdHocCharge struct {
	Label  string
	Amount float64
}

// Booking is the read-only collaborator row supplying rental inputs.
type Booking struct {
	ID             int64
	VehicleID      int64
	Branch         *string
	StartDate      time.Time
	EndDate        time.Time
	RentalType     RentalType
	DailyRate      float64
	WeeklyRate     float64
	MonthlyRate    float64
	DiscountAmount float64
	DepositAmount  float64
	Charges        []AdHocCharge
}

// Quote is the result of pricing a booking before an invoice exists.
type Quote struct {
	Items       []LineItem `json:"items"`
	Subtotal    float64    `json:"subtotal"`
	TaxableBase float64    `json:"taxable_base"`
	TaxAmount   float64    `json:"tax_amount"`
	Total       float64    `json:"total"`
	Currency    string     `json:"currency"`
}
