// Package payouts computes investor revenue shares and keeps each payout in
// lockstep with its generated expense and optional payment record.
package payouts

import (
	"time"

	"github.com/google/uuid"
)

// PayoutStatus enumerates payout lifecycle states. PAID ends financial edits;
// CANCELLED is terminal absolutely.
type PayoutStatus string

const (
	StatusDraft     PayoutStatus = "DRAFT"
	StatusApproved  PayoutStatus = "APPROVED"
	StatusPaid      PayoutStatus = "PAID"
	StatusCancelled PayoutStatus = "CANCELLED"
)

// PaymentStatus enumerates payment record states.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
)

// Valid reports whether the payment status is a supported value.
func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentSuccess
}

// VehicleRevenue is one row of the per-vehicle breakdown, sorted by revenue
// descending in the persisted snapshot.
type VehicleRevenue struct {
	VehicleID int64   `json:"vehicle_id"`
	Plate     string  `json:"plate"`
	Bookings  int     `json:"bookings"`
	Revenue   float64 `json:"revenue"`
}

// Totals is the snapshotted financial summary of a payout. It is computed at
// creation and update time, never recomputed on read.
type Totals struct {
	TotalRevenue      float64          `json:"total_revenue"`
	CommissionPercent float64          `json:"commission_percent"`
	CommissionAmount  float64          `json:"commission_amount"`
	NetPayout         float64          `json:"net_payout"`
	Breakdown         []VehicleRevenue `json:"breakdown"`
}

// Payout model. Exactly one generated expense, at most one payment.
type Payout struct {
	ID         uuid.UUID
	InvestorID int64
	PeriodFrom time.Time
	PeriodTo   time.Time
	Totals     Totals
	Currency   string
	Status     PayoutStatus
	ExpenseID  uuid.UUID
	PaymentID  *uuid.UUID
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Payment is the money-movement record linked to a payout. It survives payout
// cancellation: payment history is audit evidence.
type Payment struct {
	ID        uuid.UUID
	PayoutID  uuid.UUID
	Amount    float64
	Currency  string
	Status    PaymentStatus
	CreatedAt time.Time
}

// Investor is the read-only collaborator profile supplying the default
// commission percent.
type Investor struct {
	ID                int64
	Name              string
	CommissionPercent float64
}

// Preview is the computed-but-unpersisted payout proposal.
type Preview struct {
	InvestorID int64     `json:"investor_id"`
	PeriodFrom time.Time `json:"period_from"`
	PeriodTo   time.Time `json:"period_to"`
	Totals     Totals    `json:"totals"`
}

// Role labels for the access-control shape. Authorization mechanics live
// upstream; the service only enforces the scoping rules.
const (
	RoleStaff    = "STAFF"
	RoleInvestor = "INVESTOR"
)

// Scope identifies the caller for access checks.
type Scope struct {
	Role       string
	InvestorID int64
}

func (s Scope) staff() bool {
	return s.Role == RoleStaff
}

func (s Scope) canRead(investorID int64) bool {
	return s.staff() || (s.Role == RoleInvestor && s.InvestorID == investorID)
}
