package payouts

import (
	"time"
)

// PreviewRequest computes a payout proposal without persisting.
type PreviewRequest struct {
	InvestorID         int64      `json:"investor_id" validate:"required,gt=0"`
	PeriodFrom         time.Time  `json:"period_from" validate:"required"`
	PeriodTo           time.Time  `json:"period_to" validate:"required"`
	Branch             *string    `json:"branch,omitempty"`
	CommissionOverride *float64   `json:"commission_override,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// CreateRequest persists a payout with its generated expense and optional
// payment.
type CreateRequest struct {
	InvestorID         int64          `json:"investor_id" validate:"required,gt=0"`
	PeriodFrom         time.Time      `json:"period_from" validate:"required"`
	PeriodTo           time.Time      `json:"period_to" validate:"required"`
	Branch             *string        `json:"branch,omitempty"`
	CommissionOverride *float64       `json:"commission_override,omitempty" validate:"omitempty,gte=0,lte=100"`
	CreatePayment      bool           `json:"create_payment"`
	PaymentStatus      PaymentStatus  `json:"payment_status,omitempty"`
}

// UpdatePeriodRequest moves a payout to a new period and recomputes its
// snapshot, propagating amount and date to the linked expense.
type UpdatePeriodRequest struct {
	PeriodFrom time.Time `json:"period_from" validate:"required"`
	PeriodTo   time.Time `json:"period_to" validate:"required"`
	Version    int64     `json:"version" validate:"required,gt=0"`
}

// TransitionRequest carries the optimistic version for a status change.
type TransitionRequest struct {
	Version int64 `json:"version" validate:"required,gt=0"`
}
