package billing

// PriceBookingRequest asks for a non-persisted quote.
type PriceBookingRequest struct {
	BookingID    int64    `json:"booking_id" validate:"required,gt=0"`
	RateOverride *float64 `json:"rate_override,omitempty"`
}

// CreateInvoiceRequest turns a booking into a draft invoice.
type CreateInvoiceRequest struct {
	BookingID    int64    `json:"booking_id" validate:"required,gt=0"`
	RateOverride *float64 `json:"rate_override,omitempty"`
}

// RepriceRequest replaces the full line-item ledger of a mutable invoice.
type RepriceRequest struct {
	Items   []LineItem `json:"items" validate:"required,min=1,dive"`
	Version int64      `json:"version" validate:"required,gt=0"`
}

// TransitionRequest carries the optimistic version for a status change.
type TransitionRequest struct {
	Version int64 `json:"version" validate:"required,gt=0"`
}
