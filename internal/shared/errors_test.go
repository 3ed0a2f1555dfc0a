package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotFoundErrorUnwrapsSentinel(t *testing.T) {
	err := NewNotFound("invoice", "abc-123")
	require.ErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "invoice abc-123")

	wrapped := fmt.Errorf("load: %w", err)
	var nf *NotFoundError
	require.ErrorAs(t, wrapped, &nf)
	require.Equal(t, "invoice", nf.Resource)
}

func TestStateConflictSurfacesCurrentState(t *testing.T) {
	err := NewStateConflict("INVOICE_TERMINAL_STATUS", "invoice can no longer change", "VOID")
	require.Contains(t, err.Error(), "VOID")
	require.True(t, IsStateConflict(err))
	require.True(t, IsStateConflict(fmt.Errorf("reprice: %w", err)))
	require.False(t, IsStateConflict(errors.New("plain")))
}

func TestValidationErrorCode(t *testing.T) {
	err := NewValidation("BOOKING_INVALID_PERIOD", "end date precedes start date")
	require.True(t, IsValidation(err))
	require.Contains(t, err.Error(), "BOOKING_INVALID_PERIOD")
}

func TestPartialFailureCarriesCreatedID(t *testing.T) {
	cause := errors.New("payment gateway timeout")
	err := NewPartialFailure("PAYOUT_PAYMENT_SYNC_FAILED", "payment creation failed", "payout-42", cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "payout-42")

	var pf *PartialFailureError
	require.ErrorAs(t, fmt.Errorf("create: %w", err), &pf)
	require.Equal(t, "payout-42", pf.CreatedID)
}
