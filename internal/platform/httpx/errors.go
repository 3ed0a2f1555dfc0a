package httpx

import (
	"errors"
	"net/http"

	"github.com/fleetcore/fleetcore/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Validation and state-conflict errors carry a machine code alongside the
// human-readable message; partial failures additionally return the id of the
// record that was created before the dependent write failed.
func RespondError(w http.ResponseWriter, err error) {
	var (
		validation *shared.ValidationError
		conflict   *shared.StateConflictError
		notFound   *shared.NotFoundError
		partial    *shared.PartialFailureError
	)
	switch {
	case errors.As(err, &validation):
		JSON(w, http.StatusBadRequest, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: validation.Message,
			Code:   validation.Code,
		})
	case errors.As(err, &conflict):
		JSON(w, http.StatusConflict, ProblemDetail{
			Title:  "State Conflict",
			Status: http.StatusConflict,
			Detail: conflict.Message,
			Code:   conflict.Code,
			State:  conflict.CurrentState,
		})
	case errors.As(err, &partial):
		JSON(w, http.StatusInternalServerError, ProblemDetail{
			Title:     "Partial Failure",
			Status:    http.StatusInternalServerError,
			Detail:    partial.Message,
			Code:      partial.Code,
			CreatedID: partial.CreatedID,
		})
	case errors.As(err, &notFound):
		Problem(w, http.StatusNotFound, "Not Found", notFound.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
