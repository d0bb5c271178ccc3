package handler

import (
	"errors"
	"net/http"

	"github.com/billybrichards/climate-parser/backend"
	"github.com/billybrichards/climate-parser/extract"
	"github.com/billybrichards/climate-parser/manager"
)

// Values of ErrorResponse.Error.
const (
	kindValidation      = "Validation error"
	kindUnauthorized    = "Unauthorized"
	kindConfiguration   = "Server configuration error"
	kindUpstream        = "Upstream service error"
	kindInvalidUpstream = "Invalid upstream response"
	kindNotFound        = "Not Found"
	kindPayloadTooLarge = "Payload too large"
	kindInternal        = "Internal Server Error"
)

type apiError struct {
	status  int
	kind    string
	message string
	cause   error
	// stack overrides the formatted cause, e.g. for recovered panics.
	stack string
}

func validationError(message string) *apiError {
	return &apiError{status: http.StatusBadRequest, kind: kindValidation, message: message}
}

// upstreamError maps a failure of the extraction component or the probe to a
// response, together with the outcome recorded for the upstream call.
func (h *HTTPHandler) upstreamError(r *http.Request, err error) (*apiError, string) {
	var (
		uerr *backend.UpstreamError
		ierr *extract.InvalidResponseError
	)
	switch {
	case errors.Is(err, backend.ErrMissingCredentials):
		return &apiError{
			status:  http.StatusInternalServerError,
			kind:    kindConfiguration,
			message: "OpenAI API key not configured",
			cause:   err,
		}, manager.OutcomeConfigError
	case errors.As(err, &ierr):
		requestLogger(r).WithField("raw", ierr.Raw).Warn("upstream returned content that is not a JSON object")
		return &apiError{
			status:  http.StatusInternalServerError,
			kind:    kindInvalidUpstream,
			message: "Failed to parse upstream response as JSON",
			cause:   err,
		}, manager.OutcomeInvalidResponse
	case errors.As(err, &uerr):
		return &apiError{
			status:  http.StatusInternalServerError,
			kind:    kindUpstream,
			message: uerr.Message,
			cause:   err,
		}, manager.OutcomeUpstreamError
	default:
		return h.internalError(err), manager.OutcomeUpstreamError
	}
}

func (h *HTTPHandler) internalError(err error) *apiError {
	e := &apiError{
		status:  http.StatusInternalServerError,
		kind:    kindInternal,
		message: "Something went wrong",
		cause:   err,
	}
	if !h.production && err != nil {
		e.message = err.Error()
	}
	return e
}
