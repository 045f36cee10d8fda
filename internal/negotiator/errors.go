package negotiator

import (
	"context"
	"errors"

	errs "pcbuild-service/internal/common/errors"
	"pcbuild-service/internal/oracle"
)

// StandardErrorFrom maps a Generate error to the code used at the HTTP and
// job boundaries.
func StandardErrorFrom(err error) *errs.StandardError {
	if stdErr, ok := errs.AsStandardError(err); ok {
		return stdErr
	}

	var exhausted *ExhaustedError
	var transport *oracle.TransportError
	switch {
	case errors.Is(err, ErrInvalidBudget):
		return errs.NewInvalidBudgetError(err.Error())
	case errors.As(err, &exhausted):
		return errs.NewNegotiationExhaustedError(exhausted.Attempts, string(exhausted.LastOutcome))
	case errors.As(err, &transport):
		if transport.Timeout() {
			return errs.NewOracleTimeoutError(transport.Provider)
		}
		return errs.NewOracleTransportFailedError(transport.Provider, transport.Err)
	case errors.Is(err, context.DeadlineExceeded):
		return errs.NewOracleTimeoutError("")
	default:
		return errs.NewInternalError(err)
	}
}
