package http

import (
	"errors"

	"github.com/GriffinCanCode/UserTrace/backend/internal/domain/users"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/monitoring"
)

// Outcome labels for handler operations
const (
	OutcomeSuccess  = "success"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// HandlerMetrics times handler operations against the service metrics. A
// nil collector disables tracking.
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// TrackUsersOperation starts timing a users operation. Call the returned
// function once with the operation's error.
func (hm *HandlerMetrics) TrackUsersOperation(operation string) func(error) {
	return hm.track("users", operation)
}

// TrackExternalOperation starts timing a simulated external operation
func (hm *HandlerMetrics) TrackExternalOperation(operation string) func(error) {
	return hm.track("external_api", operation)
}

func (hm *HandlerMetrics) track(service, operation string) func(error) {
	var m *monitoring.Metrics
	if hm != nil {
		m = hm.metrics
	}
	timer := monitoring.NewTimer(m, service, operation)
	return func(err error) {
		outcome := outcomeOf(err)
		timer.Stop(outcome)
		if outcome == OutcomeError && m != nil {
			m.RecordServiceError(service, operation, "handler")
		}
	}
}

// outcomeOf keeps client mistakes out of the error counters
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, users.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, users.ErrInvalid):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}
