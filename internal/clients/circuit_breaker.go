package clients

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sabiqazhar/frappe-env-setup/internal/health"
)

// NewCircuitBreaker returns a gobreaker configured to trip after 3 consecutive
// failures and reset after 30 seconds in the open state.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// guarded runs check inside cb and converts the outcome to a ProbeResult.
// check returns a short detail string on success.
func guarded(cb *gobreaker.CircuitBreaker, name string, check func() (string, error)) health.ProbeResult {
	start := time.Now()

	detail, err := cb.Execute(func() (any, error) {
		return check()
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		errMsg := err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) {
			errMsg = "circuit open"
		}
		return health.ProbeResult{
			Name:      name,
			OK:        false,
			LatencyMs: latency,
			Error:     errMsg,
		}
	}

	res := health.ProbeResult{Name: name, OK: true, LatencyMs: latency}
	if s, ok := detail.(string); ok {
		res.Detail = s
	}
	return res
}
