/*
Package resilience provides the circuit breaker guarding calls to the
external service.

A breaker starts Closed. When ReadyToTrip approves the failure counts of
the current interval it moves to Open, and every call fails fast with
ErrCircuitOpen until Timeout passes. It then moves to Half-Open, where up
to MaxRequests trial calls decide between Closed and Open again.

	Closed --[ReadyToTrip]--> Open --[Timeout]--> Half-Open --[MaxRequests ok]--> Closed
	                            ^                     |
	                            +------[failure]------+

Call runs a function through the breaker and returns its result unchanged.
Panics count as failures and are re-raised. A context.Canceled error is
not counted against the downstream. The span in the call's context gets a
circuit.state attribute, and circuit.rejected when the call was refused.

	breaker := resilience.New("external-service", resilience.Settings{
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 5 },
	})

	resp, err := resilience.Call(ctx, breaker, func(ctx context.Context) (*resty.Response, error) {
		return req.SetContext(ctx).Get(url)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// answer from the degraded path
	}
*/
package resilience
