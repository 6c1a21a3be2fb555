/*
Fusível is a circuit breaker Go library. It guards calls to unreliable
dependencies: sustained failure trips the circuit and calls are refused for a
while, giving the dependency time to recover and protecting the caller from
cascading failure under high concurrency.

This is the decision layer that answers, per call site, "is it currently safe to
attempt this operation?". It is not a retry library and not a rate limiter:
nothing is retried internally and nothing is throttled, the caller only gets a
distinct rejection it can branch on.

# Guarded call

The usual entry point is Execute, which wraps a command in a guarded call scope:
admission is checked before the command runs, and the outcome is reported back
to the breaker on every exit path.

	reg := registry.New()

	cfg := breaker.DefaultConfig()
	cfg.FailureThreshold = 5
	cfg.OpenTimeout = time.Second * 30
	cfg.FailureKinds = []core.FaultKind{"upstream-unavailable"}

	b, err := reg.GetOrCreate("payments-api", cfg)
	if err != nil {
		// Error handling.
	}

	err = fusivel.Execute(ctx, b, func(ctx context.Context) error {
		if err := callPaymentsAPI(ctx); err != nil {
			// Tag failures that should count against the breaker.
			return core.NewFault("upstream-unavailable", err)
		}
		return nil
	})

	switch {
	case errors.Is(err, fusivel.ErrOpenCircuit):
		// Circuit is open: the call was refused, the service was not touched.
	case err != nil:
		// The operation itself failed; the error reaches you unchanged.
	}

# Protected command

Protect builds the decorated command once and hands it back, so call sites do
not have to thread the breaker around:

	cmd, err := fusivel.Protect(reg, "payments-api", cfg, callPaymentsAPI)
	...
	err = cmd(ctx)

# Observability

Breakers emit state-change events; they do not format nor ship them. The
observe package provides ready-made consumers for slog and Prometheus:

	reg.OnStateChange(observe.Slog(logger))
*/
package fusivel
