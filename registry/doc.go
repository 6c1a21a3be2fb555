/*
The registry package manages one breaker per named resource. It is the sole
creator of breakers: the first caller asking for a key creates the breaker with
its config, and every later caller receives that same shared instance.

# Usage

	reg := registry.New()

	cfg := breaker.DefaultConfig()
	cfg.FailureThreshold = 5
	cfg.FailureKinds = []core.FaultKind{"upstream-unavailable"}

	b, err := reg.GetOrCreate("payments-api", cfg)
	if err != nil {
		// Invalid configuration.
	}

Remove and Reset exist for test isolation and dynamic reconfiguration. Neither
touches in-flight callers: a goroutine already holding a breaker reference keeps
using the old instance.

# Observability

A listener registered with OnStateChange is invoked synchronously on every
transition of every breaker the registry owns:

	reg.OnStateChange(observe.Slog(logger))
*/
package registry
