/*
The breaker package contains the circuit breaker state machine. A breaker guards
one protected resource: it counts qualifying failures while closed, rejects calls
outright while open, and admits a bounded number of trial calls while half-open
to probe recovery.

# States

	> Closed:    normal operation. Every call is admitted. Each qualifying failure
	             increments a consecutive failure counter; a qualifying success
	             resets it. Reaching FailureThreshold opens the circuit.
	> Open:      every call is rejected without touching the resource. Once
	             OpenTimeout has elapsed, the next Allow moves to half-open.
	             The transition is driven by demand, not by a timer.
	> HalfOpen:  up to TrialLimit calls are admitted as trials. One qualifying
	             trial failure re-opens the circuit and restarts the window;
	             RecoveryThreshold trial successes close it.

# Usage

	cfg := breaker.DefaultConfig()
	cfg.FailureThreshold = 5
	cfg.OpenTimeout = time.Second * 30
	cfg.FailureKinds = []core.FaultKind{"upstream-unavailable"}

	b, err := breaker.New("payments-api", cfg)
	if err != nil {
		// Invalid configuration.
	}

	tok, ok := b.Allow()
	if !ok {
		// Circuit is open, do not call the service.
	}

	err = callService()
	if err != nil {
		kind, _ := core.KindOf(err)
		b.RecordFailure(tok, kind)
	} else {
		b.RecordSuccess(tok)
	}

Most callers should not drive a breaker by hand; the root fusivel package wraps
this protocol in a guarded call scope that reports on every exit path.

# Backoff

Setting Config.BackoffCap makes consecutive open windows grow exponentially with
full jitter, up to the cap. The growth resets once the circuit closes.
*/
package breaker
