package fusivel

import (
	"context"
	"errors"
	"fmt"

	"github.com/aureliano/fusivel/breaker"
	"github.com/aureliano/fusivel/core"
	"github.com/aureliano/fusivel/registry"
)

var (
	// ErrOpenCircuit is returned when the breaker refuses admission. It is
	// an expected control-flow signal, not a defect: catch it to branch on
	// "dependency assumed unhealthy" separately from the operation's own
	// failures.
	ErrOpenCircuit = errors.New("circuit is open")
)

// OpenError reports a refused admission. It unwraps to ErrOpenCircuit and
// carries the resource key and the state the breaker was in.
type OpenError struct {
	Key   string
	State breaker.State
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%s: circuit is open (%s)", e.Key, e.State)
}

func (e *OpenError) Unwrap() error {
	return ErrOpenCircuit
}

// Execute runs cmd under the protection of b. If the breaker refuses
// admission, cmd is never invoked and an *OpenError is returned. Otherwise
// cmd runs exactly once, its outcome is reported back to the breaker, and
// its error is returned unchanged — Execute never swallows nor wraps the
// result of the protected operation.
//
// The outcome is reported on every exit path: even if cmd panics, the
// admission is released before the panic resumes, so the breaker is never
// left accounting for a call that will not report.
func Execute(ctx context.Context, b *breaker.Breaker, cmd core.Command) error {
	tok, ok := b.Allow()
	if !ok {
		return &OpenError{Key: b.Key(), State: b.State()}
	}

	reported := false
	defer func() {
		if !reported {
			// cmd panicked. Release the admission without counting:
			// an untagged failure is ignored by the classifier.
			_ = b.RecordFailure(tok, "")
		}
	}()

	err := cmd(ctx)
	reported = true

	if err != nil {
		kind, _ := core.KindOf(err)
		_ = b.RecordFailure(tok, kind)
		return err
	}

	_ = b.RecordSuccess(tok)

	return nil
}

// Protect decorates cmd with the breaker registered under key, creating it
// on first use. The returned command runs the original one inside a guarded
// call scope.
func Protect(reg *registry.Registry, key string, cfg breaker.Config, cmd core.Command) (core.Command, error) {
	b, err := reg.GetOrCreate(key, cfg)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		return Execute(ctx, b, cmd)
	}, nil
}
