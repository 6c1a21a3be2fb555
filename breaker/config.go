package breaker

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/aureliano/fusivel/core"
)

var (
	// ErrInvalidConfig is wrapped by every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid breaker configuration")
)

// Config holds the per-resource parameters of a breaker. A zero value is not
// usable; start from DefaultConfig or fill every field explicitly.
type Config struct {
	// FailureThreshold is the number of consecutive qualifying failures,
	// while closed, that trips the circuit. Must be >= 1.
	FailureThreshold int

	// OpenTimeout is how long the circuit stays open before the next call
	// is allowed to probe recovery. Must be > 0.
	OpenTimeout time.Duration

	// TrialLimit caps the number of outstanding trial calls while
	// half-open. Must be >= 1.
	TrialLimit int

	// RecoveryThreshold is the number of successful trials, with no
	// intervening qualifying failure, that closes the circuit again.
	// Must be >= 1.
	RecoveryThreshold int

	// FailureKinds is the set of fault kinds that count against the
	// breaker. Failures tagged with any other kind are ignored.
	FailureKinds []core.FaultKind

	// BackoffCap, when set, doubles the open window on every consecutive
	// re-open and applies full jitter, capping the window at this value.
	// Zero keeps the open window fixed at OpenTimeout.
	BackoffCap time.Duration
}

// DefaultConfig returns a config with the most conservative settings: a
// single qualifying failure opens the circuit for one second and a single
// successful trial closes it again.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  1,
		OpenTimeout:       time.Second * 1,
		TrialLimit:        1,
		RecoveryThreshold: 1,
	}
}

// Validate reports whether the config is usable. It never clamps: any
// out-of-range field fails with an error wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.FailureThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.OpenTimeout, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.TrialLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.RecoveryThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.BackoffCap, validation.By(c.backoffCapCoversOpenTimeout)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

func (c Config) backoffCapCoversOpenTimeout(value interface{}) error {
	limit, _ := value.(time.Duration)
	if limit != 0 && limit < c.OpenTimeout {
		return errors.New("must be zero or >= the open timeout")
	}

	return nil
}

func (c Config) classifier() core.Classifier {
	return core.NewClassifier(c.FailureKinds...)
}
