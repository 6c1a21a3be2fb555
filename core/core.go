package core

import (
	"context"
	"errors"
	"fmt"
)

// Command is the operation protected by a circuit breaker. It is just a
// pointer to an anonymous function that does the actual remote call.
type Command func(ctx context.Context) error

// FaultKind is a category of failure outcome. Breakers are configured with
// the set of kinds that count against them; any other failure passes
// through without affecting the circuit.
type FaultKind string

// Fault tags an error with the fault kind it belongs to. Wrap the errors
// returned by a protected operation in a Fault so that the classifier can
// recognize them.
type Fault struct {
	Kind FaultKind
	Err  error
}

// NewFault wraps err with the given fault kind.
func NewFault(kind FaultKind, err error) *Fault {
	return &Fault{Kind: kind, Err: err}
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}

	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// KindOf extracts the fault kind of an error. It walks the wrapping chain,
// so a Fault wrapped with fmt.Errorf %w is still recognized. The second
// return value is false when the error carries no fault kind.
func KindOf(err error) (FaultKind, bool) {
	var fault *Fault
	if errors.As(err, &fault) {
		return fault.Kind, true
	}

	return "", false
}

// Outcome is the classifier verdict for the result of a protected call.
type Outcome int

const (
	// CountsAsSuccess clears the consecutive failure counter.
	CountsAsSuccess Outcome = iota

	// CountsAsFailure counts against the breaker and may trip it.
	CountsAsFailure

	// Ignored does not touch counters nor state; the error still
	// propagates to the caller as an ordinary failure.
	Ignored
)

// Classifier decides whether the outcome of a protected call counts as a
// failure for breaker purposes. It is configured with the set of fault
// kinds that count; everything outside that set is ignored.
type Classifier struct {
	kinds map[FaultKind]struct{}
}

// NewClassifier creates a classifier that counts the given fault kinds.
func NewClassifier(kinds ...FaultKind) Classifier {
	c := Classifier{kinds: make(map[FaultKind]struct{}, len(kinds))}
	for _, kind := range kinds {
		c.kinds[kind] = struct{}{}
	}

	return c
}

// Classify categorizes the error returned by a protected call. A nil error
// counts as success; an error tagged with a configured kind counts as
// failure; anything else is ignored.
func (c Classifier) Classify(err error) Outcome {
	if err == nil {
		return CountsAsSuccess
	}

	if kind, ok := KindOf(err); ok {
		return c.ClassifyKind(kind)
	}

	return Ignored
}

// ClassifyKind categorizes a failure by its kind alone.
func (c Classifier) ClassifyKind(kind FaultKind) Outcome {
	if _, ok := c.kinds[kind]; ok {
		return CountsAsFailure
	}

	return Ignored
}
