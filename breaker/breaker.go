package breaker

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/aureliano/fusivel/core"
)

var (
	// ErrTokenConsumed means an outcome was already reported for the token.
	ErrTokenConsumed = errors.New("token already consumed")

	// ErrUnknownToken means the token was not issued by this breaker.
	ErrUnknownToken = errors.New("token does not belong to this breaker")
)

// State is the operating state of a breaker.
type State int

const (
	// Closed is normal operation: calls flow through, failures are counted.
	Closed State = iota

	// Open rejects calls outright; the dependency is assumed unhealthy.
	Open

	// HalfOpen lets a limited number of trial calls probe recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// StateChangeFunc is invoked synchronously on every state transition. It
// runs inside the breaker critical section, so it must be fast and must not
// call back into the breaker.
type StateChangeFunc func(key string, from, to State, at time.Time)

// Token is the opaque admission receipt returned by Allow. Exactly one
// outcome must be reported per token, through RecordSuccess or
// RecordFailure; reporting twice is a caller contract violation and fails
// with ErrTokenConsumed.
type Token struct {
	owner    *Breaker
	trial    bool
	epoch    uint64
	consumed bool
}

// Breaker is the state machine guarding one protected resource. It is safe
// for concurrent use by multiple goroutines; none of its methods block.
type Breaker struct {
	key        string
	cfg        Config
	classifier core.Classifier

	mu             sync.Mutex
	state          State
	failureCount   int
	openedAt       time.Time
	openDeadline   time.Time
	openEntries    int
	trialEpoch     uint64
	trialInFlight  int
	trialSuccesses int
	listeners      []StateChangeFunc
}

// New creates a closed breaker for the given resource key. The config is
// validated first; an invalid config fails with ErrInvalidConfig.
func New(key string, cfg Config) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Breaker{
		key:        key,
		cfg:        cfg,
		classifier: cfg.classifier(),
		state:      Closed,
	}, nil
}

// Key returns the identifier of the protected resource.
func (b *Breaker) Key() string {
	return b.key
}

// OnStateChange registers a listener invoked on every state transition.
func (b *Breaker) OnStateChange(fn StateChangeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.listeners = append(b.listeners, fn)
}

// Allow decides whether a call may proceed. When permitted, the returned
// token must be reported back with RecordSuccess or RecordFailure so the
// breaker can account for the call. When not permitted the token is nil and
// the caller must not invoke the protected operation.
//
// The open to half-open transition is lazy: it happens here, on the first
// Allow at or after the open deadline, never on a passive state read.
func (b *Breaker) Allow() (*Token, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if b.state == Open && !now.Before(b.openDeadline) {
		b.toHalfOpen(now)
	}

	switch b.state {
	case Closed:
		return &Token{owner: b}, true
	case HalfOpen:
		if b.trialInFlight >= b.cfg.TrialLimit {
			return nil, false
		}
		b.trialInFlight++
		return &Token{owner: b, trial: true, epoch: b.trialEpoch}, true
	default:
		return nil, false
	}
}

// RecordSuccess reports that the call admitted by tok succeeded. While
// closed it clears the consecutive failure counter; while half-open a trial
// success counts towards the recovery threshold and may close the circuit.
func (b *Breaker) RecordSuccess(tok *Token) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.consume(tok); err != nil {
		return err
	}
	b.release(tok)

	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		if tok.trial && tok.epoch == b.trialEpoch {
			b.trialSuccesses++
			if b.trialSuccesses >= b.cfg.RecoveryThreshold {
				b.toClosed(time.Now())
			}
		}
	}

	return nil
}

// RecordFailure reports that the call admitted by tok failed with the given
// fault kind. Kinds outside the configured failure set are ignored: the
// token is consumed and the trial slot released, but no counter moves and
// no transition happens. A qualifying failure increments the failure
// counter while closed and re-opens the circuit while half-open.
func (b *Breaker) RecordFailure(tok *Token, kind core.FaultKind) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.consume(tok); err != nil {
		return err
	}
	b.release(tok)

	if b.classifier.ClassifyKind(kind) != core.CountsAsFailure {
		return nil
	}

	switch b.state {
	case Closed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.toOpen(time.Now())
		}
	case HalfOpen:
		b.toOpen(time.Now())
	}
	// A late report landing while open changes nothing: the window was
	// already restarted by whatever opened the circuit.

	return nil
}

// State returns a read-only snapshot of the current state. It never causes
// a transition: a breaker past its open deadline still reads as open until
// the next Allow.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// Reset forces the breaker back to closed and invalidates outstanding trial
// tokens. Meant for tests and manual operation.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trialEpoch++
	b.trialInFlight = 0
	b.trialSuccesses = 0
	b.toClosed(time.Now())
}

// consume marks the token as used. Must be called with b.mu held.
func (b *Breaker) consume(tok *Token) error {
	if tok == nil || tok.owner != b {
		return ErrUnknownToken
	}
	if tok.consumed {
		return ErrTokenConsumed
	}
	tok.consumed = true

	return nil
}

// release frees the trial slot held by tok, if any. A token from a previous
// half-open window must not shrink the current one, hence the epoch check.
// Must be called with b.mu held.
func (b *Breaker) release(tok *Token) {
	if tok.trial && b.state == HalfOpen && tok.epoch == b.trialEpoch && b.trialInFlight > 0 {
		b.trialInFlight--
	}
}

func (b *Breaker) toOpen(now time.Time) {
	b.openEntries++
	b.openedAt = now
	b.openDeadline = b.openedAt.Add(b.openWindow())
	b.failureCount = 0
	b.setState(Open, now)
}

func (b *Breaker) toHalfOpen(now time.Time) {
	b.trialEpoch++
	b.trialInFlight = 0
	b.trialSuccesses = 0
	b.setState(HalfOpen, now)
}

func (b *Breaker) toClosed(now time.Time) {
	b.failureCount = 0
	b.openEntries = 0
	b.setState(Closed, now)
}

// openWindow computes the duration of the open window being entered. With
// no backoff cap it is simply the configured open timeout. With a cap, the
// window doubles on every consecutive re-open and a full jitter draw is
// applied, so simultaneous probes from many processes spread out. The
// window is computed once per open entry.
func (b *Breaker) openWindow() time.Duration {
	window := b.cfg.OpenTimeout
	if b.cfg.BackoffCap <= 0 {
		return window
	}

	for i := 1; i < b.openEntries && window < b.cfg.BackoffCap; i++ {
		window *= 2
	}
	if window > b.cfg.BackoffCap {
		window = b.cfg.BackoffCap
	}

	return time.Duration(rand.Int64N(int64(window))) + 1
}

// setState transitions to the target state and notifies the listeners.
// Must be called with b.mu held.
func (b *Breaker) setState(to State, at time.Time) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	for _, fn := range b.listeners {
		fn(b.key, from, to, at)
	}
}
