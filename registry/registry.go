package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/aureliano/fusivel/breaker"
)

var (
	// ErrBreakerNotFound means no breaker is registered under the key.
	ErrBreakerNotFound = errors.New("circuit breaker not found")
)

type entry struct {
	breaker *breaker.Breaker
	cfg     breaker.Config
}

// Registry owns one breaker per resource key. Breakers are created lazily on
// first access and shared by every caller using the same key. Lookups are
// frequent and creations rare, so the map is guarded by a reader/writer lock
// with a double-checked create.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	listeners []breaker.StateChangeFunc
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// GetOrCreate returns the breaker registered under key, creating it with cfg
// on first access. The config of later callers for an existing key is
// ignored; use Reset or Remove to reconfigure. At most one breaker is ever
// created per key, even under concurrent first access. An invalid config
// fails with ErrInvalidConfig and registers nothing.
func (r *Registry) GetOrCreate(key string, cfg breaker.Config) (*breaker.Breaker, error) {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()

	if ok {
		return e.breaker, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have won the race.
	if e, ok := r.entries[key]; ok {
		return e.breaker, nil
	}

	b, err := r.create(key, cfg)
	if err != nil {
		return nil, err
	}
	r.entries[key] = &entry{breaker: b, cfg: cfg}

	return b, nil
}

// Get returns the breaker registered under key, if any.
func (r *Registry) Get(key string) (*breaker.Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}

	return e.breaker, true
}

// Remove drops the breaker registered under key. Callers already holding a
// reference keep the old instance; it simply is no longer handed out.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key)
}

// Reset replaces the breaker registered under key with a fresh closed one
// built from the stored config. In-flight callers keep the old instance.
func (r *Registry) Reset(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		return ErrBreakerNotFound
	}

	b, err := r.create(key, e.cfg)
	if err != nil {
		return err
	}
	e.breaker = b

	return nil
}

// OnStateChange registers a listener notified of every transition of every
// breaker owned by the registry, including breakers created before the
// registration and after it.
func (r *Registry) OnStateChange(fn breaker.StateChangeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, fn)
}

// States returns a snapshot of the current state of every registered
// breaker, keyed by resource.
func (r *Registry) States() map[string]breaker.State {
	r.mu.RLock()
	breakers := make(map[string]*breaker.Breaker, len(r.entries))
	for key, e := range r.entries {
		breakers[key] = e.breaker
	}
	r.mu.RUnlock()

	// Query each breaker outside the registry lock; a transition being
	// notified at the same moment must not be able to deadlock with us.
	states := make(map[string]breaker.State, len(breakers))
	for key, b := range breakers {
		states[key] = b.State()
	}

	return states
}

// create builds a breaker wired to the registry listener fan-out. Must be
// called with r.mu held for writing.
func (r *Registry) create(key string, cfg breaker.Config) (*breaker.Breaker, error) {
	b, err := breaker.New(key, cfg)
	if err != nil {
		return nil, err
	}
	b.OnStateChange(r.notify)

	return b, nil
}

// notify fans a breaker transition out to the registered listeners. The
// listener slice is copied out so no registry lock is held while user code
// runs.
func (r *Registry) notify(key string, from, to breaker.State, at time.Time) {
	r.mu.RLock()
	listeners := r.listeners
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(key, from, to, at)
	}
}
