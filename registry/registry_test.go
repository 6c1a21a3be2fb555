package registry_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/aureliano/fusivel/breaker"
	"github.com/aureliano/fusivel/core"
	"github.com/aureliano/fusivel/registry"
)

const kindUnavailable core.FaultKind = "upstream-unavailable"

type mockListener struct{ mock.Mock }

func (l *mockListener) changed(key string, from, to breaker.State, at time.Time) {
	l.Called(key, from, to, at)
}

func newConfig() breaker.Config {
	cfg := breaker.DefaultConfig()
	cfg.OpenTimeout = time.Millisecond * 100
	cfg.FailureKinds = []core.FaultKind{kindUnavailable}

	return cfg
}

func tripBreaker(t *testing.T, b *breaker.Breaker) {
	t.Helper()

	tok, ok := b.Allow()
	assert.True(t, ok)
	assert.Nil(t, b.RecordFailure(tok, kindUnavailable))
	assert.Equal(t, breaker.Open, b.State())
}

func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	reg := registry.New()

	b1, err := reg.GetOrCreate("service-name", newConfig())
	assert.Nil(t, err)

	b2, err := reg.GetOrCreate("service-name", newConfig())
	assert.Nil(t, err)
	assert.Same(t, b1, b2)
}

func TestGetOrCreateIgnoresLaterConfig(t *testing.T) {
	reg := registry.New()

	b1, err := reg.GetOrCreate("service-name", newConfig())
	assert.Nil(t, err)

	other := newConfig()
	other.FailureThreshold = 99
	b2, err := reg.GetOrCreate("service-name", other)
	assert.Nil(t, err)
	assert.Same(t, b1, b2)
}

func TestGetOrCreateRejectsInvalidConfig(t *testing.T) {
	reg := registry.New()

	cfg := newConfig()
	cfg.FailureThreshold = 0
	b, err := reg.GetOrCreate("service-name", cfg)
	assert.Nil(t, b)
	assert.ErrorIs(t, err, breaker.ErrInvalidConfig)

	// Nothing was registered for the key.
	_, ok := reg.Get("service-name")
	assert.False(t, ok)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	const callers = 100

	reg := registry.New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	instances := make(map[*breaker.Breaker]struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			b, err := reg.GetOrCreate("service-name", newConfig())
			assert.Nil(t, err)

			mu.Lock()
			instances[b] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, instances, 1)
}

func TestGet(t *testing.T) {
	reg := registry.New()

	_, ok := reg.Get("unknown")
	assert.False(t, ok)

	b, err := reg.GetOrCreate("service-name", newConfig())
	assert.Nil(t, err)

	found, ok := reg.Get("service-name")
	assert.True(t, ok)
	assert.Same(t, b, found)
}

func TestRemove(t *testing.T) {
	reg := registry.New()

	old, err := reg.GetOrCreate("service-name", newConfig())
	assert.Nil(t, err)

	reg.Remove("service-name")
	_, ok := reg.Get("service-name")
	assert.False(t, ok)

	fresh, err := reg.GetOrCreate("service-name", newConfig())
	assert.Nil(t, err)
	assert.NotSame(t, old, fresh)

	// The old reference stays usable for in-flight callers.
	tok, ok := old.Allow()
	assert.True(t, ok)
	assert.Nil(t, old.RecordSuccess(tok))
}

func TestReset(t *testing.T) {
	reg := registry.New()

	old, err := reg.GetOrCreate("service-name", newConfig())
	assert.Nil(t, err)
	tripBreaker(t, old)

	assert.Nil(t, reg.Reset("service-name"))

	fresh, ok := reg.Get("service-name")
	assert.True(t, ok)
	assert.NotSame(t, old, fresh)
	assert.Equal(t, breaker.Closed, fresh.State())

	// The replacement keeps the stored config: one qualifying failure
	// still trips it.
	tripBreaker(t, fresh)

	// The old instance is unaffected by the reset.
	assert.Equal(t, breaker.Open, old.State())
}

func TestResetUnknownKey(t *testing.T) {
	reg := registry.New()
	assert.ErrorIs(t, reg.Reset("unknown"), registry.ErrBreakerNotFound)
}

func TestOnStateChangeFansOut(t *testing.T) {
	reg := registry.New()

	// Created before the listener registration; must still be observed.
	early, err := reg.GetOrCreate("early-service", newConfig())
	assert.Nil(t, err)

	listener := new(mockListener)
	listener.On("changed", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()
	reg.OnStateChange(listener.changed)

	late, err := reg.GetOrCreate("late-service", newConfig())
	assert.Nil(t, err)

	tripBreaker(t, early)
	tripBreaker(t, late)

	listener.AssertCalled(t, "changed", "early-service", breaker.Closed, breaker.Open, mock.Anything)
	listener.AssertCalled(t, "changed", "late-service", breaker.Closed, breaker.Open, mock.Anything)
	listener.AssertNumberOfCalls(t, "changed", 2)
}

func TestStates(t *testing.T) {
	reg := registry.New()

	healthy, err := reg.GetOrCreate("healthy-service", newConfig())
	assert.Nil(t, err)
	broken, err := reg.GetOrCreate("broken-service", newConfig())
	assert.Nil(t, err)

	tok, ok := healthy.Allow()
	assert.True(t, ok)
	assert.Nil(t, healthy.RecordSuccess(tok))
	tripBreaker(t, broken)

	states := reg.States()
	assert.Equal(t, map[string]breaker.State{
		"healthy-service": breaker.Closed,
		"broken-service":  breaker.Open,
	}, states)
}
