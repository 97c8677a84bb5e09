package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sitegui/kaiju/reflext"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"
)

const (
	keyedCacheLogCategory = "keyed_cache"
)

// Keyed is an in-memory Cache where each key has at most one fetch in flight. Entries are
// never evicted; an expired entry is only refreshed when it is asked for again.
//
// The zero value is not usable, use NewKeyed.
type Keyed struct {
	mu      sync.Mutex
	entries map[Key]*entry

	permits  *semaphore.Weighted
	clock    Clock
	observer Observer
}

var _ Cache = (*Keyed)(nil)

func NewKeyed(opts ...Option) *Keyed {
	c := &Keyed{
		entries:  map[Key]*entry{},
		clock:    SystemClock,
		observer: nopObserver{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Keyed) GetOrSet(ctx context.Context, key Key, result interface{}, ttl time.Duration, fetch FetchFunc) error {
	if err := ensureValidCacheKey(key); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		f, cached, outcome := c.lookup(ctx, key, ttl, fetch)
		c.observer.ObserveLookup(key.Kind(), outcome)
		if f == nil {
			return c.deliver(key, result, cached)
		}

		select {
		case <-f.done:
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		}

		if f.abandoned {
			// Every caller of that fill gave up before it finished. Look again, this
			// caller may become the owner of a new one.
			logFlightAbandoned(key)
			continue
		}
		return c.deliver(key, result, f.result)
	}
}

// lookup returns either a fresh cached value, or the flight to wait on. In the latter case
// it may have just started that flight.
func (c *Keyed) lookup(ctx context.Context, key Key, ttl time.Duration, fetch FetchFunc) (*flight, cachedValue, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}

	if e.flight != nil {
		// When the flight context is already cancelled the fill is about to end as
		// abandoned: waiting for it and then retrying is still correct.
		e.flight.ctx.AddContext(ctx)
		return e.flight, cachedValue{}, OutcomeWait
	}

	outcome := OutcomeMiss
	if e.value != nil {
		if e.value.TTL(c.clock.Now()) > 0 {
			return nil, *e.value, OutcomeHit
		}
		outcome = OutcomeExpired
	}

	f := newFlight(ctx)
	e.flight = f
	go c.fill(key, e, f, ttl, fetch)
	return f, cachedValue{}, outcome
}

func (c *Keyed) fill(key Key, e *entry, f *flight, ttl time.Duration, fetch FetchFunc) {
	started := c.clock.Now()
	completed := false
	defer func() {
		if !completed {
			logFetchExited(key)
			c.observer.ObserveFill(key.Kind(), FillError, started)
			c.complete(e, f, newCachedValue(nil, ErrFetchExited, c.clock.Now(), ttl), false)
		}
	}()

	value, err := c.run(f.ctx, fetch)
	abandoned := err != nil && f.ctx.Err() != nil

	switch {
	case abandoned:
		c.observer.ObserveFill(key.Kind(), FillAbandoned, started)
	case err != nil:
		logFetchError(key, err)
		c.observer.ObserveFill(key.Kind(), FillError, started)
	default:
		c.observer.ObserveFill(key.Kind(), FillOK, started)
	}

	c.complete(e, f, newCachedValue(value, err, c.clock.Now(), ttl), abandoned)
	completed = true
}

// run calls fetch once a permit is available, turning panics into errors.
func (c *Keyed) run(ctx context.Context, fetch FetchFunc) (value interface{}, err error) {
	if c.permits != nil {
		if err := c.permits.Acquire(ctx, 1); err != nil {
			return nil, errors.Wrapf(err, "Gave up waiting for a fetch slot")
		}
		defer c.permits.Release(1)
	}

	var catcher panics.Catcher
	catcher.Try(func() {
		value, err = fetch(ctx)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		return nil, errors.Wrapf(recovered.AsError(), "Fetch function panicked")
	}
	return value, err
}

// complete publishes the outcome of f and wakes its waiters. An abandoned fill leaves the
// entry as it was before the fill started, so the next caller starts over.
func (c *Keyed) complete(e *entry, f *flight, value cachedValue, abandoned bool) {
	c.mu.Lock()
	if e.flight == f {
		e.flight = nil
		if !abandoned {
			e.value = &value
		}
	}
	f.result = value
	f.abandoned = abandoned
	c.mu.Unlock()

	f.ctx.Release()
	close(f.done)
}

func (c *Keyed) deliver(key Key, result interface{}, value cachedValue) error {
	if value.Err != nil {
		return value.Err
	}
	if err := reflext.SetPointer(result, value.Value); err != nil {
		logTypeMismatch(key, err)
		return &TypeMismatchError{Key: key.String(), Err: err}
	}
	return nil
}

// Clear drops every entry. Fills in flight keep their waiters but store their outcome in
// the detached entries.
func (c *Keyed) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[Key]*entry{}
}

// Len returns the number of keys currently known, loading or not.
func (c *Keyed) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func logFetchError(key Key, err error) {
	logger(keyedCacheLogCategory, "fetch_error", key).
		WithError(err).
		Warn("Fetch failed, caching the error")
}

func logFetchExited(key Key) {
	logger(keyedCacheLogCategory, "fetch_goexit", key).
		Error("Fetch function called runtime.Goexit")
}

func logFlightAbandoned(key Key) {
	logger(keyedCacheLogCategory, "flight_abandoned", key).
		Debug("Fill abandoned by its callers, retrying")
}

func logTypeMismatch(key Key, err error) {
	logger(keyedCacheLogCategory, "type_mismatch", key).
		WithError(err).
		Error("Cache key reused with an incompatible type")
}
