package cache

import (
	"time"

	"golang.org/x/sync/semaphore"
)

// Clock is an interface for getting the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc is a function type that implements the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock is the default clock that uses time.Now.
var SystemClock Clock = ClockFunc(time.Now)

// Lookup outcomes reported to an Observer.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeExpired = "expired"
	OutcomeWait    = "wait"
)

// Fill statuses reported to an Observer.
const (
	FillOK        = "ok"
	FillError     = "error"
	FillAbandoned = "abandoned"
)

// Observer receives cache events, typically to export them as metrics.
type Observer interface {
	ObserveLookup(kind, outcome string)
	ObserveFill(kind, status string, started time.Time)
}

type nopObserver struct{}

func (nopObserver) ObserveLookup(string, string)          {}
func (nopObserver) ObserveFill(string, string, time.Time) {}

type Option func(*Keyed)

// WithParallelism bounds how many fetch functions run at once across all keys. Zero or a
// negative value means no limit.
func WithParallelism(n int) Option {
	return func(c *Keyed) {
		if n > 0 {
			c.permits = semaphore.NewWeighted(int64(n))
		} else {
			c.permits = nil
		}
	}
}

func WithClock(clock Clock) Option {
	return func(c *Keyed) {
		c.clock = clock
	}
}

func WithObserver(observer Observer) Option {
	return func(c *Keyed) {
		c.observer = observer
	}
}
