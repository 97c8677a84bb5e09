package cache

import (
	"context"
	"time"

	"github.com/sitegui/kaiju/sharedflight"
)

// cachedValue is the outcome of one fill: a value or an error, kept until FreshUntil.
type cachedValue struct {
	FreshUntil time.Time
	Value      interface{}
	Err        error
}

func newCachedValue(value interface{}, err error, now time.Time, duration time.Duration) cachedValue {
	return cachedValue{
		FreshUntil: now.Add(duration),
		Value:      value,
		Err:        err,
	}
}

func (c cachedValue) TTL(now time.Time) time.Duration {
	return c.FreshUntil.Sub(now)
}

// entry is the state kept for one key. While flight is set the key is loading; otherwise
// value, if any, holds the last outcome, which may be stale.
type entry struct {
	flight *flight
	value  *cachedValue
}

// flight is one fill of an entry. result and abandoned are written once, before done is
// closed, and only read after.
type flight struct {
	ctx  sharedflight.UnionContext
	done chan struct{}

	result    cachedValue
	abandoned bool
}

func newFlight(ctx context.Context) *flight {
	return &flight{
		ctx:  sharedflight.NewUnionContext(ctx),
		done: make(chan struct{}),
	}
}
