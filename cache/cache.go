package cache

import (
	"context"
	"time"
)

// Key identifies one cacheable request. Implementations must be comparable values,
// usually small structs holding the request kind and its parameters: two keys address the
// same entry when they are == as interface values.
type Key interface {
	// Kind names the request kind. It is used as a metrics label, so it must have low
	// cardinality.
	Kind() string
	String() string
}

// FetchFunc produces the value for a missing or expired key. The context it receives is
// shared by every caller waiting on the same fill and is only cancelled once all of them
// have given up.
type FetchFunc func(ctx context.Context) (interface{}, error)

type Cache interface {
	// GetOrSet stores in result (a pointer) the fresh value cached under key, running fetch
	// when there is none. Concurrent callers for the same key share a single fetch. Errors
	// returned by fetch are cached for ttl just like values.
	GetOrSet(ctx context.Context, key Key, result interface{}, ttl time.Duration, fetch FetchFunc) error
	// Clear forgets every entry. Fills already running still deliver to their waiters.
	Clear()
}

// Load is the typed form of GetOrSet.
func Load[V any](ctx context.Context, c Cache, key Key, ttl time.Duration, fetch func(context.Context) (V, error)) (V, error) {
	var result V
	err := c.GetOrSet(ctx, key, &result, ttl, func(ctx context.Context) (interface{}, error) {
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return value, nil
	})
	return result, err
}
