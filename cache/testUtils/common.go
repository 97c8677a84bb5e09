package testUtils

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/sitegui/kaiju/cache"
)

// Key is a cache key for tests.
type Key string

func (k Key) Kind() string   { return "test" }
func (k Key) String() string { return string(k) }

// Fetch simplifies the code when writing fetch functions to be used by GetOrSet.
func Fetch(value interface{}, err error) cache.FetchFunc {
	return func(context.Context) (interface{}, error) {
		return value, err
	}
}

// ErrUnexpectedFetch is returned by FetchPanic.
var ErrUnexpectedFetch = errors.New("Fetch function should not have been called")

// FetchPanic is a fetch function that should not be called. Fetches run on their own
// goroutine, where So cannot report, so it fails the GetOrSet call instead.
func FetchPanic(context.Context) (interface{}, error) {
	return nil, ErrUnexpectedFetch
}

// CountingFetch wraps fetch, counting how many times it was called.
type CountingFetch struct {
	calls int32
	fetch cache.FetchFunc
}

func NewCountingFetch(fetch cache.FetchFunc) *CountingFetch {
	return &CountingFetch{fetch: fetch}
}

func (f *CountingFetch) Fetch(ctx context.Context) (interface{}, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.fetch(ctx)
}

func (f *CountingFetch) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

// SlowFetch returns value after sleeping for delay, or the context error if it is
// cancelled first.
func SlowFetch(delay time.Duration, value interface{}, err error) cache.FetchFunc {
	return func(ctx context.Context) (interface{}, error) {
		select {
		case <-time.After(delay):
			return value, err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// BlockingFetch returns value once release is closed, or the context error if it is
// cancelled first. started is closed when the fetch begins.
func BlockingFetch(started, release chan struct{}, value interface{}) cache.FetchFunc {
	return func(ctx context.Context) (interface{}, error) {
		close(started)
		select {
		case <-release:
			return value, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func GetOrSetCached(c cache.Cache, key cache.Key, duration time.Duration, expectedValue int) {
	var data int
	So(c.GetOrSet(context.Background(), key, &data, duration, FetchPanic), ShouldBeNil)
	So(data, ShouldEqual, expectedValue)
}

func GetOrSetFetch(c cache.Cache, key cache.Key, duration time.Duration, expectedValue int) {
	var data int
	So(c.GetOrSet(context.Background(), key, &data, duration, Fetch(expectedValue, nil)), ShouldBeNil)
	So(data, ShouldEqual, expectedValue)
}

func GetOrSetError(c cache.Cache, key cache.Key, duration time.Duration, expectedErr error) {
	var data int
	err := c.GetOrSet(context.Background(), key, &data, duration, Fetch(nil, expectedErr))
	So(err, ShouldNotBeNil)
	So(errors.Cause(err), ShouldEqual, expectedErr)
}

// WithTimeout fails the test if f does not return within timeout.
func WithTimeout(timeout time.Duration, f func()) func() {
	return func() {
		done := make(chan struct{})
		defer close(done)

		go func() {
			select {
			case <-done:
			case <-time.After(timeout):
				panic(fmt.Sprintf("Test did not finish within %s", timeout))
			}
		}()

		f()
	}
}
