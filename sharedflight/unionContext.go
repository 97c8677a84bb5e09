package sharedflight

import (
	"context"
	"sync"
	"time"
)

// UnionContext is a context that stays alive while at least one of the contexts added to
// it is alive. Values are looked up in every member, in insertion order. It never carries
// a deadline of its own.
type UnionContext interface {
	context.Context
	// AddContext registers one more interested context. It returns false when the union
	// has already been cancelled, in which case ctx was not added.
	AddContext(ctx context.Context) bool
	// Release cancels the union regardless of its members. Must be called once the work
	// running under the union is done.
	Release()
}

type unionContext struct {
	inner  context.Context
	cancel func()

	mu          sync.RWMutex
	subContexts []context.Context
}

func NewUnionContext(base context.Context) UnionContext {
	inner, cancel := context.WithCancel(context.Background())
	union := &unionContext{
		inner:       inner,
		cancel:      cancel,
		subContexts: []context.Context{base},
	}
	go union.cancelLoop()
	return union
}

func (u *unionContext) Deadline() (time.Time, bool) {
	return u.inner.Deadline()
}

func (u *unionContext) Done() <-chan struct{} {
	return u.inner.Done()
}

func (u *unionContext) Err() error {
	return u.inner.Err()
}

func (u *unionContext) Value(key interface{}) interface{} {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, ctx := range u.subContexts {
		if val := ctx.Value(key); val != nil {
			return val
		}
	}
	return nil
}

func (u *unionContext) AddContext(ctx context.Context) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.Err() != nil {
		return false
	}
	u.subContexts = append(u.subContexts, ctx)
	return true
}

func (u *unionContext) Release() {
	u.cancel()
}

// cancelLoop waits on the members one at a time. Members already done are dropped, and
// the union is cancelled once none is left.
func (u *unionContext) cancelLoop() {
	for {
		for {
			next := u.firstWithLock()
			if next == nil {
				break
			}

			select {
			case <-u.Done():
				return
			case <-next.Done():
				u.dropFirstWithLock()
			}
		}

		if u.cancelIfEmpty() {
			return
		}
	}
}

// cancelIfEmpty holds the write lock so that no AddContext can slip in between the
// emptiness check and the cancellation.
func (u *unionContext) cancelIfEmpty() (cancelled bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(u.subContexts) == 0 {
		u.cancel()
		return true
	}
	return false
}

func (u *unionContext) firstWithLock() context.Context {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if len(u.subContexts) == 0 {
		return nil
	}
	return u.subContexts[0]
}

// dropFirstWithLock removes the member cancelLoop was waiting on. Members are only ever
// appended elsewhere, so it is still the first one.
func (u *unionContext) dropFirstWithLock() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.subContexts = removeFirst(u.subContexts)
}

func removeFirst(slc []context.Context) []context.Context {
	copy(slc, slc[1:])
	slc[len(slc)-1] = nil
	return slc[:len(slc)-1]
}
