package cache

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidKey is the cause of errors for keys that cannot address an entry.
	ErrInvalidKey = errors.New("Invalid cache key")

	// ErrFetchExited is cached when a fetch function calls runtime.Goexit.
	ErrFetchExited = errors.New("Fetch function exited without returning")
)

// TypeMismatchError reports that the value cached under Key cannot be stored in the result
// the caller passed. It means the same key is used with two different types, which is a
// bug in the caller and never the outcome of a fetch.
type TypeMismatchError struct {
	Key string
	Err error
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("Cached value for %s does not match the requested type: %v", e.Key, e.Err)
}

func (e *TypeMismatchError) Unwrap() error {
	return e.Err
}

// IsTypeMismatch tells whether err, or its cause, is a *TypeMismatchError.
func IsTypeMismatch(err error) bool {
	_, ok := errors.Cause(err).(*TypeMismatchError)
	return ok
}
