package cache

import (
	"github.com/goccy/go-reflect"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ensureValidCacheKey rejects keys that cannot be used as map keys, which would otherwise
// panic inside the lock.
func ensureValidCacheKey(key Key) error {
	if key == nil {
		return errors.Wrapf(ErrInvalidKey, "Cache key must not be nil")
	}
	if t := reflect.TypeOf(key); !t.Comparable() {
		return errors.Wrapf(ErrInvalidKey, "Cache key of type %s is not comparable", t)
	}
	return nil
}

// logger returns a logger with some default fields filled in with default keys.
func logger(category, code string, key Key) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"category": category,
		"key":      key.String(),
		"code":     code,
	})
}
