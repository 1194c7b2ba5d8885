// Package kv is the persistent key-value primitive behind the local interaction store and the
// signed-in user record. It offers get/set/remove/enumerate-by-prefix with no cross-key atomicity.
package kv

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrQuotaExceeded is returned by a store whose capacity would be exceeded by a write.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Store is a string key-value store. A missing key is reported by ok == false, never by an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Keys returns every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

func filterPrefix(keys []string, prefix string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
