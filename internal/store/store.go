// Package store defines the key-value contract shared by the cache backends.
package store

import (
	"context"
	"time"
)

// TTL is a key-value store whose entries expire on their own.
// A missing or expired key reports ok == false with a nil error.
type TTL interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Delete(ctx context.Context, keys ...string) error
}
