// Package kv defines the small key-value contract the rate limiter relies on
// and the in-memory and MongoDB backends that satisfy it.
package kv

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("kv: key not found")

// Store is a TTL-aware key-value store. Get returns ErrNotFound for missing
// and expired keys alike.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
