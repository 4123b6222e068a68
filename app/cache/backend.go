// Package cache implements the read-through response cache of the catalog
// and its invalidation sweep.
package cache

import (
	"context"
	"time"
)

// Backend is the storage behind the cache layer. Implementations must be safe
// for concurrent use.
type Backend interface {
	// Get reports ok=false on a miss. An error means the backend could not
	// be consulted at all.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
	AddToSet(ctx context.Context, set string, members ...string) error
	SetMembers(ctx context.Context, set string) ([]string, error)
}
