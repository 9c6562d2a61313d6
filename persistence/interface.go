// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"time"
)

// Store is the narrow key/value contract the coordinator relies on. The
// server does not care whether the backend is redis, postgres or anything
// else that can honor these five calls.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	ListByPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
	Close() error
}

var ErrNotFound = errors.New("record not found")
