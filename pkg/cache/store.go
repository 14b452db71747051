package cache

import (
	"context"
	"errors"
)

var (
	// ErrCacheMiss indicates the identifier has not been resolved yet.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored value could not be used as a URL.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store maps image identifiers to resolved URLs.
// Implementations must be safe for concurrent use.
type Store interface {
	// Lookup returns the URL recorded for id, or ErrCacheMiss.
	Lookup(ctx context.Context, id int64) (string, error)

	// Insert records url for id, overwriting any previous value.
	Insert(ctx context.Context, id int64, url string) error

	// Len returns the number of recorded identifiers.
	Len(ctx context.Context) (int64, error)
}

// Pinger is implemented by stores that depend on an external service.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	_ Store  = (*Memory)(nil)
	_ Store  = (*RedisStore)(nil)
	_ Pinger = (*RedisStore)(nil)
)
