// Package cache provides the resolver cache: the mapping from an image
// identifier to the absolute URL it was resolved to.
//
// Two backends implement Store:
//
// - Memory, the default, a mutex-guarded map owned by the process
// - RedisStore, an opt-in backend keeping the mapping in one Redis hash
// so that several replicas share resolutions
//
// Both backends follow the same contract:
//
// - Lookup returns ErrCacheMiss when the identifier was never resolved
// - Insert records or overwrites; the last insert to complete wins
// - no eviction, no TTL, no negative caching
// - a reader never observes a partially written value
//
// # Basic Usage
//
//	store := cache.NewMemory()
//
//	url, err := store.Lookup(ctx, 5)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// resolve upstream, then:
//		_ = store.Insert(ctx, 5, "https://img.example/a.jpg")
//	}
//
// # Redis Backend
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := cache.NewRedisStore(redisClient, cache.DefaultNamespace)
//
//	// Drop whatever a previous process left behind.
//	if err := store.Reset(ctx); err != nil {
//		return err
//	}
//
// The Redis backend performs network I/O on every call; callers bound it
// with the request context.
//
// # Metrics
//
//   - image_redirect_cache_hits_total{backend}
//   - image_redirect_cache_misses_total{backend}
//   - image_redirect_cache_inserts_total{backend}
//   - image_redirect_cache_entries{backend}
//   - image_redirect_cache_errors_total{backend, operation}
package cache
