package cache

import (
	"context"
	"restock-route-service/internal/platform/obs"

	libcache "github.com/eko/gocache/lib/v4/cache"
	libstore "github.com/eko/gocache/lib/v4/store"
	gocachestore "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process, non-expiring cache scoped to one planning
// session. It is dropped with the session and never written anywhere else.
//
// Keys are expected to be consistent (e.g., already normalized) by the caller.
type MemoryCache[T any] struct {
	client *gocache.Cache
	cache  *libcache.Cache[T]
}

func NewMemoryCache[T any]() *MemoryCache[T] {
	client := gocache.New(gocache.NoExpiration, 0)
	store := gocachestore.NewGoCache(client, libstore.WithExpiration(gocache.NoExpiration))

	return &MemoryCache[T]{
		client: client,
		cache:  libcache.New[T](store),
	}
}

// Get returns the cached value and whether it was present.
func (m *MemoryCache[T]) Get(ctx context.Context, key string) (T, bool) {
	v, err := m.cache.Get(ctx, key)
	if err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// Put stores value under key. Failures are logged, not returned: a missed
// write only costs a repeated lookup.
func (m *MemoryCache[T]) Put(ctx context.Context, key string, value T) {
	var err error
	defer obs.Time(ctx, "cache.Put")(&err)

	err = m.cache.Set(ctx, key, value)
}

func (m *MemoryCache[T]) Len() int {
	return m.client.ItemCount()
}

func (m *MemoryCache[T]) Clear(ctx context.Context) error {
	return m.cache.Clear(ctx)
}
