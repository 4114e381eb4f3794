package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sociodent/sociodent/backend/internal/domain/providers"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryAdapter is a bounded in-process CacheProvider, used when Redis is
// not configured and in tests.
type MemoryAdapter struct {
	cache *lru.Cache[string, memoryEntry]
	mu    sync.Mutex
	now   func() time.Time
}

var _ providers.CacheProvider = (*MemoryAdapter)(nil)

// NewMemoryAdapter creates a cache holding at most size keys
func NewMemoryAdapter(size int) (*MemoryAdapter, error) {
	c, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryAdapter{cache: c, now: time.Now}, nil
}

// Get retrieves a value from cache
func (a *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	e, ok := a.cache.Get(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	if e.expired(a.now()) {
		a.cache.Remove(key)
		return nil, providers.ErrCacheMiss
	}
	return e.value, nil
}

// Set stores a value; expirationSeconds <= 0 means no expiry
func (a *MemoryAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	a.cache.Add(key, memoryEntry{value: value, expiresAt: a.expiry(expirationSeconds)})
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(ctx context.Context, key string) error {
	a.cache.Remove(key)
	return nil
}

// Exists checks if a live key exists in cache
func (a *MemoryAdapter) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.Get(ctx, key)
	if err == providers.ErrCacheMiss {
		return false, nil
	}
	return err == nil, err
}

// Incr increments a decimal counter, creating it with the given expiry
func (a *MemoryAdapter) Incr(ctx context.Context, key string, expirationSeconds int) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var n int64
	e, ok := a.cache.Get(key)
	if ok && !e.expired(a.now()) {
		if _, err := fmt.Sscan(string(e.value), &n); err != nil {
			return 0, fmt.Errorf("value at %s is not a counter", key)
		}
	} else {
		e = memoryEntry{expiresAt: a.expiry(expirationSeconds)}
	}

	n++
	e.value = []byte(fmt.Sprint(n))
	a.cache.Add(key, e)
	return n, nil
}

func (a *MemoryAdapter) expiry(seconds int) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	return a.now().Add(time.Duration(seconds) * time.Second)
}
