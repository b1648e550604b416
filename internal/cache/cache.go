// Package cache provides the session-scoped result cache keyed by
// computation fingerprint.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"codecat/internal/types"
)

const (
	// DefaultTTL is how long a committed result stays replayable.
	DefaultTTL = time.Hour
	// DefaultCapacity bounds the number of retained entries.
	DefaultCapacity = 1024
)

// SessionCache maps a computation fingerprint to a completed result. Put is
// first-writer-wins: a second Put under the same fingerprint is a no-op that
// returns the existing entry, so the underlying artifact is computed at most
// once per fingerprint even under concurrent commits. An expired entry
// behaves as absent.
type SessionCache interface {
	Get(fingerprint string) (*types.CacheEntry, bool)
	Put(fingerprint string, entry *types.CacheEntry) *types.CacheEntry
	Invalidate(fingerprint string)
}

// MemoryCache is the in-memory SessionCache backed by a TTL-expiring LRU.
type MemoryCache struct {
	writeMutex sync.Mutex
	entries    *expirable.LRU[string, *types.CacheEntry]
}

// NewMemoryCache constructs a MemoryCache. Non-positive arguments fall back
// to the defaults.
func NewMemoryCache(capacity int, timeToLive time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if timeToLive <= 0 {
		timeToLive = DefaultTTL
	}
	return &MemoryCache{
		entries: expirable.NewLRU[string, *types.CacheEntry](capacity, nil, timeToLive),
	}
}

// Get returns the live entry for a fingerprint. Entries past their own
// expiry are removed and reported absent even if the store TTL has not
// fired yet.
func (memoryCache *MemoryCache) Get(fingerprint string) (*types.CacheEntry, bool) {
	cachedEntry, found := memoryCache.entries.Get(fingerprint)
	if !found {
		return nil, false
	}
	if !cachedEntry.ExpiresAt.IsZero() && time.Now().After(cachedEntry.ExpiresAt) {
		memoryCache.entries.Remove(fingerprint)
		return nil, false
	}
	return cachedEntry, true
}

// Put stores the entry unless one already exists for the fingerprint, in
// which case the existing entry is returned unchanged.
func (memoryCache *MemoryCache) Put(fingerprint string, entry *types.CacheEntry) *types.CacheEntry {
	memoryCache.writeMutex.Lock()
	defer memoryCache.writeMutex.Unlock()

	if existingEntry, found := memoryCache.Get(fingerprint); found {
		return existingEntry
	}
	memoryCache.entries.Add(fingerprint, entry)
	return entry
}

// Invalidate removes the entry for a fingerprint, if present.
func (memoryCache *MemoryCache) Invalidate(fingerprint string) {
	memoryCache.entries.Remove(fingerprint)
}

var _ SessionCache = (*MemoryCache)(nil)
