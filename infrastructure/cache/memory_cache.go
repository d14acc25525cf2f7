package cache

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const lockPrefix = "lock:"

// MemoryCache is a process-local TTL cache. It backs both the access token
// cache and the push lock.
type MemoryCache struct {
	store *gocache.Cache

	// lockMu makes owner check and delete/extend one step
	lockMu sync.Mutex
}

// NewMemoryCache creates a cache that purges expired entries every cleanupInterval
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get implements repository.TokenCache
func (c *MemoryCache) Get(key string) (string, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set implements repository.TokenCache
func (c *MemoryCache) Set(key string, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.store.Set(key, value, ttl)
}

// Delete implements repository.TokenCache
func (c *MemoryCache) Delete(key string) {
	c.store.Delete(key)
}

// TryAcquire implements repository.PushLock. A ttl of zero or less
// disables locking and always succeeds with an empty owner.
func (c *MemoryCache) TryAcquire(name string, ttl time.Duration) (string, bool) {
	if ttl <= 0 {
		return "", true
	}
	owner := newOwnerToken()

	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	if err := c.store.Add(lockPrefix+name, owner, ttl); err != nil {
		return "", false
	}
	return owner, true
}

// Refresh implements repository.PushLock
func (c *MemoryCache) Refresh(name, owner string, ttl time.Duration) bool {
	if owner == "" || ttl <= 0 {
		return false
	}
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	if !c.heldBy(name, owner) {
		return false
	}
	c.store.Set(lockPrefix+name, owner, ttl)
	return true
}

// Release implements repository.PushLock. A lock that expired and was
// taken by another owner is left alone.
func (c *MemoryCache) Release(name, owner string) {
	if owner == "" {
		return
	}
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	if c.heldBy(name, owner) {
		c.store.Delete(lockPrefix + name)
	}
}

func (c *MemoryCache) heldBy(name, owner string) bool {
	v, ok := c.store.Get(lockPrefix + name)
	if !ok {
		return false
	}
	current, _ := v.(string)
	return current == owner
}

func newOwnerToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
