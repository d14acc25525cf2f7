package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/autoloadwatch/domain/repository"
)

var (
	_ repository.TokenCache = (*MemoryCache)(nil)
	_ repository.PushLock   = (*MemoryCache)(nil)
)

func TestMemoryCache_TokenLifecycle(t *testing.T) {
	c := NewMemoryCache(time.Minute)

	_, ok := c.Get("token")
	assert.False(t, ok)

	c.Set("token", "abc", 50*time.Millisecond)
	v, ok := c.Get("token")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	time.Sleep(80 * time.Millisecond)
	_, ok = c.Get("token")
	assert.False(t, ok, "entry should expire")

	c.Set("token", "def", time.Minute)
	c.Delete("token")
	_, ok = c.Get("token")
	assert.False(t, ok)
}

func TestMemoryCache_NonPositiveTTLIsIgnored(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	c.Set("token", "abc", 0)
	_, ok := c.Get("token")
	assert.False(t, ok)
}

func TestMemoryCache_PushLock(t *testing.T) {
	c := NewMemoryCache(time.Minute)

	owner, ok := c.TryAcquire("push", time.Minute)
	require.True(t, ok)
	assert.NotEmpty(t, owner)
	_, ok = c.TryAcquire("push", time.Minute)
	assert.False(t, ok)
	_, ok = c.TryAcquire("other", time.Minute)
	assert.True(t, ok)

	c.Release("push", owner)
	_, ok = c.TryAcquire("push", time.Minute)
	assert.True(t, ok)
}

func TestMemoryCache_PushLockExpires(t *testing.T) {
	c := NewMemoryCache(time.Minute)

	_, ok := c.TryAcquire("push", 50*time.Millisecond)
	require.True(t, ok)
	time.Sleep(80 * time.Millisecond)
	_, ok = c.TryAcquire("push", time.Minute)
	assert.True(t, ok)
}

func TestMemoryCache_ReleaseKeepsLockOfNewOwner(t *testing.T) {
	c := NewMemoryCache(time.Minute)

	first, ok := c.TryAcquire("push", 50*time.Millisecond)
	require.True(t, ok)
	time.Sleep(80 * time.Millisecond)

	second, ok := c.TryAcquire("push", time.Minute)
	require.True(t, ok)
	assert.NotEqual(t, first, second)

	// the first holder finishes late and must not free the second holder's lock
	c.Release("push", first)
	_, ok = c.TryAcquire("push", time.Minute)
	assert.False(t, ok)

	c.Release("push", "")
	_, ok = c.TryAcquire("push", time.Minute)
	assert.False(t, ok)

	c.Release("push", second)
	_, ok = c.TryAcquire("push", time.Minute)
	assert.True(t, ok)
}

func TestMemoryCache_PushLockRefresh(t *testing.T) {
	c := NewMemoryCache(time.Minute)

	owner, ok := c.TryAcquire("push", 60*time.Millisecond)
	require.True(t, ok)
	assert.False(t, c.Refresh("push", "someone-else", time.Minute))

	for i := 0; i < 3; i++ {
		time.Sleep(30 * time.Millisecond)
		require.True(t, c.Refresh("push", owner, 60*time.Millisecond))
	}
	_, ok = c.TryAcquire("push", time.Minute)
	assert.False(t, ok, "a refreshed lock outlives its first ttl")

	time.Sleep(90 * time.Millisecond)
	assert.False(t, c.Refresh("push", owner, time.Minute), "an expired lock cannot be refreshed")
}

func TestMemoryCache_PushLockDisabled(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	owner, ok := c.TryAcquire("push", 0)
	assert.True(t, ok)
	assert.Empty(t, owner)
	_, ok = c.TryAcquire("push", 0)
	assert.True(t, ok)
}

func TestMemoryCache_PushLockConcurrent(t *testing.T) {
	c := NewMemoryCache(time.Minute)

	var acquired int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.TryAcquire("push", time.Minute); ok {
				atomic.AddInt32(&acquired, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acquired)
}
