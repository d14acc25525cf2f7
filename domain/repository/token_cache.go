package repository

import (
	"time"
)

// TokenCache stores short-lived values keyed by name
type TokenCache interface {
	// Get returns the cached value if it has not expired
	Get(key string) (string, bool)

	// Set stores a value that expires after ttl
	Set(key string, value string, ttl time.Duration)

	// Delete removes a value
	Delete(key string)
}

// PushLock is a process-wide mutual exclusion with a TTL
type PushLock interface {
	// TryAcquire takes the lock unless it is already held and returns an
	// owner token. The lock is released automatically after ttl unless it
	// is refreshed.
	TryAcquire(name string, ttl time.Duration) (owner string, ok bool)

	// Refresh extends the lock by ttl if owner still holds it
	Refresh(name, owner string, ttl time.Duration) bool

	// Release frees the lock if owner still holds it
	Release(name, owner string)
}
