package repository

import (
	"context"

	"github.com/ca-srg/autoloadwatch/domain/entity"
)

// OptionsRepository reads autoload statistics from an options table.
// Implementations must not modify the store.
type OptionsRepository interface {
	// CountAutoloaded returns the number of autoload-enabled rows
	CountAutoloaded(ctx context.Context) (uint64, error)

	// TotalAutoloadedBytes returns the summed byte length of autoloaded values, 0 when none match
	TotalAutoloadedBytes(ctx context.Context) (uint64, error)

	// TopAutoloaded returns up to limit autoloaded rows ordered by byte length descending
	TopAutoloaded(ctx context.Context, limit int) ([]entity.KeySize, error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool
	Close() error
}
