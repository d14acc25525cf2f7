package usecase

import (
	"context"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/entity"
)

// WarehouseClient delivers snapshots to the warehouse.
// Push never returns an error or panics; callers check the boolean and,
// on failure, read LastError.
type WarehouseClient interface {
	// Push appends one row for snapshot and reports whether the warehouse accepted it
	Push(ctx context.Context, snapshot *entity.MetricsSnapshot) bool

	// LastError is the message of the most recent failed push, empty after a success
	LastError() string

	// LastErrorCode is the taxonomy code of the most recent failed push
	LastErrorCode() domain.ErrorCode

	// GetAccessToken returns a bearer token, served from the cache while fresh
	GetAccessToken(ctx context.Context) (string, error)
}
