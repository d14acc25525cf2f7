package repository

import (
	"context"

	"github.com/ca-srg/autoloadwatch/domain/entity"
)

// WarehouseTarget identifies the destination table
type WarehouseTarget struct {
	ProjectID string
	DatasetID string
	TableID   string
}

// WarehouseRepository appends rows to a remote warehouse table.
// Every call is an append; repeated calls create repeated rows.
type WarehouseRepository interface {
	// InsertRows uploads rows using the given bearer token.
	// Non-2xx responses and job or row level errors are returned as UploadError.
	InsertRows(ctx context.Context, accessToken string, target WarehouseTarget, rows []*entity.WarehouseRow) error
}
