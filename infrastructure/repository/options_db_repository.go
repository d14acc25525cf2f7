package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
)

// sizeExpr returns the byte length of option_value for a driver
func sizeExpr(driver string) string {
	if driver == "sqlite3" {
		return "COALESCE(LENGTH(CAST(option_value AS BLOB)), 0)"
	}
	return "COALESCE(OCTET_LENGTH(option_value), 0)"
}

// OptionsDBRepository reads autoload statistics from the site's options table
type OptionsDBRepository struct {
	db      *sql.DB
	driver  string
	table   string
	values  []string
	timeout time.Duration
}

// NewOptionsDBRepository opens the options store described by cfg
func NewOptionsDBRepository(cfg *config.StoreConfig) (*OptionsDBRepository, error) {
	dsn := cfg.DSN
	if cfg.Driver == "mysql" {
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, domain.ErrStoreUnavailable("parse dsn", err)
		}
		if parsed.Timeout == 0 {
			parsed.Timeout = cfg.QueryTimeout()
		}
		if parsed.ReadTimeout == 0 {
			parsed.ReadTimeout = cfg.QueryTimeout()
		}
		dsn = parsed.FormatDSN()
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("open", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewOptionsDBRepositoryWithDB(db, cfg), nil
}

// NewOptionsDBRepositoryWithDB wraps an already opened handle
func NewOptionsDBRepositoryWithDB(db *sql.DB, cfg *config.StoreConfig) *OptionsDBRepository {
	values := cfg.AutoloadValues
	if len(values) == 0 {
		values = config.DefaultAutoloadValues
	}
	return &OptionsDBRepository{
		db:      db,
		driver:  cfg.Driver,
		table:   cfg.OptionsTable(),
		values:  append([]string(nil), values...),
		timeout: cfg.QueryTimeout(),
	}
}

var _ repository.OptionsRepository = (*OptionsDBRepository)(nil)

// autoloadClause returns the WHERE clause and its arguments
func (r *OptionsDBRepository) autoloadClause() (string, []interface{}) {
	placeholders := make([]string, len(r.values))
	args := make([]interface{}, len(r.values))
	for i, v := range r.values {
		placeholders[i] = "?"
		args[i] = v
	}
	return fmt.Sprintf("autoload IN (%s)", strings.Join(placeholders, ", ")), args
}

func (r *OptionsDBRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// CountAutoloaded returns the number of autoloaded options
func (r *OptionsDBRepository) CountAutoloaded(ctx context.Context) (uint64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	where, args := r.autoloadClause()
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", r.table, where)

	var count uint64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, domain.ErrStoreUnavailable("count", err)
	}
	return count, nil
}

// TotalAutoloadedBytes returns the summed byte size of autoloaded values.
// NULL values count as zero.
func (r *OptionsDBRepository) TotalAutoloadedBytes(ctx context.Context) (uint64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	where, args := r.autoloadClause()
	query := fmt.Sprintf("SELECT COALESCE(SUM(%s), 0) FROM %s WHERE %s", sizeExpr(r.driver), r.table, where)

	var total uint64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, domain.ErrStoreUnavailable("total size", err)
	}
	return total, nil
}

// TopAutoloaded returns up to limit options ordered by size descending
func (r *OptionsDBRepository) TopAutoloaded(ctx context.Context, limit int) ([]entity.KeySize, error) {
	if limit <= 0 {
		return []entity.KeySize{}, nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	where, args := r.autoloadClause()
	query := fmt.Sprintf(
		"SELECT option_name, %s AS size FROM %s WHERE %s ORDER BY size DESC, option_name ASC LIMIT ?",
		sizeExpr(r.driver), r.table, where)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("top options", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	keys := make([]entity.KeySize, 0, limit)
	for rows.Next() {
		var (
			name string
			size uint64
		)
		if err := rows.Scan(&name, &size); err != nil {
			return nil, domain.ErrStoreUnavailable("top options", err)
		}
		keys = append(keys, entity.KeySize{Name: name, SizeBytes: size})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrStoreUnavailable("top options", err)
	}
	return keys, nil
}

// Ping checks connectivity
func (r *OptionsDBRepository) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return domain.ErrStoreUnavailable("ping", err)
	}
	return nil
}

// Close releases the connection pool
func (r *OptionsDBRepository) Close() error {
	return r.db.Close()
}
