package impl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	"github.com/ca-srg/autoloadwatch/infrastructure/auth"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// PushLockName names the process-wide push lock
const PushLockName = "warehouse_push"

// WarehouseClientImpl implements the WarehouseClient interface
type WarehouseClientImpl struct {
	credentials repository.CredentialsProvider
	tokens      repository.AccessTokenProvider
	warehouse   repository.WarehouseRepository
	lock        repository.PushLock
	state       repository.StateRepository
	site        *config.SiteConfig
	lockTTL     time.Duration
	logger      domain.Logger
	now         func() time.Time

	mu        sync.RWMutex
	lastError *domain.DomainError
}

// WarehouseClientDeps groups the collaborators of WarehouseClientImpl
type WarehouseClientDeps struct {
	Credentials repository.CredentialsProvider
	Tokens      repository.AccessTokenProvider
	Warehouse   repository.WarehouseRepository
	Lock        repository.PushLock
	State       repository.StateRepository
	Site        *config.SiteConfig
	LockTTL     time.Duration
	Logger      domain.Logger
}

// NewWarehouseClient creates a warehouse client. Lock may be nil, which
// disables the push lock.
func NewWarehouseClient(deps WarehouseClientDeps) *WarehouseClientImpl {
	site := deps.Site
	if site == nil {
		site = &config.SiteConfig{}
	}
	return &WarehouseClientImpl{
		credentials: deps.Credentials,
		tokens:      deps.Tokens,
		warehouse:   deps.Warehouse,
		lock:        deps.Lock,
		state:       deps.State,
		site:        site,
		lockTTL:     deps.LockTTL,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

var _ usecase.WarehouseClient = (*WarehouseClientImpl)(nil)

// Push appends one row for snapshot
func (c *WarehouseClientImpl) Push(ctx context.Context, snapshot *entity.MetricsSnapshot) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(ctx, "Recovered from panic during push", domain.NewField("panic", fmt.Sprint(r)))
			c.recordFailure(ctx, fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()

	if err := c.push(ctx, snapshot); err != nil {
		c.recordFailure(ctx, err)
		return false
	}
	c.recordSuccess(ctx)
	return true
}

func (c *WarehouseClientImpl) push(ctx context.Context, snapshot *entity.MetricsSnapshot) error {
	if snapshot == nil {
		return domain.ErrInvalidInput("snapshot", "nil snapshot")
	}

	creds, err := c.resolveCredentials()
	if err != nil {
		return err
	}

	if c.lock != nil && c.lockTTL > 0 {
		owner, ok := c.lock.TryAcquire(PushLockName, c.lockTTL)
		if !ok {
			return domain.ErrPushInProgress()
		}
		defer c.holdLock(ctx, owner)()
	}

	token, err := c.tokens.AccessToken(ctx, creds)
	if err != nil {
		return err
	}

	row := entity.NewWarehouseRow(snapshot, c.site.Platform, c.site.URL)
	target := repository.WarehouseTarget{
		ProjectID: creds.ProjectID,
		DatasetID: creds.DatasetID,
		TableID:   creds.TableID,
	}

	if err := c.warehouse.InsertRows(ctx, token, target, []*entity.WarehouseRow{row}); err != nil {
		if isUnauthorized(err) {
			// the next run exchanges a fresh token
			c.tokens.Invalidate()
		}
		return err
	}

	c.logger.Info(ctx, "Pushed snapshot to warehouse",
		domain.NewField("table", fmt.Sprintf("%s.%s.%s", target.ProjectID, target.DatasetID, target.TableID)),
		domain.NewField("count", row.MetricCount),
		domain.NewField("total_size", row.MetricTotalSize))
	return nil
}

// holdLock keeps the push lock alive by refreshing it every half TTL, so a
// slow upload never outlives its lock. The returned func stops refreshing
// and releases the lock.
func (c *WarehouseClientImpl) holdLock(ctx context.Context, owner string) func() {
	interval := c.lockTTL / 2
	if interval < time.Millisecond {
		interval = time.Millisecond
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !c.lock.Refresh(PushLockName, owner, c.lockTTL) {
					c.logger.Warn(ctx, "Push lock was lost before the push finished")
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
		c.lock.Release(PushLockName, owner)
	}
}

func (c *WarehouseClientImpl) resolveCredentials() (*entity.ServiceCredentials, error) {
	creds, err := c.credentials.Credentials()
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfigMissing, "failed to read warehouse credentials", err)
	}
	if missing := creds.MissingFields(); len(missing) > 0 {
		return nil, domain.ErrConfigMissing(missing...)
	}
	if err := auth.ValidatePrivateKey(creds.PrivateKey); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfigMissing, "warehouse private key is unusable", err).
			WithDetails("fields", []string{"private_key"})
	}
	return creds, nil
}

// GetAccessToken returns a bearer token for the configured service account
func (c *WarehouseClientImpl) GetAccessToken(ctx context.Context) (string, error) {
	creds, err := c.resolveCredentials()
	if err != nil {
		return "", err
	}
	return c.tokens.AccessToken(ctx, creds)
}

// LastError returns the message of the most recent failure
func (c *WarehouseClientImpl) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastError == nil {
		return ""
	}
	return c.lastError.Error()
}

// LastErrorCode returns the code of the most recent failure
func (c *WarehouseClientImpl) LastErrorCode() domain.ErrorCode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastError == nil {
		return ""
	}
	return c.lastError.Code
}

func (c *WarehouseClientImpl) recordFailure(ctx context.Context, err error) {
	classified := domain.ClassifyPipelineError(err, domain.ErrCodeUpload)

	c.mu.Lock()
	c.lastError = classified
	c.mu.Unlock()

	c.logger.Error(ctx, "Warehouse push failed",
		domain.NewField("code", string(classified.Code)),
		domain.NewField("error", classified.Error()))

	if c.state == nil {
		return
	}
	now := c.now().UTC()
	if err := c.state.Update(func(s *repository.PipelineState) {
		s.LastError = classified.Error()
		s.LastErrorAt = &now
	}); err != nil {
		c.logger.Warn(ctx, "Failed to persist push error", domain.NewField("error", err.Error()))
	}
}

func (c *WarehouseClientImpl) recordSuccess(ctx context.Context) {
	c.mu.Lock()
	c.lastError = nil
	c.mu.Unlock()

	if c.state == nil {
		return
	}
	now := c.now().UTC()
	if err := c.state.Update(func(s *repository.PipelineState) {
		s.LastSyncAt = &now
		s.LastError = ""
		s.LastErrorAt = nil
	}); err != nil {
		c.logger.Warn(ctx, "Failed to persist last sync time", domain.NewField("error", err.Error()))
	}
}

func isUnauthorized(err error) bool {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	status, _ := domainErr.Details["statusCode"].(int)
	return status == http.StatusUnauthorized
}
