package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/infrastructure/auth"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
	"github.com/ca-srg/autoloadwatch/interface/presenter"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

const (
	// PushAction is the nonce action guarding manual pushes
	PushAction = "push"

	// NonceHeader carries the nonce for POST /push
	NonceHeader = "X-Autoloadwatch-Nonce"
)

// AdminController serves the local admin HTTP surface: health, status and
// the manual push that is protected by a bearer token and an action nonce.
type AdminController struct {
	cfg      *config.AdminConfig
	pipeline usecase.PipelineService
	status   usecase.StatusService
	nonces   *auth.NonceSigner
	logger   domain.Logger
	engine   *gin.Engine

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewAdminController builds the controller and its router. accessLog may be nil.
func NewAdminController(
	cfg *config.AdminConfig,
	pipeline usecase.PipelineService,
	status usecase.StatusService,
	nonces *auth.NonceSigner,
	logger domain.Logger,
	accessLog *zap.Logger,
) *AdminController {
	a := &AdminController{
		cfg:      cfg,
		pipeline: pipeline,
		status:   status,
		nonces:   nonces,
		logger:   logger,
	}
	if accessLog == nil {
		accessLog = zap.NewNop()
	}
	a.engine = a.newRouter(accessLog)
	return a
}

func (a *AdminController) newRouter(accessLog *zap.Logger) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(ZapAccessLog(accessLog))

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	r.GET("/healthz", a.Healthz)
	r.GET("/status", a.Status)

	protected := r.Group("/", RequireBearerToken(a.cfg.Token))
	protected.GET("/nonce", a.Nonce)
	protected.POST("/push", a.Push)

	return r
}

// Handler returns the HTTP handler
func (a *AdminController) Handler() http.Handler {
	return a.engine
}

// Healthz reports liveness
func (a *AdminController) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status returns the live snapshot combined with the persisted sync state
func (a *AdminController) Status(c *gin.Context) {
	info, err := a.status.GetStatus(c.Request.Context())
	if err != nil {
		a.logger.Error(c.Request.Context(), "Failed to build status", domain.NewField("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, presenter.NewStatusView(info))
}

// Nonce issues a nonce for the push action
func (a *AdminController) Nonce(c *gin.Context) {
	nonce, err := a.nonces.Issue(PushAction)
	if err != nil {
		a.logger.Error(c.Request.Context(), "Failed to issue nonce", domain.NewField("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"action":     PushAction,
		"nonce":      nonce,
		"expires_in": int(a.nonces.TTL().Seconds()),
	})
}

// Push runs collect -> push synchronously. The nonce comes from the
// X-Autoloadwatch-Nonce header or the "nonce" form field.
func (a *AdminController) Push(c *gin.Context) {
	ctx := c.Request.Context()

	nonce := c.GetHeader(NonceHeader)
	if nonce == "" {
		nonce = c.PostForm("nonce")
	}
	if err := a.nonces.Verify(PushAction, nonce); err != nil {
		a.logger.Warn(ctx, "Rejected push with invalid nonce", domain.NewField("reason", err.Error()))
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "invalid or expired nonce"})
		return
	}

	result := a.pipeline.Run(ctx, usecase.TriggerManual)
	if result.Success {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	status := http.StatusOK
	if result.ErrorCode == domain.ErrCodePushInProgress {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{
		"success":    false,
		"error":      result.Error,
		"error_code": result.ErrorCode,
	})
}

// Start binds the listen address and serves in the background
func (a *AdminController) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return fmt.Errorf("admin server is already running")
	}

	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.ListenAddr, err)
	}

	server := &http.Server{
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.server = server
	a.listener = ln

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(ctx, "Admin server stopped", domain.NewField("error", err.Error()))
		}
	}()

	a.logger.Info(ctx, "Admin server listening", domain.NewField("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" when not started
func (a *AdminController) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Shutdown gracefully stops the server
func (a *AdminController) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	server := a.server
	a.server = nil
	a.listener = nil
	a.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
