package logging

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
)

type LoggerFactoryImpl struct {
	config  *config.LoggingConfig
	console *zap.Logger

	mu        sync.Mutex
	promtails []*PromtailLogger
}

// NewLoggerFactory creates a factory writing to stderr through zap and,
// when a URL is configured, to Loki through promtail.
func NewLoggerFactory(cfg *config.LoggingConfig) *LoggerFactoryImpl {
	debug := cfg != nil && cfg.Debug
	console, err := NewConsoleZap(debug)
	if err != nil {
		console = zap.NewNop()
	}
	return NewLoggerFactoryWithZap(cfg, console)
}

// NewLoggerFactoryWithZap uses console as the local sink
func NewLoggerFactoryWithZap(cfg *config.LoggingConfig, console *zap.Logger) *LoggerFactoryImpl {
	if cfg == nil {
		cfg = &config.LoggingConfig{Level: "info"}
	}
	return &LoggerFactoryImpl{
		config:  cfg,
		console: console,
	}
}

var _ domain.LoggerFactory = (*LoggerFactoryImpl)(nil)

func (f *LoggerFactoryImpl) CreateLogger(component string) domain.Logger {
	var logger domain.Logger = NewZapLogger(f.console, component)

	if f.config.Promtail != nil && f.config.Promtail.URL != "" {
		promtailLogger, err := NewPromtailLogger(f.config.Promtail, component)
		if err != nil {
			f.console.Warn("promtail unavailable, logging to console only",
				zap.String("component", component), zap.Error(err))
		} else {
			f.mu.Lock()
			f.promtails = append(f.promtails, promtailLogger)
			f.mu.Unlock()
			logger = NewTeeLogger(logger, promtailLogger)
		}
	}

	// Apply log level filtering
	return NewLevelFilterLogger(logger, ParseLogLevel(f.config.Level))
}

// Console returns the process wide zap logger, for libraries that take zap directly
func (f *LoggerFactoryImpl) Console() *zap.Logger {
	return f.console
}

// Shutdown flushes every promtail client and the console logger
func (f *LoggerFactoryImpl) Shutdown() {
	f.mu.Lock()
	promtails := f.promtails
	f.promtails = nil
	f.mu.Unlock()

	for _, p := range promtails {
		_ = p.Shutdown()
	}
	_ = f.console.Sync()
}

// ParseLogLevel maps a configured level name, defaulting to info
func ParseLogLevel(level string) domain.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return domain.LogLevelDebug
	case "info":
		return domain.LogLevelInfo
	case "warn":
		return domain.LogLevelWarn
	case "error":
		return domain.LogLevelError
	default:
		return domain.LogLevelInfo
	}
}

// LevelFilterLogger filters log messages based on minimum level
type LevelFilterLogger struct {
	wrapped  domain.Logger
	minLevel domain.LogLevel
}

func NewLevelFilterLogger(wrapped domain.Logger, minLevel domain.LogLevel) *LevelFilterLogger {
	return &LevelFilterLogger{
		wrapped:  wrapped,
		minLevel: minLevel,
	}
}

func (l *LevelFilterLogger) Debug(ctx context.Context, msg string, fields ...domain.Field) {
	if domain.LogLevelDebug >= l.minLevel {
		l.wrapped.Debug(ctx, msg, fields...)
	}
}

func (l *LevelFilterLogger) Info(ctx context.Context, msg string, fields ...domain.Field) {
	if domain.LogLevelInfo >= l.minLevel {
		l.wrapped.Info(ctx, msg, fields...)
	}
}

func (l *LevelFilterLogger) Warn(ctx context.Context, msg string, fields ...domain.Field) {
	if domain.LogLevelWarn >= l.minLevel {
		l.wrapped.Warn(ctx, msg, fields...)
	}
}

func (l *LevelFilterLogger) Error(ctx context.Context, msg string, fields ...domain.Field) {
	if domain.LogLevelError >= l.minLevel {
		l.wrapped.Error(ctx, msg, fields...)
	}
}

func (l *LevelFilterLogger) WithFields(fields ...domain.Field) domain.Logger {
	return &LevelFilterLogger{
		wrapped:  l.wrapped.WithFields(fields...),
		minLevel: l.minLevel,
	}
}

// NoOpLogger is a logger that does nothing
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(ctx context.Context, msg string, fields ...domain.Field) {}
func (n *NoOpLogger) Info(ctx context.Context, msg string, fields ...domain.Field)  {}
func (n *NoOpLogger) Warn(ctx context.Context, msg string, fields ...domain.Field)  {}
func (n *NoOpLogger) Error(ctx context.Context, msg string, fields ...domain.Field) {}
func (n *NoOpLogger) WithFields(fields ...domain.Field) domain.Logger {
	return n
}
