package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ca-srg/autoloadwatch/domain"
)

// ZapLogger writes structured log lines through zap
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger names base after the component
func NewZapLogger(base *zap.Logger, component string) *ZapLogger {
	return &ZapLogger{logger: base.Named(component)}
}

// NewConsoleZap builds the process wide zap logger. Debug mode uses the
// human readable development encoder, otherwise JSON lines go to stderr.
func NewConsoleZap(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	// level filtering happens in LevelFilterLogger
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return cfg.Build()
}

func (z *ZapLogger) Debug(ctx context.Context, msg string, fields ...domain.Field) {
	z.logger.Debug(msg, toZapFields(fields)...)
}

func (z *ZapLogger) Info(ctx context.Context, msg string, fields ...domain.Field) {
	z.logger.Info(msg, toZapFields(fields)...)
}

func (z *ZapLogger) Warn(ctx context.Context, msg string, fields ...domain.Field) {
	z.logger.Warn(msg, toZapFields(fields)...)
}

func (z *ZapLogger) Error(ctx context.Context, msg string, fields ...domain.Field) {
	z.logger.Error(msg, toZapFields(fields)...)
}

func (z *ZapLogger) WithFields(fields ...domain.Field) domain.Logger {
	return &ZapLogger{logger: z.logger.With(toZapFields(fields)...)}
}

func toZapFields(fields []domain.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
