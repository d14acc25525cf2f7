package logging

import (
	"context"

	"github.com/ca-srg/autoloadwatch/domain"
)

// TeeLogger sends every entry to each of its sinks
type TeeLogger struct {
	sinks []domain.Logger
}

func NewTeeLogger(sinks ...domain.Logger) *TeeLogger {
	return &TeeLogger{sinks: sinks}
}

func (t *TeeLogger) Debug(ctx context.Context, msg string, fields ...domain.Field) {
	for _, s := range t.sinks {
		s.Debug(ctx, msg, fields...)
	}
}

func (t *TeeLogger) Info(ctx context.Context, msg string, fields ...domain.Field) {
	for _, s := range t.sinks {
		s.Info(ctx, msg, fields...)
	}
}

func (t *TeeLogger) Warn(ctx context.Context, msg string, fields ...domain.Field) {
	for _, s := range t.sinks {
		s.Warn(ctx, msg, fields...)
	}
}

func (t *TeeLogger) Error(ctx context.Context, msg string, fields ...domain.Field) {
	for _, s := range t.sinks {
		s.Error(ctx, msg, fields...)
	}
}

func (t *TeeLogger) WithFields(fields ...domain.Field) domain.Logger {
	sinks := make([]domain.Logger, len(t.sinks))
	for i, s := range t.sinks {
		sinks[i] = s.WithFields(fields...)
	}
	return &TeeLogger{sinks: sinks}
}
