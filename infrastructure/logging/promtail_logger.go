package logging

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ic2hrmk/promtail"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
)

// PromtailLogger ships log lines to Loki through a promtail client.
// Only app, component and level become stream labels. Fields are rendered
// into the line as key=value pairs.
type PromtailLogger struct {
	client    promtail.Client
	component string
	fields    []domain.Field
	mu        sync.RWMutex
}

func NewPromtailLogger(cfg *config.PromtailConfig, component string) (*PromtailLogger, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("promtail URL is not configured")
	}

	defaultLabels := map[string]string{
		"app":       "autoloadwatch",
		"component": component,
	}

	batchSize := cfg.BatchCapacity
	if batchSize < 1 {
		batchSize = 100
	}
	batchWait := time.Duration(cfg.BatchWaitSeconds) * time.Second
	if batchWait <= 0 {
		batchWait = time.Second
	}

	client, err := promtail.NewJSONv1Client(
		cfg.URL,
		defaultLabels,
		promtail.WithSendBatchSize(uint(batchSize)),
		promtail.WithSendBatchTimeout(batchWait),
		promtail.WithBasicAuth(cfg.Username, cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create promtail client: %w", err)
	}

	return newPromtailLoggerWithClient(client, component), nil
}

func newPromtailLoggerWithClient(client promtail.Client, component string) *PromtailLogger {
	return &PromtailLogger{
		client:    client,
		component: component,
		fields:    []domain.Field{},
	}
}

func (p *PromtailLogger) Debug(ctx context.Context, msg string, fields ...domain.Field) {
	p.log(ctx, domain.LogLevelDebug, msg, fields...)
}

func (p *PromtailLogger) Info(ctx context.Context, msg string, fields ...domain.Field) {
	p.log(ctx, domain.LogLevelInfo, msg, fields...)
}

func (p *PromtailLogger) Warn(ctx context.Context, msg string, fields ...domain.Field) {
	p.log(ctx, domain.LogLevelWarn, msg, fields...)
}

func (p *PromtailLogger) Error(ctx context.Context, msg string, fields ...domain.Field) {
	p.log(ctx, domain.LogLevelError, msg, fields...)
}

func (p *PromtailLogger) WithFields(fields ...domain.Field) domain.Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()

	newFields := make([]domain.Field, len(p.fields)+len(fields))
	copy(newFields, p.fields)
	copy(newFields[len(p.fields):], fields)

	return &PromtailLogger{
		client:    p.client,
		component: p.component,
		fields:    newFields,
	}
}

func (p *PromtailLogger) log(ctx context.Context, level domain.LogLevel, msg string, fields ...domain.Field) {
	p.mu.RLock()
	all := make([]domain.Field, 0, len(p.fields)+len(fields))
	all = append(all, p.fields...)
	all = append(all, fields...)
	p.mu.RUnlock()

	// the client adds the level label itself
	p.client.Logf(promtailLevel(level), "%s", formatLine(msg, all))
}

// formatLine renders msg followed by key=value pairs sorted by key
func formatLine(msg string, fields []domain.Field) string {
	if len(fields) == 0 {
		return msg
	}

	merged := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, merged[k])
	}
	return b.String()
}

func promtailLevel(level domain.LogLevel) promtail.Level {
	switch level {
	case domain.LogLevelDebug:
		return promtail.Debug
	case domain.LogLevelInfo:
		return promtail.Info
	case domain.LogLevelWarn:
		return promtail.Warn
	case domain.LogLevelError:
		return promtail.Error
	default:
		return promtail.Info
	}
}

// Shutdown flushes pending batches
func (p *PromtailLogger) Shutdown() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
