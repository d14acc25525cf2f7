package usecase

import (
	"context"
	"time"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/entity"
)

// Trigger names who started a pipeline run
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerCLI      Trigger = "cli"
)

// PipelineResult is the outcome of one collect -> push run
type PipelineResult struct {
	Trigger    Trigger                 `json:"trigger"`
	Success    bool                    `json:"success"`
	Error      string                  `json:"error,omitempty"`
	ErrorCode  domain.ErrorCode        `json:"error_code,omitempty"`
	Snapshot   *entity.MetricsSnapshot `json:"snapshot,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
}

// PipelineService runs collection followed by the warehouse push
type PipelineService interface {
	// Run executes the pipeline synchronously. It never panics; every
	// failure is reported in the result.
	Run(ctx context.Context, trigger Trigger) *PipelineResult
}
