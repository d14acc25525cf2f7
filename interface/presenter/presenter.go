package presenter

import (
	"time"

	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// Presenter renders command results. Console and JSON output share it so the
// CLI controller does not care which one is selected.
type Presenter interface {
	// Version and basic output
	PrintVersion(version string)
	PrintError(err error)

	// Status and pipeline output
	PrintStatus(info *usecase.StatusInfo) error
	PrintPipelineResult(result *usecase.PipelineResult) error
	PrintNextRun(next time.Time, tz repository.TimezoneInfo, created bool) error

	// Configuration output
	PrintConfig(exported map[string]interface{}, path string) error
}

// StatusView is the wire shape of a status report, used by the JSON
// presenter and the admin API
type StatusView struct {
	Count          *uint64      `json:"count"`
	TotalSizeBytes *uint64      `json:"total_size_bytes"`
	TotalSize      string       `json:"total_size,omitempty"`
	TopKeys        []KeyView    `json:"top_keys"`
	CollectedAt    string       `json:"collected_at_utc,omitempty"`
	CollectError   string       `json:"collect_error,omitempty"`
	LastSync       string       `json:"last_sync"`
	LastSyncAt     *time.Time   `json:"last_sync_at,omitempty"`
	LastError      string       `json:"last_error,omitempty"`
	LastErrorAt    *time.Time   `json:"last_error_at,omitempty"`
	NextRun        string       `json:"next_run,omitempty"`
	NextRunAt      *time.Time   `json:"next_run_at,omitempty"`
	JobName        string       `json:"job_name,omitempty"`
	Timezone       TimezoneView `json:"timezone"`
	MissingConfig  []string     `json:"missing_config,omitempty"`
	Ready          bool         `json:"ready"`
	Schema         string       `json:"schema_version"`
}

// KeyView is one top key with its rendered size
type KeyView struct {
	Name      string `json:"name"`
	SizeBytes uint64 `json:"size_bytes"`
	Size      string `json:"size"`
}

// TimezoneView is the site timezone as reported by the status endpoints
type TimezoneView struct {
	Name   string `json:"name"`
	Offset string `json:"offset"`
	Source string `json:"source"`
}

// NewStatusView converts a status report into its wire shape
func NewStatusView(info *usecase.StatusInfo) *StatusView {
	v := &StatusView{
		TotalSize:     info.TotalSize,
		TopKeys:       []KeyView{},
		CollectError:  info.CollectError,
		LastSync:      info.LastSync,
		LastSyncAt:    info.LastSyncAt,
		LastError:     info.LastError,
		LastErrorAt:   info.LastErrorAt,
		NextRun:       info.NextRun,
		NextRunAt:     info.NextRunAt,
		JobName:       info.JobName,
		MissingConfig: info.MissingConfig,
		Ready:         len(info.MissingConfig) == 0,
		Schema:        entity.WarehouseSchemaVersion,
		Timezone: TimezoneView{
			Name:   info.Timezone.Name,
			Offset: info.Timezone.Offset,
			Source: info.Timezone.DetectionMethod,
		},
	}

	if s := info.Snapshot; s != nil {
		count, total := s.Count, s.TotalSizeBytes
		v.Count = &count
		v.TotalSizeBytes = &total
		v.CollectedAt = s.CollectedAtString()
		for _, k := range s.TopKeys {
			v.TopKeys = append(v.TopKeys, KeyView{Name: k.Name, SizeBytes: k.SizeBytes, Size: entity.FormatSizeKB(k.SizeBytes)})
		}
	}
	return v
}
