package presenter

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	usecase "github.com/ca-srg/autoloadwatch/usecase/interface"
)

// JSONPresenterImpl implements Presenter for JSON output
type JSONPresenterImpl struct {
	encoder    *json.Encoder
	errEncoder *json.Encoder
}

// NewJSONPresenter creates a new JSON presenter
func NewJSONPresenter() *JSONPresenterImpl {
	return NewJSONPresenterWithWriters(os.Stdout, os.Stderr)
}

// NewJSONPresenterWithWriters creates a JSON presenter writing to w and errors to errW
func NewJSONPresenterWithWriters(w, errW io.Writer) *JSONPresenterImpl {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return &JSONPresenterImpl{
		encoder:    encoder,
		errEncoder: json.NewEncoder(errW),
	}
}

// PrintVersion prints version information as JSON
func (p *JSONPresenterImpl) PrintVersion(version string) {
	_ = p.encoder.Encode(map[string]string{"version": version})
}

// PrintError prints an error as JSON
func (p *JSONPresenterImpl) PrintError(err error) {
	_ = p.errEncoder.Encode(map[string]string{"error": err.Error()})
}

// PrintStatus prints the status report as JSON
func (p *JSONPresenterImpl) PrintStatus(info *usecase.StatusInfo) error {
	return p.encoder.Encode(NewStatusView(info))
}

// PrintPipelineResult prints the outcome of a push as JSON
func (p *JSONPresenterImpl) PrintPipelineResult(result *usecase.PipelineResult) error {
	data := map[string]interface{}{
		"success":     result.Success,
		"trigger":     result.Trigger,
		"started_at":  result.StartedAt.UTC().Format(time.RFC3339),
		"duration_ms": result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}
	if !result.Success {
		data["error"] = result.Error
		data["error_code"] = result.ErrorCode
	}
	if s := result.Snapshot; s != nil {
		data["count"] = s.Count
		data["total_size_bytes"] = s.TotalSizeBytes
		data["total_size"] = entity.FormatSizeKB(s.TotalSizeBytes)
		data["collected_at_utc"] = s.CollectedAtString()
	}
	return p.encoder.Encode(data)
}

// PrintNextRun prints the next scheduled run as JSON
func (p *JSONPresenterImpl) PrintNextRun(next time.Time, tz repository.TimezoneInfo, created bool) error {
	return p.encoder.Encode(map[string]interface{}{
		"next_run":     next.Format(time.RFC3339),
		"next_run_utc": next.UTC().Format(time.RFC3339),
		"timezone":     tz.Name,
		"created":      created,
	})
}

// PrintConfig prints the redacted configuration as JSON
func (p *JSONPresenterImpl) PrintConfig(exported map[string]interface{}, path string) error {
	return p.encoder.Encode(map[string]interface{}{
		"path":   path,
		"config": exported,
	})
}
