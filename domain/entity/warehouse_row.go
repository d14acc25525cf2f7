package entity

import (
	"strconv"
	"strings"
)

const (
	// DefaultPlatform identifies the source system in warehouse rows
	DefaultPlatform = "wordpress"

	// EmptyMetricKey is written when a snapshot lists no keys
	EmptyMetricKey = "autoloaded_options"

	// WarehouseSchemaVersion versions WarehouseSchema. Bump it with any field change.
	WarehouseSchemaVersion = "v1"
)

// SchemaField describes one warehouse column
type SchemaField struct {
	Name string
	Type string
	Mode string
}

// WarehouseSchema is the explicit column set sent with every upload
var WarehouseSchema = []SchemaField{
	{Name: "platform", Type: "STRING", Mode: "NULLABLE"},
	{Name: "metric_key", Type: "STRING", Mode: "NULLABLE"},
	{Name: "timestamp_utc", Type: "TIMESTAMP", Mode: "NULLABLE"},
	{Name: "metric_count", Type: "STRING", Mode: "NULLABLE"},
	{Name: "metric_total_size", Type: "STRING", Mode: "NULLABLE"},
	{Name: "site_url", Type: "STRING", Mode: "NULLABLE"},
}

// WarehouseRow is one uploaded row. Numeric values are strings because the
// schema declares them STRING.
type WarehouseRow struct {
	Platform        string `json:"platform"`
	MetricKey       string `json:"metric_key"`
	TimestampUTC    string `json:"timestamp_utc"`
	MetricCount     string `json:"metric_count"`
	MetricTotalSize string `json:"metric_total_size"`
	SiteURL         string `json:"site_url"`
}

// NewWarehouseRow maps a snapshot onto the warehouse schema
func NewWarehouseRow(snapshot *MetricsSnapshot, platform, siteURL string) *WarehouseRow {
	if platform == "" {
		platform = DefaultPlatform
	}
	return &WarehouseRow{
		Platform:        platform,
		MetricKey:       FormatTopKeys(snapshot.TopKeys),
		TimestampUTC:    snapshot.CollectedAtString(),
		MetricCount:     strconv.FormatUint(snapshot.Count, 10),
		MetricTotalSize: FormatSizeKB(snapshot.TotalSizeBytes),
		SiteURL:         siteURL,
	}
}

// FormatTopKeys renders keys one per line as "name: X.XX KB", in the given order
func FormatTopKeys(keys []KeySize) string {
	if len(keys) == 0 {
		return EmptyMetricKey
	}
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k.Name+": "+FormatSizeKB(k.SizeBytes))
	}
	return strings.Join(lines, "\n")
}

// Values returns the row as a column -> value map
func (r *WarehouseRow) Values() map[string]string {
	return map[string]string{
		"platform":          r.Platform,
		"metric_key":        r.MetricKey,
		"timestamp_utc":     r.TimestampUTC,
		"metric_count":      r.MetricCount,
		"metric_total_size": r.MetricTotalSize,
		"site_url":          r.SiteURL,
	}
}
