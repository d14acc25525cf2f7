package entity

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewWarehouseRow(t *testing.T) {
	snapshot := NewMetricsSnapshot(5300, 5300, []KeySize{
		{Name: "big", SizeBytes: 5000},
		{Name: "tiny", SizeBytes: 100},
	}, 10, time.Date(2025, 1, 2, 17, 0, 5, 0, time.UTC))

	row := NewWarehouseRow(snapshot, "", "https://example.com")

	if row.Platform != DefaultPlatform {
		t.Errorf("expected platform %s, got %s", DefaultPlatform, row.Platform)
	}
	if row.MetricCount != "5300" {
		t.Errorf("expected metric_count \"5300\", got %q", row.MetricCount)
	}
	if row.MetricTotalSize != "5.18 KB" {
		t.Errorf("expected 5.18 KB, got %s", row.MetricTotalSize)
	}
	if row.TimestampUTC != "2025-01-02 17:00:05" {
		t.Errorf("unexpected timestamp %s", row.TimestampUTC)
	}
	if row.MetricKey != "big: 4.88 KB\ntiny: 0.10 KB" {
		t.Errorf("unexpected metric key %q", row.MetricKey)
	}

	data, err := json.Marshal(row)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"metric_count":"5300"`) {
		t.Errorf("expected metric_count serialized as string, got %s", data)
	}
}

func TestFormatTopKeys_Empty(t *testing.T) {
	if got := FormatTopKeys(nil); got != EmptyMetricKey {
		t.Errorf("expected %s, got %s", EmptyMetricKey, got)
	}
}

func TestWarehouseSchemaMatchesRow(t *testing.T) {
	row := &WarehouseRow{}
	values := row.Values()

	if len(values) != len(WarehouseSchema) {
		t.Fatalf("schema has %d fields, row has %d", len(WarehouseSchema), len(values))
	}
	for _, f := range WarehouseSchema {
		if _, ok := values[f.Name]; !ok {
			t.Errorf("schema field %s missing from row", f.Name)
		}
	}

	var raw map[string]interface{}
	data, _ := json.Marshal(row)
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, f := range WarehouseSchema {
		if _, ok := raw[f.Name]; !ok {
			t.Errorf("JSON tag for %s missing", f.Name)
		}
	}
}

func TestDataPointsFromSnapshot(t *testing.T) {
	snapshot := NewMetricsSnapshot(2, 300, []KeySize{{"a", 200}, {"b", 100}}, 10, time.Now())

	points := DataPointsFromSnapshot(snapshot, "example.com")

	if len(points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(points))
	}
	if points[0].Name != MetricOptionsCount || points[0].Value != 2 {
		t.Errorf("unexpected count point %+v", points[0])
	}
	if points[1].Name != MetricOptionsSizeBytes || points[1].Value != 300 {
		t.Errorf("unexpected size point %+v", points[1])
	}
	if points[2].Labels["option"] != "a" || points[2].Labels["site"] != "example.com" {
		t.Errorf("unexpected labels %+v", points[2].Labels)
	}
}
