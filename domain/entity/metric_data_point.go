package entity

import (
	"time"
)

// Secondary sink metric names
const (
	MetricOptionsCount     = "autoload_options_count"
	MetricOptionsSizeBytes = "autoload_options_size_bytes"
	MetricOptionSizeBytes  = "autoload_option_size_bytes"
)

// MetricDataPoint is a single gauge sample sent to secondary metric sinks
type MetricDataPoint struct {
	Name      string
	Value     float64
	Labels    map[string]string
	Timestamp time.Time
}

// NewMetricDataPoint creates a new metric data point
func NewMetricDataPoint(name string, value float64, timestamp time.Time) *MetricDataPoint {
	return &MetricDataPoint{
		Name:      name,
		Value:     value,
		Labels:    make(map[string]string),
		Timestamp: timestamp,
	}
}

// WithLabel sets a label
func (m *MetricDataPoint) WithLabel(key, value string) *MetricDataPoint {
	if m.Labels == nil {
		m.Labels = make(map[string]string)
	}
	m.Labels[key] = value
	return m
}

// DataPointsFromSnapshot expands a snapshot into gauge samples: the count,
// the total size and one size sample per top key.
func DataPointsFromSnapshot(snapshot *MetricsSnapshot, site string) []*MetricDataPoint {
	ts := snapshot.CollectedAtUTC
	points := []*MetricDataPoint{
		NewMetricDataPoint(MetricOptionsCount, float64(snapshot.Count), ts).WithLabel("site", site),
		NewMetricDataPoint(MetricOptionsSizeBytes, float64(snapshot.TotalSizeBytes), ts).WithLabel("site", site),
	}
	for _, k := range snapshot.TopKeys {
		points = append(points, NewMetricDataPoint(MetricOptionSizeBytes, float64(k.SizeBytes), ts).
			WithLabel("site", site).
			WithLabel("option", k.Name))
	}
	return points
}
