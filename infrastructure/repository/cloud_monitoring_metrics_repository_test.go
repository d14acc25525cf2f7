package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/monitoring/apiv3/v2/monitoringpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
)

type fakeTimeSeriesWriter struct {
	requests []*monitoringpb.CreateTimeSeriesRequest
	err      error
	closed   bool
}

func (f *fakeTimeSeriesWriter) CreateTimeSeries(ctx context.Context, req *monitoringpb.CreateTimeSeriesRequest) error {
	f.requests = append(f.requests, req)
	return f.err
}

func (f *fakeTimeSeriesWriter) Close() error {
	f.closed = true
	return nil
}

func TestCloudMonitoringMetricsRepository_SendMetrics(t *testing.T) {
	writer := &fakeTimeSeriesWriter{}
	repo := newCloudMonitoringMetricsRepository(writer, &config.CloudMonitoringConfig{ProjectID: "proj"})

	require.NoError(t, repo.SendMetrics(context.Background(), testPoints()))

	require.Len(t, writer.requests, 1)
	req := writer.requests[0]
	assert.Equal(t, "projects/proj", req.Name)
	require.Len(t, req.TimeSeries, 2)

	ts := req.TimeSeries[0]
	assert.Equal(t, "custom.googleapis.com/autoloadwatch/"+entity.MetricOptionsCount, ts.Metric.Type)
	assert.Equal(t, "example.com", ts.Metric.Labels["site"])
	assert.Equal(t, "global", ts.Resource.Type)
	assert.Equal(t, "proj", ts.Resource.Labels["project_id"])
	require.Len(t, ts.Points, 1)
	assert.Equal(t, float64(3), ts.Points[0].Value.GetDoubleValue())
	assert.Equal(t, time.Date(2025, 1, 2, 17, 0, 0, 0, time.UTC), ts.Points[0].Interval.EndTime.AsTime())
}

func TestCloudMonitoringMetricsRepository_Batching(t *testing.T) {
	writer := &fakeTimeSeriesWriter{}
	repo := newCloudMonitoringMetricsRepository(writer, &config.CloudMonitoringConfig{
		ProjectID:    "proj",
		MetricPrefix: "custom.googleapis.com/wp/",
	})

	var points []*entity.MetricDataPoint
	for i := 0; i < 450; i++ {
		points = append(points, entity.NewMetricDataPoint(entity.MetricOptionSizeBytes, float64(i), time.Now()).
			WithLabel("option", fmt.Sprintf("opt_%d", i)))
	}

	require.NoError(t, repo.SendMetrics(context.Background(), points))
	require.Len(t, writer.requests, 3)
	assert.Len(t, writer.requests[0].TimeSeries, 200)
	assert.Len(t, writer.requests[2].TimeSeries, 50)
	assert.Equal(t, "custom.googleapis.com/wp/"+entity.MetricOptionSizeBytes, writer.requests[0].TimeSeries[0].Metric.Type)
}

func TestCloudMonitoringMetricsRepository_Error(t *testing.T) {
	writer := &fakeTimeSeriesWriter{err: errors.New("permission denied")}
	repo := newCloudMonitoringMetricsRepository(writer, &config.CloudMonitoringConfig{ProjectID: "proj"})

	err := repo.SendMetrics(context.Background(), testPoints())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	require.NoError(t, repo.Close())
	assert.True(t, writer.closed)
	assert.Equal(t, "cloud_monitoring", repo.Name())
}

func TestNewCloudMonitoringMetricsRepository_RequiresProject(t *testing.T) {
	_, err := NewCloudMonitoringMetricsRepository(context.Background(), &config.CloudMonitoringConfig{Enabled: true})
	assert.Error(t, err)
}
