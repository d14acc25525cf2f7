package repository

import (
	"context"
	"fmt"
	"strings"

	monitoring "cloud.google.com/go/monitoring/apiv3/v2"
	"cloud.google.com/go/monitoring/apiv3/v2/monitoringpb"
	metricpb "google.golang.org/genproto/googleapis/api/metric"
	monitoredrespb "google.golang.org/genproto/googleapis/api/monitoredres"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
)

// maxSeriesPerRequest is the CreateTimeSeries batch limit
const maxSeriesPerRequest = 200

// timeSeriesWriter is the subset of the Cloud Monitoring client in use
type timeSeriesWriter interface {
	CreateTimeSeries(ctx context.Context, req *monitoringpb.CreateTimeSeriesRequest) error
	Close() error
}

type metricClientWriter struct {
	client *monitoring.MetricClient
}

func (w *metricClientWriter) CreateTimeSeries(ctx context.Context, req *monitoringpb.CreateTimeSeriesRequest) error {
	return w.client.CreateTimeSeries(ctx, req)
}

func (w *metricClientWriter) Close() error {
	return w.client.Close()
}

// CloudMonitoringMetricsRepository writes gauges as Cloud Monitoring custom metrics
type CloudMonitoringMetricsRepository struct {
	writer    timeSeriesWriter
	projectID string
	prefix    string
}

// NewCloudMonitoringMetricsRepository creates a Cloud Monitoring sink
func NewCloudMonitoringMetricsRepository(ctx context.Context, cfg *config.CloudMonitoringConfig) (*CloudMonitoringMetricsRepository, error) {
	if cfg == nil || cfg.ProjectID == "" {
		return nil, repository.NewMetricsRepositoryError("initialize", fmt.Errorf("cloud monitoring project ID is empty"))
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := monitoring.NewMetricClient(ctx, opts...)
	if err != nil {
		return nil, repository.NewMetricsRepositoryError("initialize", fmt.Errorf("failed to create monitoring client: %w", err))
	}

	return newCloudMonitoringMetricsRepository(&metricClientWriter{client: client}, cfg), nil
}

func newCloudMonitoringMetricsRepository(writer timeSeriesWriter, cfg *config.CloudMonitoringConfig) *CloudMonitoringMetricsRepository {
	prefix := strings.TrimSuffix(cfg.MetricPrefix, "/")
	if prefix == "" {
		prefix = "custom.googleapis.com/autoloadwatch"
	}
	return &CloudMonitoringMetricsRepository{
		writer:    writer,
		projectID: cfg.ProjectID,
		prefix:    prefix,
	}
}

var _ repository.MetricsRepository = (*CloudMonitoringMetricsRepository)(nil)

// Name implements repository.MetricsRepository
func (r *CloudMonitoringMetricsRepository) Name() string { return "cloud_monitoring" }

// SendMetrics implements repository.MetricsRepository
func (r *CloudMonitoringMetricsRepository) SendMetrics(ctx context.Context, points []*entity.MetricDataPoint) error {
	series := make([]*monitoringpb.TimeSeries, 0, len(points))
	for _, p := range points {
		series = append(series, r.toTimeSeries(p))
	}

	for start := 0; start < len(series); start += maxSeriesPerRequest {
		end := start + maxSeriesPerRequest
		if end > len(series) {
			end = len(series)
		}
		req := &monitoringpb.CreateTimeSeriesRequest{
			Name:       "projects/" + r.projectID,
			TimeSeries: series[start:end],
		}
		if err := r.writer.CreateTimeSeries(ctx, req); err != nil {
			return repository.NewMetricsRepositoryError("send", err)
		}
	}
	return nil
}

func (r *CloudMonitoringMetricsRepository) toTimeSeries(p *entity.MetricDataPoint) *monitoringpb.TimeSeries {
	labels := make(map[string]string, len(p.Labels))
	for k, v := range p.Labels {
		labels[k] = v
	}

	return &monitoringpb.TimeSeries{
		Metric: &metricpb.Metric{
			Type:   r.prefix + "/" + p.Name,
			Labels: labels,
		},
		Resource: &monitoredrespb.MonitoredResource{
			Type:   "global",
			Labels: map[string]string{"project_id": r.projectID},
		},
		MetricKind: metricpb.MetricDescriptor_GAUGE,
		ValueType:  metricpb.MetricDescriptor_DOUBLE,
		Points: []*monitoringpb.Point{{
			Interval: &monitoringpb.TimeInterval{EndTime: timestamppb.New(p.Timestamp)},
			Value: &monitoringpb.TypedValue{
				Value: &monitoringpb.TypedValue_DoubleValue{DoubleValue: p.Value},
			},
		}},
	}
}

// Close releases the client
func (r *CloudMonitoringMetricsRepository) Close() error {
	return r.writer.Close()
}
