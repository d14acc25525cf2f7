package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"

	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
)

const (
	// maxDatumPerRequest keeps PutMetricData under the API's per-call limit
	maxDatumPerRequest = 20

	// maxDimensions is the CloudWatch limit per datum
	maxDimensions = 30
)

// CloudWatchMetricsRepository publishes gauges with PutMetricData
type CloudWatchMetricsRepository struct {
	client    cloudwatchiface.CloudWatchAPI
	namespace string
}

// NewCloudWatchMetricsRepository creates a CloudWatch sink
func NewCloudWatchMetricsRepository(cfg *config.CloudWatchConfig) (*CloudWatchMetricsRepository, error) {
	if cfg == nil {
		return nil, repository.NewMetricsRepositoryError("initialize", fmt.Errorf("cloudwatch config is nil"))
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Profile:           cfg.AWSProfile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, repository.NewMetricsRepositoryError("initialize", fmt.Errorf("failed to create AWS session: %w", err))
	}

	awsCfg := &aws.Config{}
	if cfg.Region != "" {
		awsCfg.Region = aws.String(cfg.Region)
	}

	return newCloudWatchMetricsRepository(cloudwatch.New(sess, awsCfg), cfg.Namespace), nil
}

func newCloudWatchMetricsRepository(client cloudwatchiface.CloudWatchAPI, namespace string) *CloudWatchMetricsRepository {
	if namespace == "" {
		namespace = "AutoloadWatch"
	}
	return &CloudWatchMetricsRepository{client: client, namespace: namespace}
}

var _ repository.MetricsRepository = (*CloudWatchMetricsRepository)(nil)

// Name implements repository.MetricsRepository
func (r *CloudWatchMetricsRepository) Name() string { return "cloudwatch" }

// SendMetrics implements repository.MetricsRepository
func (r *CloudWatchMetricsRepository) SendMetrics(ctx context.Context, points []*entity.MetricDataPoint) error {
	data := make([]*cloudwatch.MetricDatum, 0, len(points))
	for _, p := range points {
		data = append(data, toMetricDatum(p))
	}

	for start := 0; start < len(data); start += maxDatumPerRequest {
		end := start + maxDatumPerRequest
		if end > len(data) {
			end = len(data)
		}
		_, err := r.client.PutMetricDataWithContext(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(r.namespace),
			MetricData: data[start:end],
		})
		if err != nil {
			return repository.NewMetricsRepositoryError("send", err)
		}
	}
	return nil
}

func toMetricDatum(p *entity.MetricDataPoint) *cloudwatch.MetricDatum {
	names := make([]string, 0, len(p.Labels))
	for k := range p.Labels {
		names = append(names, k)
	}
	sort.Strings(names)
	if len(names) > maxDimensions {
		names = names[:maxDimensions]
	}

	dims := make([]*cloudwatch.Dimension, 0, len(names))
	for _, k := range names {
		dims = append(dims, &cloudwatch.Dimension{Name: aws.String(k), Value: aws.String(p.Labels[k])})
	}

	unit := cloudwatch.StandardUnitBytes
	if p.Name == entity.MetricOptionsCount {
		unit = cloudwatch.StandardUnitCount
	}

	return &cloudwatch.MetricDatum{
		MetricName: aws.String(p.Name),
		Dimensions: dims,
		Timestamp:  aws.Time(p.Timestamp),
		Unit:       aws.String(unit),
		Value:      aws.Float64(p.Value),
	}
}

// Close does nothing; the SDK client holds no resources
func (r *CloudWatchMetricsRepository) Close() error {
	return nil
}
