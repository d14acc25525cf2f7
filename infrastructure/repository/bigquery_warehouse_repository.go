package repository

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ca-srg/autoloadwatch/domain"
	"github.com/ca-srg/autoloadwatch/domain/entity"
	"github.com/ca-srg/autoloadwatch/domain/repository"
	"github.com/ca-srg/autoloadwatch/infrastructure/config"
)

const (
	jobStateDone = "DONE"

	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 30
)

// BigQueryWarehouseRepository appends rows to a BigQuery table, either
// through a load job or through tabledata.insertAll.
type BigQueryWarehouseRepository struct {
	endpoint     string
	mode         string
	timeout      time.Duration
	transport    http.RoundTripper
	pollInterval time.Duration
	maxPolls     int
	logger       domain.Logger
}

// BigQueryOption configures the repository
type BigQueryOption func(*BigQueryWarehouseRepository)

// WithTransport sets the base transport for API calls
func WithTransport(rt http.RoundTripper) BigQueryOption {
	return func(r *BigQueryWarehouseRepository) {
		r.transport = rt
	}
}

// WithJobPolling sets how often and how many times a load job is polled
func WithJobPolling(interval time.Duration, maxPolls int) BigQueryOption {
	return func(r *BigQueryWarehouseRepository) {
		r.pollInterval = interval
		r.maxPolls = maxPolls
	}
}

// NewBigQueryWarehouseRepository creates a warehouse repository
func NewBigQueryWarehouseRepository(cfg *config.WarehouseConfig, logger domain.Logger, opts ...BigQueryOption) *BigQueryWarehouseRepository {
	mode := cfg.UploadMode
	if mode == "" {
		mode = config.UploadModeLoad
	}
	r := &BigQueryWarehouseRepository{
		endpoint:     cfg.Endpoint,
		mode:         mode,
		timeout:      cfg.Timeout(),
		transport:    http.DefaultTransport,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ repository.WarehouseRepository = (*BigQueryWarehouseRepository)(nil)

// Mode returns the upload mode in use
func (r *BigQueryWarehouseRepository) Mode() string {
	return r.mode
}

// InsertRows appends rows to the target table
func (r *BigQueryWarehouseRepository) InsertRows(ctx context.Context, accessToken string, target repository.WarehouseTarget, rows []*entity.WarehouseRow) error {
	if len(rows) == 0 {
		return nil
	}

	svc, err := r.newService(ctx, accessToken)
	if err != nil {
		return domain.ErrUploadWithCause("create client", err)
	}

	if r.mode == config.UploadModeStream {
		return r.streamRows(ctx, svc, target, rows)
	}
	return r.loadRows(ctx, svc, target, rows)
}

func (r *BigQueryWarehouseRepository) newService(ctx context.Context, accessToken string) (*bigquery.Service, error) {
	hc := &http.Client{
		Timeout: r.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   r.transport,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if r.endpoint != "" {
		opts = append(opts, option.WithEndpoint(r.endpoint))
	}
	return bigquery.NewService(ctx, opts...)
}

// loadRows submits the rows as newline-delimited JSON in a load job and
// waits for the job to finish.
func (r *BigQueryWarehouseRepository) loadRows(ctx context.Context, svc *bigquery.Service, target repository.WarehouseTarget, rows []*entity.WarehouseRow) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return domain.ErrUploadWithCause("encode rows", err)
		}
	}

	job := &bigquery.Job{
		JobReference: &bigquery.JobReference{
			ProjectId: target.ProjectID,
			JobId:     newJobID(),
		},
		Configuration: &bigquery.JobConfiguration{
			Load: &bigquery.JobConfigurationLoad{
				DestinationTable: &bigquery.TableReference{
					ProjectId: target.ProjectID,
					DatasetId: target.DatasetID,
					TableId:   target.TableID,
				},
				Schema:            tableSchema(),
				SourceFormat:      "NEWLINE_DELIMITED_JSON",
				WriteDisposition:  "WRITE_APPEND",
				CreateDisposition: "CREATE_IF_NEEDED",
				Autodetect:        false,
				ForceSendFields:   []string{"Autodetect"},
			},
		},
	}

	res, err := svc.Jobs.Insert(target.ProjectID, job).
		Media(&body, googleapi.ContentType("application/octet-stream")).
		Context(ctx).
		Do()
	if err != nil {
		return uploadError("load job insert", err)
	}

	r.logger.Debug(ctx, "Load job submitted",
		domain.NewField("job_id", jobID(res)),
		domain.NewField("rows", len(rows)))

	for polls := 0; !jobDone(res); polls++ {
		if polls >= r.maxPolls {
			return domain.ErrUploadWithCause("load job", fmt.Errorf("job %s did not finish after %d polls", jobID(res), polls))
		}
		select {
		case <-ctx.Done():
			return domain.ErrUploadWithCause("load job", ctx.Err())
		case <-time.After(r.pollInterval):
		}

		call := svc.Jobs.Get(target.ProjectID, jobID(res)).Context(ctx)
		if res.JobReference != nil && res.JobReference.Location != "" {
			call = call.Location(res.JobReference.Location)
		}
		res, err = call.Do()
		if err != nil {
			return uploadError("load job status", err)
		}
	}

	if res.Status.ErrorResult != nil {
		return domain.ErrUploadWithCause("load job", errors.New(jobErrorMessage(res.Status))).
			WithDetails("job_id", jobID(res))
	}

	r.logger.Info(ctx, "Load job completed",
		domain.NewField("job_id", jobID(res)),
		domain.NewField("table", target.TableID))
	return nil
}

// streamRows appends rows with tabledata.insertAll
func (r *BigQueryWarehouseRepository) streamRows(ctx context.Context, svc *bigquery.Service, target repository.WarehouseTarget, rows []*entity.WarehouseRow) error {
	req := &bigquery.TableDataInsertAllRequest{
		Rows: make([]*bigquery.TableDataInsertAllRequestRows, 0, len(rows)),
	}
	for _, row := range rows {
		values := make(map[string]bigquery.JsonValue, len(entity.WarehouseSchema))
		for k, v := range row.Values() {
			values[k] = v
		}
		req.Rows = append(req.Rows, &bigquery.TableDataInsertAllRequestRows{
			InsertId: insertID(row),
			Json:     values,
		})
	}

	res, err := svc.Tabledata.InsertAll(target.ProjectID, target.DatasetID, target.TableID, req).
		Context(ctx).
		Do()
	if err != nil {
		return uploadError("insertAll", err)
	}

	if len(res.InsertErrors) > 0 {
		var msgs []string
		for _, ie := range res.InsertErrors {
			for _, e := range ie.Errors {
				msgs = append(msgs, fmt.Sprintf("row %d: %s: %s", ie.Index, e.Reason, e.Message))
			}
		}
		return domain.ErrUploadWithCause("insertAll", errors.New(strings.Join(msgs, "; "))).
			WithDetails("failed_rows", len(res.InsertErrors))
	}

	r.logger.Info(ctx, "Rows streamed",
		domain.NewField("rows", len(rows)),
		domain.NewField("table", target.TableID))
	return nil
}

func tableSchema() *bigquery.TableSchema {
	fields := make([]*bigquery.TableFieldSchema, 0, len(entity.WarehouseSchema))
	for _, f := range entity.WarehouseSchema {
		fields = append(fields, &bigquery.TableFieldSchema{Name: f.Name, Type: f.Type, Mode: f.Mode})
	}
	return &bigquery.TableSchema{Fields: fields}
}

// uploadError maps API failures to upload errors carrying status and body
func uploadError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Body
		if body == "" {
			body = apiErr.Message
		}
		return domain.ErrUpload(apiErr.Code, body).WithDetails("operation", op)
	}
	return domain.ErrUploadWithCause(op, err)
}

func jobDone(job *bigquery.Job) bool {
	return job != nil && job.Status != nil && job.Status.State == jobStateDone
}

func jobID(job *bigquery.Job) string {
	if job == nil || job.JobReference == nil {
		return ""
	}
	return job.JobReference.JobId
}

func jobErrorMessage(status *bigquery.JobStatus) string {
	msgs := []string{fmt.Sprintf("%s: %s", status.ErrorResult.Reason, status.ErrorResult.Message)}
	for _, e := range status.Errors {
		if e.Message != status.ErrorResult.Message {
			msgs = append(msgs, e.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

func newJobID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("autoloadwatch_%d", time.Now().UnixNano())
	}
	return "autoloadwatch_" + hex.EncodeToString(buf)
}

// insertID derives a dedupe key from the row's site and timestamp
func insertID(row *entity.WarehouseRow) string {
	sum := sha256.Sum256([]byte(row.SiteURL + "|" + row.TimestampUTC + "|" + row.Platform))
	return hex.EncodeToString(sum[:16])
}
