package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	awsconfig "github.com/scttfrdmn/cargoship/pkg/aws/config"
	cargoships3 "github.com/scttfrdmn/cargoship/pkg/aws/s3"

	"github.com/objectfs/s3backend/internal/storage"
	"github.com/objectfs/s3backend/pkg/utils"
)

// Make sure *Store satisfies storage.Client interface.
var _ storage.Client = (*Store)(nil)

// metadataEncodingKey carries the encoding of objects written by the multipart
// transporter, which has no content-encoding field.
const metadataEncodingKey = "encoding"

// deleteBatchSize is the DeleteObjects request limit.
const deleteBatchSize = 1000

// Store is a bucket-scoped S3 object store client.
type Store struct {
	manager     *ClientManager
	pool        *ConnectionPool
	transporter *cargoships3.Transporter
	bucket      string
	region      string
	endpoint    string
	threshold   int64
	logger      *slog.Logger
	metrics     *MetricsCollector
}

// NewStore creates an S3 store for cfg.Bucket. The bucket is neither created
// nor probed.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}

	logger := slog.Default().With("component", "s3-store", "bucket", cfg.Bucket)

	manager, err := NewClientManager(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = manager.GetClient().Options().Region
	}

	return &Store{
		manager:     manager,
		pool:        manager.GetPool(),
		transporter: manager.GetTransporter(),
		bucket:      cfg.Bucket,
		region:      region,
		endpoint:    cfg.Endpoint,
		threshold:   cfg.MultipartThreshold,
		logger:      logger,
		metrics:     NewMetricsCollector(),
	}, nil
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// PutObject stores body under key, carrying encoding and user metadata.
// Bodies at or above the multipart threshold go through the CargoShip
// transporter, falling back to a plain PutObject when it fails.
func (s *Store) PutObject(ctx context.Context, key string, body []byte, encoding string, metadata map[string]string) (err error) {
	start := time.Now()
	defer func() {
		s.record(start, err)
	}()

	if s.transporter != nil && int64(len(body)) >= s.threshold {
		if s.putMultipart(ctx, key, body, encoding, metadata) {
			return nil
		}
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		Metadata:      metadata,
	}
	if encoding != "" {
		input.ContentEncoding = aws.String(encoding)
	}

	client, err := s.pool.Get()
	if err != nil {
		return err
	}
	defer s.pool.Put(client)

	if _, err = client.PutObject(ctx, input); err != nil {
		return s.translateError(err, "PutObject", key)
	}

	s.metrics.RecordBytesUploaded(int64(len(body)))
	return nil
}

func (s *Store) putMultipart(ctx context.Context, key string, body []byte, encoding string, metadata map[string]string) bool {
	meta := maps.Clone(metadata)
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	if encoding != "" {
		meta[metadataEncodingKey] = encoding
	}

	archive := cargoships3.Archive{
		Key:          key,
		Reader:       bytes.NewReader(body),
		Size:         int64(len(body)),
		StorageClass: awsconfig.StorageClassStandard,
		Metadata:     meta,
	}

	s.metrics.RecordMultipartUploadStart()
	start := time.Now()
	result, err := s.transporter.Upload(ctx, archive)
	if err != nil {
		s.metrics.RecordMultipartUploadFailed()
		s.logger.Warn("CargoShip upload failed, falling back to standard S3", "key", key, "error", err)
		return false
	}

	s.metrics.RecordMultipartUploadComplete(int64(len(body)), time.Since(start))
	s.logger.Debug("CargoShip upload completed",
		"key", key,
		"size", utils.FormatBytes(int64(len(body))),
		"throughput", result.Throughput,
		"duration", result.Duration)
	return true
}

// GetObject retrieves the full object. An absent key yields storage.ErrObjectNotFound.
func (s *Store) GetObject(ctx context.Context, key string) (obj *storage.Object, err error) {
	start := time.Now()
	defer func() {
		s.record(start, err)
	}()

	client, err := s.pool.Get()
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(client)

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.translateError(err, "GetObject", key)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	s.metrics.RecordBytesDownloaded(int64(len(data)))

	metadata := maps.Clone(result.Metadata)
	encoding := aws.ToString(result.ContentEncoding)
	if fallback, ok := metadata[metadataEncodingKey]; ok {
		if encoding == "" {
			encoding = fallback
		}
		delete(metadata, metadataEncodingKey)
	}

	return &storage.Object{
		Key:      key,
		Body:     data,
		Encoding: encoding,
		Metadata: metadata,
	}, nil
}

// HeadObject returns the user metadata of key without fetching the body.
func (s *Store) HeadObject(ctx context.Context, key string) (metadata map[string]string, err error) {
	start := time.Now()
	defer func() {
		s.record(start, err)
	}()

	client, err := s.pool.Get()
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(client)

	result, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.translateError(err, "HeadObject", key)
	}

	return maps.Clone(result.Metadata), nil
}

// DeleteObject removes key. S3 reports success for absent keys.
func (s *Store) DeleteObject(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() {
		s.record(start, err)
	}()

	client, err := s.pool.Get()
	if err != nil {
		return err
	}
	defer s.pool.Put(client)

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return s.translateError(err, "DeleteObject", key)
	}
	return nil
}

// ListObjects returns every key in the bucket, following continuation tokens.
func (s *Store) ListObjects(ctx context.Context) (keys []string, err error) {
	start := time.Now()
	defer func() {
		s.record(start, err)
	}()

	client, err := s.pool.Get()
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(client)

	return s.listKeys(ctx, client)
}

func (s *Store) listKeys(ctx context.Context, client *s3.Client) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.translateError(err, "ListObjects", s.bucket)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	return keys, nil
}

// CreateBucket creates the bucket. An existing bucket yields storage.ErrBucketExists.
func (s *Store) CreateBucket(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		s.record(start, err)
	}()

	client, err := s.pool.Get()
	if err != nil {
		return err
	}
	defer s.pool.Put(client)

	input := &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	}
	// us-east-1 rejects an explicit location constraint
	if s.region != "" && s.region != DefaultRegion {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s.region),
		}
	}

	if _, err = client.CreateBucket(ctx, input); err != nil {
		return s.translateError(err, "CreateBucket", s.bucket)
	}

	s.logger.Info("Bucket created", "region", s.region)
	return nil
}

// DeleteBucket deletes every object in the bucket and then the bucket itself.
func (s *Store) DeleteBucket(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		s.record(start, err)
	}()

	client, err := s.pool.Get()
	if err != nil {
		return err
	}
	defer s.pool.Put(client)

	keys, err := s.listKeys(ctx, client)
	if err != nil {
		return err
	}

	for i := 0; i < len(keys); i += deleteBatchSize {
		end := min(i+deleteBatchSize, len(keys))
		ids := make([]s3types.ObjectIdentifier, 0, end-i)
		for _, key := range keys[i:end] {
			ids = append(ids, s3types.ObjectIdentifier{Key: aws.String(key)})
		}

		out, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return s.translateError(err, "DeleteObjects", s.bucket)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return fmt.Errorf("DeleteObjects failed for %d objects, first %s: %s",
				len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}

	if _, err = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return s.translateError(err, "DeleteBucket", s.bucket)
	}

	s.logger.Info("Bucket deleted", "objects", len(keys))
	return nil
}

// GetMetrics returns current store metrics
func (s *Store) GetMetrics() StoreMetrics {
	return s.metrics.GetMetrics()
}

// AdminStatus reports request counters and pool usage.
func (s *Store) AdminStatus() map[string]any {
	m := s.metrics.GetMetrics()
	status := map[string]any{
		"bucket":           s.bucket,
		"region":           s.region,
		"requests":         m.Requests,
		"errors":           m.Errors,
		"error_rate":       s.metrics.GetErrorRate(),
		"bytes_uploaded":   m.BytesUploaded,
		"bytes_downloaded": m.BytesDownloaded,
		"average_latency":  m.AverageLatency.String(),
		"pool":             s.pool.Stats(),
	}
	if s.endpoint != "" {
		status["endpoint"] = s.endpoint
	}
	if s.transporter != nil {
		status["multipart_uploads"] = m.MultipartUploadsCompleted
		status["multipart_success_rate"] = s.metrics.GetMultipartSuccessRate()
	}
	return status
}

// Close releases pooled clients.
func (s *Store) Close() error {
	return s.manager.Close()
}

// Helper methods

func (s *Store) record(start time.Time, err error) {
	s.metrics.RecordMetrics(time.Since(start), err != nil)
	if err != nil {
		s.metrics.RecordError(err)
	}
}

func (s *Store) translateError(err error, operation, key string) error {
	switch {
	case isErrorType[*s3types.NoSuchKey](err), isErrorType[*s3types.NotFound](err):
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	case isErrorType[*s3types.BucketAlreadyOwnedByYou](err), isErrorType[*s3types.BucketAlreadyExists](err):
		return fmt.Errorf("%w: %s", storage.ErrBucketExists, s.bucket)
	}

	// S3-compatible stores do not always produce the modeled error types
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			return fmt.Errorf("%w: %s", storage.ErrBucketExists, s.bucket)
		}
	}

	return fmt.Errorf("%s failed for %s: %w", operation, key, err)
}

// isErrorType checks if an error is of a specific type
func isErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
