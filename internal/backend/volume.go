package backend

import (
	"context"
	stderr "errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/objectfs/s3backend/internal/config"
	"github.com/objectfs/s3backend/internal/executor"
	"github.com/objectfs/s3backend/internal/metrics"
	"github.com/objectfs/s3backend/internal/storage"
	"github.com/objectfs/s3backend/internal/storage/s3"
	"github.com/objectfs/s3backend/pkg/errors"
	"github.com/objectfs/s3backend/pkg/types"
)

// Version is reported in the volume admin status.
const Version = "0.3.0"

// ownedShutdownTimeout bounds how long Close waits for queued tasks.
const ownedShutdownTimeout = 30 * time.Second

// Make sure *Volume satisfies types.Volume interface.
var _ types.Volume = (*Volume)(nil)

// ClientFactory builds the store client of one storage.
type ClientFactory func(ctx context.Context, vol *config.VolumeConfig, st *config.StorageConfig) (storage.Client, error)

// NewS3Client is the default ClientFactory.
func NewS3Client(ctx context.Context, vol *config.VolumeConfig, st *config.StorageConfig) (storage.Client, error) {
	cfg, err := s3.NewConfig(vol, st)
	if err != nil {
		return nil, err
	}
	return s3.NewStore(ctx, cfg)
}

// Option configures a Volume.
type Option func(*Volume)

// WithExecutor makes every storage of the volume run its store calls on exec
// instead of the one selected by execution_mode.
func WithExecutor(exec executor.Executor) Option {
	return func(v *Volume) {
		v.exec = exec
	}
}

// WithClientFactory replaces the S3 client factory.
func WithClientFactory(factory ClientFactory) Option {
	return func(v *Volume) {
		v.clientFactory = factory
	}
}

// WithMetrics sets the collector shared by the storages of the volume.
func WithMetrics(collector *metrics.Collector) Option {
	return func(v *Volume) {
		v.metrics = collector
	}
}

// Volume creates storages against a single S3 endpoint.
type Volume struct {
	config        *config.VolumeConfig
	clientFactory ClientFactory
	metrics       *metrics.Collector
	logger        *slog.Logger

	// mu guards exec and owned; exec is either injected or chosen from
	// execution_mode on first use
	mu     sync.Mutex
	exec   executor.Executor
	owned  *executor.Owned
	closed bool
}

// NewVolume validates cfg and returns a volume. No connection is made until a
// storage is created.
func NewVolume(cfg *config.VolumeConfig, opts ...Option) (*Volume, error) {
	if cfg == nil {
		cfg = config.NewDefaultVolumeConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &Volume{
		config:        cfg,
		clientFactory: NewS3Client,
		logger:        slog.Default().With("component", "volume"),
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.metrics == nil {
		collector, err := metrics.NewCollector(nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternalError, "volume", "create", "failed to create metrics collector")
		}
		v.metrics = collector
	}

	v.logger.Debug("Volume created", "version", Version, "endpoint", cfg.Endpoint, "region", cfg.Region,
		"execution_mode", cfg.ExecutionMode)
	return v, nil
}

// NewVolumeFromProperties parses the property map handed over by the
// middleware and returns a volume.
func NewVolumeFromProperties(props map[string]any, opts ...Option) (*Volume, error) {
	cfg, err := config.ParseVolumeProperties(props)
	if err != nil {
		return nil, err
	}
	return NewVolume(cfg, opts...)
}

// executor returns the executor shared by all storages, starting the owned
// pool on first use.
func (v *Volume) executor() (executor.Executor, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, errors.Wrap(executor.ErrClosed, errors.ErrCodeDispatchFailure, "volume", "create_storage", "volume is closed")
	}
	if v.exec != nil {
		return v.exec, nil
	}

	if v.config.ExecutionMode == config.ExecutionOwned {
		v.owned = executor.NewOwned(v.config.OwnedWorkers, v.config.OwnedQueueSize)
		v.exec = v.owned
		v.logger.Info("Started owned executor", "workers", v.config.OwnedWorkers, "queue_size", v.config.OwnedQueueSize)
	} else {
		v.exec = executor.NewAmbient()
	}
	return v.exec, nil
}

// CreateStorage builds a store client for cfg and creates its bucket.
func (v *Volume) CreateStorage(ctx context.Context, cfg config.StorageConfig) (types.Storage, error) {
	return v.NewStorage(ctx, cfg)
}

// NewStorage is CreateStorage returning the concrete type.
func (v *Volume) NewStorage(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exec, err := v.executor()
	if err != nil {
		return nil, err
	}

	client, err := v.clientFactory(ctx, v.config, &cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "volume", "create_storage", "failed to create store client").
			WithContext("bucket", cfg.Volume.Bucket)
	}

	if err := v.createBucket(ctx, exec, client, cfg.Volume.ReuseBucket); err != nil {
		v.metrics.RecordError("create_bucket", err)
		logCreateFailure(v.logger, cfg.Volume.Bucket, err)
		closeClient(client)
		return nil, err
	}

	st, err := newStorage(cfg, client, exec, v.metrics)
	if err != nil {
		closeClient(client)
		return nil, err
	}
	v.logger.Info("Storage created", "bucket", client.Bucket(), "key_expr", cfg.KeyExpr,
		"strip_prefix", cfg.StripPrefix, "read_only", cfg.Volume.ReadOnly)
	return st, nil
}

func (v *Volume) createBucket(ctx context.Context, exec executor.Executor, client storage.Client, reuse bool) error {
	bucket := client.Bucket()
	err := exec.Do(ctx, func(ctx context.Context) error {
		return client.CreateBucket(ctx)
	})

	switch {
	case err == nil:
		return nil
	case stderr.Is(err, storage.ErrBucketExists) && reuse:
		v.logger.Info("Reusing existing bucket", "bucket", bucket)
		return nil
	case stderr.Is(err, storage.ErrBucketExists):
		return errors.NewError(errors.ErrCodeBucketConflict, "bucket already exists and reuse_bucket is disabled").
			WithComponent("volume").
			WithOperation("create_bucket").
			WithContext("bucket", bucket)
	case errors.IsCode(err, errors.ErrCodeDispatchFailure):
		return err
	default:
		return errors.Wrap(err, errors.ErrCodeStoreFailure, "volume", "create_bucket", "failed to create bucket").
			WithContext("bucket", bucket)
	}
}

func logCreateFailure(logger *slog.Logger, bucket string, err error) {
	var e *errors.Error
	if stderr.As(err, &e) {
		logger.Error("Failed to create storage", "bucket", bucket, "code", e.Code, "error", err, "recommendation", e.GetRecommendation())
		return
	}
	logger.Error("Failed to create storage", "bucket", bucket, "error", err)
}

func closeClient(client storage.Client) {
	if closer, ok := client.(io.Closer); ok {
		_ = closer.Close()
	}
}

// Capability reports durable storage keeping the latest value per key.
func (v *Volume) Capability() types.Capability {
	return types.Capability{
		Persistence: types.PersistenceDurable,
		History:     types.HistoryLatest,
		ReadCost:    1,
	}
}

// AdminStatus reports the version and the configured endpoint.
func (v *Volume) AdminStatus() map[string]any {
	status := map[string]any{
		"version":        Version,
		"execution_mode": v.config.ExecutionMode,
	}
	if v.config.Endpoint != "" {
		status["url"] = v.config.Endpoint
	}
	if v.config.Region != "" {
		status["region"] = v.config.Region
	}
	v.mu.Lock()
	if v.owned != nil {
		status["executor"] = v.owned.Stats()
	}
	v.mu.Unlock()
	if m := v.metrics.GetMetrics(); len(m) > 0 {
		status["metrics"] = m
	}
	return status
}

// Metrics returns the collector shared by the storages of the volume.
func (v *Volume) Metrics() *metrics.Collector {
	return v.metrics
}

// MetricsHandler serves the Prometheus exposition of the volume metrics.
func (v *Volume) MetricsHandler() http.Handler {
	return v.metrics.Handler()
}

// Close stops the owned executor, if one was started. Storages should be
// closed first: their teardown is dispatched on that executor.
func (v *Volume) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	owned := v.owned
	v.mu.Unlock()

	if owned == nil {
		return nil
	}
	if err := owned.Close(ownedShutdownTimeout); err != nil {
		v.logger.Warn("Owned executor did not stop cleanly", "error", err)
		return err
	}
	v.logger.Info("Stopped owned executor")
	return nil
}
