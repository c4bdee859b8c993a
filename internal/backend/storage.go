package backend

import (
	"context"
	stderr "errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/objectfs/s3backend/internal/config"
	"github.com/objectfs/s3backend/internal/executor"
	"github.com/objectfs/s3backend/internal/health"
	"github.com/objectfs/s3backend/internal/metrics"
	"github.com/objectfs/s3backend/internal/storage"
	"github.com/objectfs/s3backend/pkg/errors"
	"github.com/objectfs/s3backend/pkg/keyexpr"
	"github.com/objectfs/s3backend/pkg/timestamp"
	"github.com/objectfs/s3backend/pkg/types"
)

// Metadata keys carrying the write timestamp of an object.
const (
	MetadataTimestampKey       = "timestamp-uhlc"
	LegacyMetadataTimestampKey = "timestamp_uhlc"
)

// storeComponent is the health component tracking store calls.
const storeComponent = "store"

// Make sure *Storage satisfies types.Storage interface.
var _ types.Storage = (*Storage)(nil)

// Storage maps one key expression space onto one bucket.
type Storage struct {
	config   config.StorageConfig
	prefix   string
	filter   keyexpr.KeyExpr
	client   storage.Client
	exec     executor.Executor
	metrics  *metrics.Collector
	health   *health.Tracker
	logger   *slog.Logger
	maxHeads int

	closeOnce sync.Once
}

func newStorage(cfg config.StorageConfig, client storage.Client, exec executor.Executor, collector *metrics.Collector) (*Storage, error) {
	filter, err := cfg.Filter()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "storage", "create", "invalid key_expr")
	}

	tracker := health.NewTracker(health.DefaultConfig())
	tracker.RegisterComponent(storeComponent)

	logger := slog.Default().With("component", "storage", "bucket", client.Bucket())
	tracker.AddStateChangeCallback(func(component string, oldState, newState health.HealthState, err error) {
		logger.Warn("Storage health changed", "tracked", component, "from", oldState, "to", newState, "error", err)
	})

	return &Storage{
		config:   cfg,
		prefix:   cfg.StripPrefix,
		filter:   filter,
		client:   client,
		exec:     exec,
		metrics:  collector,
		health:   tracker,
		logger:   logger,
		maxHeads: cfg.Volume.MaxConcurrentHeads,
	}, nil
}

// Get returns the value stored under key. A missing object yields an empty
// slice and no error.
func (s *Storage) Get(ctx context.Context, key *keyexpr.KeyExpr, parameters string) ([]types.StoredEntry, error) {
	start := time.Now()

	objectKey, err := ToObjectKey(s.prefix, key)
	if err != nil {
		s.observe("get", start, 0, err)
		return nil, err
	}
	s.logger.Debug("Get", "key", objectKey)

	var obj *storage.Object
	err = s.exec.Do(ctx, func(ctx context.Context) error {
		var err error
		obj, err = s.client.GetObject(ctx, objectKey)
		return err
	})
	if err != nil {
		if stderr.Is(err, storage.ErrObjectNotFound) {
			s.health.RecordSuccess(storeComponent)
			s.observe("get", start, 0, nil)
			return []types.StoredEntry{}, nil
		}
		err = s.storeError(err, "get", objectKey)
		s.observe("get", start, 0, err)
		return nil, err
	}
	s.health.RecordSuccess(storeComponent)

	ts, err := parseTimestamp(obj.Metadata)
	if err != nil {
		err = errors.Wrap(err, errors.ErrCodeMetadataMissing, "storage", "get", "cannot read object timestamp").
			WithContext("key", objectKey).
			WithContext("bucket", s.client.Bucket())
		s.observe("get", start, int64(len(obj.Body)), err)
		return nil, err
	}

	s.observe("get", start, int64(len(obj.Body)), nil)
	return []types.StoredEntry{{
		Payload:   obj.Body,
		Encoding:  obj.Encoding,
		Timestamp: ts,
	}}, nil
}

// Put writes payload under key with ts in the object metadata.
func (s *Storage) Put(ctx context.Context, key *keyexpr.KeyExpr, payload []byte, encoding string, ts timestamp.Timestamp) (types.InsertionResult, error) {
	start := time.Now()

	objectKey, err := ToObjectKey(s.prefix, key)
	if err != nil {
		s.observe("put", start, 0, err)
		return types.Outdated, err
	}
	if err := s.checkWritable("put", objectKey); err != nil {
		s.observe("put", start, 0, err)
		return types.Outdated, err
	}
	s.logger.Debug("Put", "key", objectKey, "size", len(payload), "timestamp", ts)

	metadata := map[string]string{MetadataTimestampKey: ts.String()}
	err = s.exec.Do(ctx, func(ctx context.Context) error {
		return s.client.PutObject(ctx, objectKey, payload, encoding, metadata)
	})
	if err != nil {
		err = s.storeError(err, "put", objectKey)
		s.observe("put", start, int64(len(payload)), err)
		return types.Outdated, err
	}

	s.health.RecordSuccess(storeComponent)
	s.observe("put", start, int64(len(payload)), nil)
	return types.Inserted, nil
}

// Delete removes key. The timestamp is accepted but not stored.
func (s *Storage) Delete(ctx context.Context, key *keyexpr.KeyExpr, ts timestamp.Timestamp) (types.InsertionResult, error) {
	start := time.Now()

	objectKey, err := ToObjectKey(s.prefix, key)
	if err != nil {
		s.observe("delete", start, 0, err)
		return types.Outdated, err
	}
	if err := s.checkWritable("delete", objectKey); err != nil {
		s.observe("delete", start, 0, err)
		return types.Outdated, err
	}
	s.logger.Debug("Delete", "key", objectKey, "timestamp", ts)

	err = s.exec.Do(ctx, func(ctx context.Context) error {
		return s.client.DeleteObject(ctx, objectKey)
	})
	if err != nil {
		err = s.storeError(err, "delete", objectKey)
		s.observe("delete", start, 0, err)
		return types.Outdated, err
	}

	s.health.RecordSuccess(storeComponent)
	s.observe("delete", start, 0, nil)
	return types.Deleted, nil
}

// GetAllEntries returns the key and timestamp of every stored object matching
// the storage filter. Entries that cannot be read are logged and left out.
func (s *Storage) GetAllEntries(ctx context.Context) ([]types.Entry, error) {
	start := time.Now()
	entries, err := s.enumerate(ctx)
	s.observe("get_all_entries", start, 0, err)
	return entries, err
}

// AdminStatus reports the storage configuration and health. Credentials are
// never included.
func (s *Storage) AdminStatus() map[string]any {
	status := s.config.AdminStatus()
	status["health"] = s.health.GetOverallHealth().String()
	status["components"] = s.health.Status()
	status["readable"] = s.health.CanRead(storeComponent)
	status["writable"] = !s.config.Volume.ReadOnly && s.health.CanWrite(storeComponent)
	if reporter, ok := s.client.(interface{ AdminStatus() map[string]any }); ok {
		status["store"] = reporter.AdminStatus()
	}
	return status
}

// Health returns the health of the store behind this storage.
func (s *Storage) Health() health.HealthState {
	return s.health.GetOverallHealth()
}

// Close applies the closure policy once. Teardown is best-effort: failures are
// logged and Close always returns nil.
func (s *Storage) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.teardown(ctx)
	})
	return nil
}

// CloseAsync runs Close on its own goroutine and returns immediately. The
// returned channel is closed once teardown has finished; nothing orders it
// against process exit.
func (s *Storage) CloseAsync() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Close(context.Background())
	}()
	return done
}

func (s *Storage) teardown(ctx context.Context) {
	switch s.config.Volume.OnClosure {
	case config.OnClosureDestroyBucket:
		err := s.exec.Do(ctx, func(ctx context.Context) error {
			return s.client.DeleteBucket(ctx)
		})
		if err != nil {
			s.logger.Error("Failed to destroy bucket on close", "error", err)
			s.metrics.RecordError("close", err)
		} else {
			s.logger.Info("Bucket destroyed on close")
		}
	default:
		s.logger.Debug("Closing storage, keeping bucket as it is")
	}

	if closer, ok := s.client.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn("Failed to release store client", "error", err)
		}
	}
}

func (s *Storage) checkWritable(operation, objectKey string) error {
	if !s.config.Volume.ReadOnly {
		return nil
	}
	s.logger.Warn("Received update for read-only storage, ignored", "operation", operation, "key", objectKey)
	return errors.NewError(errors.ErrCodeReadOnlyViolation, "storage is read-only").
		WithComponent("storage").
		WithOperation(operation).
		WithContext("key", objectKey).
		WithContext("bucket", s.client.Bucket())
}

// storeError wraps a failed store call. Dispatch failures keep their code and
// leave the store health alone, since the store never saw the call.
func (s *Storage) storeError(err error, operation, objectKey string) error {
	var wrapped *errors.Error
	if stderr.As(err, &wrapped) && wrapped.Code == errors.ErrCodeDispatchFailure {
		return wrapped.WithContext("key", objectKey)
	}

	wrapped = errors.Wrap(err, errors.ErrCodeStoreFailure, "storage", operation, "store call failed").
		WithContext("key", objectKey).
		WithContext("bucket", s.client.Bucket())
	s.health.RecordError(storeComponent, wrapped)
	return wrapped
}

func (s *Storage) observe(operation string, start time.Time, size int64, err error) {
	s.metrics.RecordOperation(operation, time.Since(start), size, err == nil)
	if err != nil {
		s.metrics.RecordError(operation, err)
	}
}

// lookupTimestamp returns the raw timestamp of an object, preferring the
// primary metadata key over the legacy one.
func lookupTimestamp(metadata map[string]string) (string, bool) {
	if v, ok := metadata[MetadataTimestampKey]; ok {
		return v, true
	}
	v, ok := metadata[LegacyMetadataTimestampKey]
	return v, ok
}

var (
	errNoMetadata  = stderr.New("object has no metadata")
	errNoTimestamp = stderr.New("object metadata has no timestamp")
)

func parseTimestamp(metadata map[string]string) (timestamp.Timestamp, error) {
	if len(metadata) == 0 {
		return timestamp.Timestamp{}, errNoMetadata
	}
	raw, ok := lookupTimestamp(metadata)
	if !ok {
		return timestamp.Timestamp{}, errNoTimestamp
	}
	return timestamp.Parse(raw)
}
