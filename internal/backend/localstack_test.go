//go:build integration
// +build integration

package backend

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/objectfs/s3backend/internal/config"
	"github.com/objectfs/s3backend/pkg/errors"
	"github.com/objectfs/s3backend/pkg/types"
)

// LocalStackIntegrationSuite runs the backend against LocalStack S3
type LocalStackIntegrationSuite struct {
	suite.Suite
	ctx      context.Context
	endpoint string
	volume   *Volume
}

func TestLocalStackIntegration(t *testing.T) {
	if os.Getenv("AWS_ENDPOINT_URL") == "" {
		t.Skip("Skipping LocalStack integration tests - no endpoint configured")
	}

	suite.Run(t, new(LocalStackIntegrationSuite))
}

func (s *LocalStackIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.endpoint = os.Getenv("AWS_ENDPOINT_URL")

	vol, err := NewVolumeFromProperties(map[string]any{
		"url":              s.endpoint,
		"region":           "us-east-1",
		"force_path_style": true,
	})
	require.NoError(s.T(), err)
	s.volume = vol
}

func (s *LocalStackIntegrationSuite) TearDownSuite() {
	if s.volume != nil {
		s.volume.Close()
	}
}

func (s *LocalStackIntegrationSuite) storageConfig(bucket string) config.StorageConfig {
	cfg := *config.NewDefaultStorageConfig()
	cfg.KeyExpr = "demo/example/**"
	cfg.StripPrefix = "demo/example"
	cfg.Volume.Bucket = bucket
	cfg.Volume.OnClosure = config.OnClosureDestroyBucket
	cfg.Volume.Private = config.Credentials{AccessKey: "test", SecretKey: "test"}
	return cfg
}

func (s *LocalStackIntegrationSuite) newStorage(bucket string) *Storage {
	st, err := s.volume.NewStorage(s.ctx, s.storageConfig(bucket))
	require.NoError(s.T(), err)
	s.T().Cleanup(func() { st.Close(s.ctx) })
	return st
}

func (s *LocalStackIntegrationSuite) bucketName(name string) string {
	return fmt.Sprintf("s3backend-%s-%d", name, time.Now().UnixNano())
}

func (s *LocalStackIntegrationSuite) TestPutGetDelete() {
	t := s.T()
	st := s.newStorage(s.bucketName("crud"))
	ts := testTimestamp(t, uint64(time.Now().UnixNano()))

	result, err := st.Put(s.ctx, keyPtr("demo/example/a/b"), []byte("hello"), "text/plain", ts)
	require.NoError(t, err)
	assert.Equal(t, types.Inserted, result)

	got, err := st.Get(s.ctx, keyPtr("demo/example/a/b"), "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("hello"), got[0].Payload)
	assert.Equal(t, "text/plain", got[0].Encoding)
	assert.Equal(t, ts, got[0].Timestamp)

	result, err = st.Delete(s.ctx, keyPtr("demo/example/a/b"), ts)
	require.NoError(t, err)
	assert.Equal(t, types.Deleted, result)

	got, err = st.Get(s.ctx, keyPtr("demo/example/a/b"), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func (s *LocalStackIntegrationSuite) TestGetAllEntries() {
	t := s.T()
	st := s.newStorage(s.bucketName("list"))
	ts := testTimestamp(t, 42)

	for i := 0; i < 25; i++ {
		_, err := st.Put(s.ctx, keyPtr(fmt.Sprintf("demo/example/sensor/%d", i)), []byte("x"), "", ts)
		require.NoError(t, err)
	}
	_, err := st.Put(s.ctx, keyPtr("demo/example"), []byte("root"), "", ts)
	require.NoError(t, err)

	entries, err := st.GetAllEntries(s.ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 25, "the sentinel object is not listed")
	for _, e := range entries {
		assert.Equal(t, ts, e.Timestamp)
	}
}

func (s *LocalStackIntegrationSuite) TestBucketConflict() {
	t := s.T()
	bucket := s.bucketName("conflict")
	s.newStorage(bucket)

	cfg := s.storageConfig(bucket)
	cfg.Volume.OnClosure = config.OnClosureDoNothing
	_, err := s.volume.NewStorage(s.ctx, cfg)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBucketConflict), "got %v", err)

	cfg.Volume.ReuseBucket = true
	reused, err := s.volume.NewStorage(s.ctx, cfg)
	require.NoError(t, err)
	assert.NoError(t, reused.Close(s.ctx))
}

func (s *LocalStackIntegrationSuite) TestDestroyOnClose() {
	t := s.T()
	bucket := s.bucketName("destroy")
	st := s.newStorage(bucket)

	_, err := st.Put(s.ctx, keyPtr("demo/example/a"), []byte("x"), "", testTimestamp(t, 1))
	require.NoError(t, err)
	require.NoError(t, st.Close(s.ctx))

	// the bucket is gone, so creating it again succeeds without reuse
	cfg := s.storageConfig(bucket)
	again, err := s.volume.NewStorage(s.ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, again.Close(s.ctx))
}
