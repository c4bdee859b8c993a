package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/s3backend/internal/storage"
)

func TestClient_ObjectLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := NewServer().Client("b1")
	require.NoError(t, c.CreateBucket(ctx))
	assert.ErrorIs(t, c.CreateBucket(ctx), storage.ErrBucketExists)

	meta := map[string]string{"timestamp-uhlc": "1/1"}
	require.NoError(t, c.PutObject(ctx, "a/1", []byte("v1"), "text/plain", meta))
	meta["timestamp-uhlc"] = "mutated"

	obj, err := c.GetObject(ctx, "a/1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), obj.Body)
	assert.Equal(t, "text/plain", obj.Encoding)
	assert.Equal(t, "1/1", obj.Metadata["timestamp-uhlc"], "stored metadata is a copy")

	head, err := c.HeadObject(ctx, "a/1")
	require.NoError(t, err)
	assert.Equal(t, "1/1", head["timestamp-uhlc"])

	keys, err := c.ListObjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1"}, keys)

	require.NoError(t, c.DeleteObject(ctx, "a/1"))
	require.NoError(t, c.DeleteObject(ctx, "a/1"), "deleting an absent key succeeds")

	_, err = c.GetObject(ctx, "a/1")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	_, err = c.HeadObject(ctx, "a/1")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestClient_DeleteBucket(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewServer()
	s.Seed("b1", "x", []byte("1"), "", nil)
	c := s.Client("b1")

	require.NoError(t, c.DeleteBucket(ctx))
	assert.False(t, s.HasBucket("b1"))
	assert.Error(t, c.DeleteBucket(ctx))

	_, err := c.ListObjects(ctx)
	assert.Error(t, err)
}

func TestServer_FailureInjectionAndCalls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := NewServer()
	s.Seed("b1", "good", nil, "", map[string]string{"k": "v"})
	s.Seed("b1", "bad", nil, "", map[string]string{"k": "v"})
	s.Fail = func(op, bucket, key string) error {
		if op == OpHead && key == "bad" {
			return fmt.Errorf("injected failure")
		}
		return nil
	}
	c := s.Client("b1")

	_, err := c.HeadObject(ctx, "good")
	assert.NoError(t, err)
	_, err = c.HeadObject(ctx, "bad")
	assert.EqualError(t, err, "injected failure")

	assert.Equal(t, 2, s.Calls(OpHead))
	assert.Equal(t, 0, s.TotalMutations(), "seeding is not counted")
}

func TestServer_DelayHonoursContext(t *testing.T) {
	t.Parallel()

	s := NewServer()
	s.Delay.Before = time.Second
	c := s.Client("b1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.CreateBucket(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, s.HasBucket("b1"))
}
