// Package memory provides an in-memory implementation of storage.Client.
//
// A Server holds any number of buckets; clients created from the same Server see
// the same data, which mimics several storages pointed at one endpoint.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/objectfs/s3backend/internal/storage"
)

// Make sure *Client satisfies storage.Client interface.
var _ storage.Client = (*Client)(nil)

// Operation names used by FailFunc and Calls.
const (
	OpPut          = "put"
	OpGet          = "get"
	OpHead         = "head"
	OpDelete       = "delete"
	OpList         = "list"
	OpCreateBucket = "create_bucket"
	OpDeleteBucket = "delete_bucket"
)

// FailFunc decides whether an operation on key should fail. Returning nil lets
// the operation proceed.
type FailFunc func(op, bucket, key string) error

// OperationDelay defines the delay before an operation.
// It's useful to mimic network latency in tests.
type OperationDelay struct {
	Before time.Duration
}

type object struct {
	body     []byte
	encoding string
	metadata map[string]string
}

// Server is an in-memory object store.
type Server struct {
	mu      sync.RWMutex
	buckets map[string]map[string]object

	callsMu sync.Mutex
	calls   map[string]int

	// Fail, when set, is consulted before every operation.
	Fail FailFunc

	Delay OperationDelay
}

// NewServer creates an empty in-memory store.
func NewServer() *Server {
	return &Server{
		buckets: make(map[string]map[string]object),
		calls:   make(map[string]int),
	}
}

// Client returns a client bound to bucket. The bucket is not created.
func (s *Server) Client(bucket string) *Client {
	return &Client{server: s, bucket: bucket}
}

// Calls returns how many times op was invoked, failed calls included.
func (s *Server) Calls(op string) int {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	return s.calls[op]
}

// TotalMutations returns the number of put, delete and bucket calls observed.
func (s *Server) TotalMutations() int {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	return s.calls[OpPut] + s.calls[OpDelete] + s.calls[OpCreateBucket] + s.calls[OpDeleteBucket]
}

// HasBucket reports whether bucket exists.
func (s *Server) HasBucket(bucket string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buckets[bucket]
	return ok
}

// Seed writes an object directly, bypassing failure injection and call counting.
// The bucket is created if needed.
func (s *Server) Seed(bucket, key string, body []byte, encoding string, metadata map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucket]
	if !ok {
		b = make(map[string]object)
		s.buckets[bucket] = b
	}
	b[key] = object{body: slices.Clone(body), encoding: encoding, metadata: maps.Clone(metadata)}
}

func (s *Server) enter(ctx context.Context, op, bucket, key string) error {
	s.callsMu.Lock()
	s.calls[op]++
	s.callsMu.Unlock()

	if s.Delay.Before > 0 {
		select {
		case <-time.After(s.Delay.Before):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Fail != nil {
		return s.Fail(op, bucket, key)
	}
	return nil
}

// Client is a bucket-scoped view of a Server.
type Client struct {
	server *Server
	bucket string
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

func (c *Client) noBucket() error {
	return fmt.Errorf("bucket %q does not exist", c.bucket)
}

// PutObject stores a copy of body.
func (c *Client) PutObject(ctx context.Context, key string, body []byte, encoding string, metadata map[string]string) error {
	if err := c.server.enter(ctx, OpPut, c.bucket, key); err != nil {
		return err
	}

	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	b, ok := c.server.buckets[c.bucket]
	if !ok {
		return c.noBucket()
	}
	b[key] = object{body: slices.Clone(body), encoding: encoding, metadata: maps.Clone(metadata)}
	return nil
}

// GetObject returns a copy of the object.
func (c *Client) GetObject(ctx context.Context, key string) (*storage.Object, error) {
	if err := c.server.enter(ctx, OpGet, c.bucket, key); err != nil {
		return nil, err
	}

	c.server.mu.RLock()
	defer c.server.mu.RUnlock()
	b, ok := c.server.buckets[c.bucket]
	if !ok {
		return nil, c.noBucket()
	}
	o, ok := b[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &storage.Object{
		Key:      key,
		Body:     slices.Clone(o.body),
		Encoding: o.encoding,
		Metadata: maps.Clone(o.metadata),
	}, nil
}

// HeadObject returns a copy of the object metadata.
func (c *Client) HeadObject(ctx context.Context, key string) (map[string]string, error) {
	if err := c.server.enter(ctx, OpHead, c.bucket, key); err != nil {
		return nil, err
	}

	c.server.mu.RLock()
	defer c.server.mu.RUnlock()
	b, ok := c.server.buckets[c.bucket]
	if !ok {
		return nil, c.noBucket()
	}
	o, ok := b[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return maps.Clone(o.metadata), nil
}

// DeleteObject removes key. Deleting an absent key succeeds, as it does on S3.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	if err := c.server.enter(ctx, OpDelete, c.bucket, key); err != nil {
		return err
	}

	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	b, ok := c.server.buckets[c.bucket]
	if !ok {
		return c.noBucket()
	}
	delete(b, key)
	return nil
}

// ListObjects returns all keys in lexical order.
func (c *Client) ListObjects(ctx context.Context) ([]string, error) {
	if err := c.server.enter(ctx, OpList, c.bucket, ""); err != nil {
		return nil, err
	}

	c.server.mu.RLock()
	defer c.server.mu.RUnlock()
	b, ok := c.server.buckets[c.bucket]
	if !ok {
		return nil, c.noBucket()
	}
	return slices.Sorted(maps.Keys(b)), nil
}

// CreateBucket creates the bucket or returns storage.ErrBucketExists.
func (c *Client) CreateBucket(ctx context.Context) error {
	if err := c.server.enter(ctx, OpCreateBucket, c.bucket, ""); err != nil {
		return err
	}

	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if _, ok := c.server.buckets[c.bucket]; ok {
		return storage.ErrBucketExists
	}
	c.server.buckets[c.bucket] = make(map[string]object)
	return nil
}

// DeleteBucket removes the bucket and everything in it.
func (c *Client) DeleteBucket(ctx context.Context) error {
	if err := c.server.enter(ctx, OpDeleteBucket, c.bucket, ""); err != nil {
		return err
	}

	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if _, ok := c.server.buckets[c.bucket]; !ok {
		return c.noBucket()
	}
	delete(c.server.buckets, c.bucket)
	return nil
}
