// Package storage defines the object store client used by the backend.
//
// Keys are flat strings. Implementations must be safe for concurrent use; the
// backend issues store calls from many goroutines without locking.
package storage

import (
	"context"
	stderr "errors"
)

var (
	// ErrObjectNotFound is returned by GetObject and HeadObject for an absent key.
	ErrObjectNotFound = stderr.New("object not found")

	// ErrBucketExists is returned by CreateBucket when the bucket is already present.
	ErrBucketExists = stderr.New("bucket already exists")
)

// Object is an object read back from the store.
type Object struct {
	Key      string
	Body     []byte
	Encoding string
	Metadata map[string]string
}

// Client is a bucket-scoped object store client.
type Client interface {
	// Object operations
	PutObject(ctx context.Context, key string, body []byte, encoding string, metadata map[string]string) error
	GetObject(ctx context.Context, key string) (*Object, error)
	HeadObject(ctx context.Context, key string) (map[string]string, error)
	DeleteObject(ctx context.Context, key string) error

	// ListObjects returns every key of the bucket, following pagination.
	ListObjects(ctx context.Context) ([]string, error)

	// Bucket operations
	CreateBucket(ctx context.Context) error
	DeleteBucket(ctx context.Context) error
	Bucket() string
}
