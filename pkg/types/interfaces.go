package types

import (
	"context"

	"github.com/objectfs/s3backend/internal/config"
	"github.com/objectfs/s3backend/pkg/keyexpr"
	"github.com/objectfs/s3backend/pkg/timestamp"
)

// Storage defines the contract a middleware uses to read and write one logical storage.
// A nil key addresses the storage prefix itself.
type Storage interface {
	// Admin
	AdminStatus() map[string]any

	// Key operations
	Get(ctx context.Context, key *keyexpr.KeyExpr, parameters string) ([]StoredEntry, error)
	Put(ctx context.Context, key *keyexpr.KeyExpr, payload []byte, encoding string, ts timestamp.Timestamp) (InsertionResult, error)
	Delete(ctx context.Context, key *keyexpr.KeyExpr, ts timestamp.Timestamp) (InsertionResult, error)

	// Inventory
	GetAllEntries(ctx context.Context) ([]Entry, error)

	// Lifecycle
	Close(ctx context.Context) error
}

// Volume defines the factory contract producing storages that share one endpoint.
type Volume interface {
	AdminStatus() map[string]any
	CreateStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error)
	Capability() Capability
	Close() error
}
