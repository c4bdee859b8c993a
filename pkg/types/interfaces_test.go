package types

import (
	"context"
	"testing"

	"github.com/objectfs/s3backend/internal/config"
	"github.com/objectfs/s3backend/pkg/keyexpr"
	"github.com/objectfs/s3backend/pkg/timestamp"
)

// TestInterfaces verifies that our interfaces are properly structured
func TestInterfaces(t *testing.T) {
	var (
		_ Storage = (*mockStorage)(nil)
		_ Volume  = (*mockVolume)(nil)
	)
}

func TestInsertionResult_String(t *testing.T) {
	tests := []struct {
		result InsertionResult
		want   string
	}{
		{Inserted, "inserted"},
		{Deleted, "deleted"},
		{Outdated, "outdated"},
		{InsertionResult(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.result.String(); got != tt.want {
			t.Errorf("InsertionResult(%d).String() = %q, want %q", tt.result, got, tt.want)
		}
	}
}

// Mock implementations for testing interface compliance

type mockStorage struct{}

func (m *mockStorage) AdminStatus() map[string]any { return nil }

func (m *mockStorage) Get(ctx context.Context, key *keyexpr.KeyExpr, parameters string) ([]StoredEntry, error) {
	return nil, nil
}

func (m *mockStorage) Put(ctx context.Context, key *keyexpr.KeyExpr, payload []byte, encoding string, ts timestamp.Timestamp) (InsertionResult, error) {
	return Inserted, nil
}

func (m *mockStorage) Delete(ctx context.Context, key *keyexpr.KeyExpr, ts timestamp.Timestamp) (InsertionResult, error) {
	return Deleted, nil
}

func (m *mockStorage) GetAllEntries(ctx context.Context) ([]Entry, error) { return nil, nil }

func (m *mockStorage) Close(ctx context.Context) error { return nil }

type mockVolume struct{}

func (m *mockVolume) AdminStatus() map[string]any { return nil }

func (m *mockVolume) CreateStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	return &mockStorage{}, nil
}

func (m *mockVolume) Capability() Capability {
	return Capability{Persistence: PersistenceDurable, History: HistoryLatest, ReadCost: 1}
}

func (m *mockVolume) Close() error { return nil }
