package types

import (
	"github.com/objectfs/s3backend/pkg/keyexpr"
	"github.com/objectfs/s3backend/pkg/timestamp"
)

// StoredEntry is one value read back from the store
type StoredEntry struct {
	Payload   []byte              `json:"payload"`
	Encoding  string              `json:"encoding"`
	Timestamp timestamp.Timestamp `json:"timestamp"`
}

// Entry is one item of a storage inventory. A nil Key stands for the storage prefix itself.
type Entry struct {
	Key       *keyexpr.KeyExpr    `json:"key,omitempty"`
	Timestamp timestamp.Timestamp `json:"timestamp"`
}

// InsertionResult reports the outcome of a put or delete
type InsertionResult int

const (
	// Inserted indicates the value was stored
	Inserted InsertionResult = iota

	// Deleted indicates the value was removed
	Deleted

	// Outdated indicates the write was ignored in favour of a newer value
	Outdated
)

// String returns the string representation of an insertion result
func (r InsertionResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Deleted:
		return "deleted"
	case Outdated:
		return "outdated"
	default:
		return "unknown"
	}
}

// Persistence describes whether stored values survive a restart
type Persistence string

// History describes how many values per key a storage retains
type History string

const (
	PersistenceVolatile Persistence = "volatile"
	PersistenceDurable  Persistence = "durable"

	HistoryLatest History = "latest"
	HistoryAll    History = "all"
)

// Capability advertises the semantics of a volume to the middleware
type Capability struct {
	Persistence Persistence `json:"persistence"`
	History     History     `json:"history"`
	ReadCost    int         `json:"read_cost"`
}
