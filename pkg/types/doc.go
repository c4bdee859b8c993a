/*
Package types provides the contracts and value types shared between the S3 storage
backend and the middleware that loads it.

# Architecture Overview

	┌─────────────────────────────────────────────┐
	│           pub/sub middleware                │
	│      (Volume and Storage contracts)         │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│              internal/backend               │
	│  key translation, CRUD, inventory listing   │
	└─────────────────────────────────────────────┘
	          │                │              │
	┌─────────┴───┐   ┌────────┴───┐   ┌──────┴────┐
	│  Executor   │   │ StoreClient│   │  Metrics  │
	│ ambient/own │   │  (S3, mem) │   │  Health   │
	└─────────────┘   └────────────┘   └───────────┘

# Core Interfaces

Volume:
Creates storages against a single endpoint and advertises the static Capability
{durable, latest}. A volume owns the executor shared by all of its storages.

Storage:
The CRUD surface over one bucket. Keys are key expressions; a nil key addresses the
configured strip prefix itself. Values carry a logical timestamp which is stored in
object metadata, never in the object body.

# Data Structures

StoredEntry:
Payload, encoding and timestamp of a single value.

Entry:
Key and timestamp pair returned by inventory listing.

InsertionResult:
Outcome of put (Inserted) and delete (Deleted).

# Thread Safety

Implementations of Storage must be safe for concurrent use. No ordering is guaranteed
between concurrent operations on different keys; for a single key the object store
decides the last writer.

# Usage Examples

	vol, err := backend.NewVolume(volumeCfg)
	if err != nil {
		return err
	}
	defer vol.Close()

	st, err := vol.CreateStorage(ctx, storageCfg)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	key := keyexpr.MustParse("demo/example/a")
	if _, err := st.Put(ctx, &key, []byte("hello"), "text/plain", ts); err != nil {
		return err
	}
*/
package types
