/*
Package s3 implements storage.Client over AWS S3 and S3-compatible services.

A Store is bound to one bucket. It is built from a Config, usually derived from
the volume and storage configuration with NewConfig:

	cfg, err := s3.NewConfig(volumeCfg, storageCfg)
	if err != nil {
		return err
	}
	store, err := s3.NewStore(ctx, cfg)

# Clients

ClientManager loads the AWS configuration once (static credentials when given,
the default chain otherwise) and hands out SDK clients through a
ConnectionPool. The pool never blocks: an empty pool creates a client and a
full pool drops the returned one. A custom endpoint switches the SDK to
checksum-when-required mode, which most S3-compatible stores expect, and
ForcePathStyle selects path-style addressing.

# Large payloads

When MultipartThreshold is positive, bodies of at least that many bytes are
uploaded with the CargoShip transporter. The encoding then travels in the
"encoding" user-metadata key and GetObject folds it back into Object.Encoding.
A failed transporter upload falls back to a single PutObject.

# Errors

Missing objects map to storage.ErrObjectNotFound and existing buckets to
storage.ErrBucketExists, whether the service returns a modeled error type or
only an error code. Everything else is wrapped with the operation and key.

# Metrics

Every call is timed by a MetricsCollector; AdminStatus reports the counters
together with pool statistics.
*/
package s3
