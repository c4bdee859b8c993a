/*
Package config provides configuration management for the S3 storage backend with multi-source support.

Two configuration objects exist. A VolumeConfig describes how to reach the object store and how
work is executed; it is shared by every storage created from the volume. A StorageConfig describes
one storage: the key expression it serves, the prefix stripped from keys before they become object
keys, and the bucket policy.

# Configuration Sources

Sources are applied in order, later sources overriding earlier ones:

	┌─────────────────────────────────────────────┐
	│        Environment Variables                │ ← Highest Priority
	│           (S3_BACKEND_*)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│   Middleware properties / YAML files        │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	└─────────────────────────────────────────────┘

Property maps handed over by the middleware are JSON-like (map[string]any). They are decoded
through the same yaml tags as files, after the shape of 'url', 'region' and 'tls' has been checked.
A shape mismatch is reported as CONFIG_INVALID.

# Volume Properties

	url:                 endpoint URL (string, optional)
	region:              region (string, optional)
	tls:                 object with root_ca_certificate, root_ca_certificate_base64,
	                     insecure_skip_verify and min_version
	max_retries:         SDK retry attempts (default 3)
	pool_size:           number of pooled clients (default 8)
	force_path_style:    path-style addressing, required by most S3-compatible stores
	multipart_threshold: payload size in bytes from which multipart upload is used (0 disables)
	execution_mode:      ambient (default) or owned
	owned_workers:       worker count of the owned executor (default 2)
	owned_queue_size:    queue depth of the owned executor; callers wait when it is full (default 256)

# Storage Properties

	key_expr:                    key expression served by the storage
	strip_prefix:                prefix removed from keys to form object keys
	volume.bucket:               bucket name (required)
	volume.read_only:            reject put and delete
	volume.on_closure:           destroy_bucket or do_nothing (default)
	volume.reuse_bucket:         attach to an existing bucket instead of failing
	volume.private.access_key:   static access key
	volume.private.secret_key:   static secret key
	volume.max_concurrent_heads: bound on concurrent metadata requests while listing (0 = unbounded)

# Usage Examples

	vcfg, err := config.ParseVolumeProperties(props)
	if err != nil {
		return err
	}
	if err := vcfg.LoadFromEnv(); err != nil {
		return err
	}

	scfg := config.NewDefaultStorageConfig()
	if err := scfg.LoadFromFile("/etc/s3backend/storage.yaml"); err != nil {
		return err
	}
	if err := scfg.Validate(); err != nil {
		return err
	}
*/
package config
