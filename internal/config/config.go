package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/objectfs/s3backend/pkg/errors"
	"github.com/objectfs/s3backend/pkg/keyexpr"
	"github.com/objectfs/s3backend/pkg/utils"
)

// Execution modes
const (
	ExecutionAmbient = "ambient"
	ExecutionOwned   = "owned"
)

// OnClosure selects what happens to the bucket when a storage is closed
type OnClosure string

const (
	OnClosureDestroyBucket OnClosure = "destroy_bucket"
	OnClosureDoNothing     OnClosure = "do_nothing"
)

const component = "config"

// VolumeConfig represents the settings shared by every storage of a volume
type VolumeConfig struct {
	Endpoint string     `yaml:"url"`
	Region   string     `yaml:"region"`
	TLS      *TLSConfig `yaml:"tls,omitempty"`

	// Client settings
	MaxRetries         int   `yaml:"max_retries"`
	PoolSize           int   `yaml:"pool_size"`
	ForcePathStyle     bool  `yaml:"force_path_style"`
	MultipartThreshold int64 `yaml:"multipart_threshold"`

	// Execution settings
	ExecutionMode  string `yaml:"execution_mode"`
	OwnedWorkers   int    `yaml:"owned_workers"`
	OwnedQueueSize int    `yaml:"owned_queue_size"`
}

// StorageConfig represents the settings of one storage
type StorageConfig struct {
	KeyExpr     string              `yaml:"key_expr"`
	StripPrefix string              `yaml:"strip_prefix"`
	Volume      StorageVolumeConfig `yaml:"volume"`
}

// StorageVolumeConfig represents the backend-specific part of a storage configuration
type StorageVolumeConfig struct {
	Bucket             string      `yaml:"bucket"`
	ReadOnly           bool        `yaml:"read_only"`
	OnClosure          OnClosure   `yaml:"on_closure"`
	ReuseBucket        bool        `yaml:"reuse_bucket"`
	Private            Credentials `yaml:"private"`
	MaxConcurrentHeads int         `yaml:"max_concurrent_heads"`
}

// Credentials represents static S3 credentials
type Credentials struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// NewDefaultVolumeConfig returns a volume configuration with sensible defaults
func NewDefaultVolumeConfig() *VolumeConfig {
	return &VolumeConfig{
		MaxRetries:     3,
		PoolSize:       8,
		ExecutionMode:  ExecutionAmbient,
		OwnedWorkers:   2,
		OwnedQueueSize: 256,
	}
}

// NewDefaultStorageConfig returns a storage configuration with sensible defaults
func NewDefaultStorageConfig() *StorageConfig {
	return &StorageConfig{
		KeyExpr: "**",
		Volume: StorageVolumeConfig{
			OnClosure: OnClosureDoNothing,
		},
	}
}

// LoadFromFile loads the volume configuration from a YAML file
func (c *VolumeConfig) LoadFromFile(filename string) error {
	return loadYAML(filepath.Clean(filename), c)
}

// LoadFromFile loads the storage configuration from a YAML file
func (c *StorageConfig) LoadFromFile(filename string) error {
	return loadYAML(filepath.Clean(filename), c)
}

func loadYAML(filename string, out interface{}) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigLoad, component, "load", "failed to read config file").
			WithContext("file", filename)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, component, "load", "failed to parse config file").
			WithContext("file", filename)
	}

	return nil
}

// LoadFromEnv applies S3_BACKEND_* environment overrides to the volume configuration
func (c *VolumeConfig) LoadFromEnv() error {
	if val := os.Getenv("S3_BACKEND_URL"); val != "" {
		c.Endpoint = val
	}
	if val := os.Getenv("S3_BACKEND_REGION"); val != "" {
		c.Region = val
	}
	if val := os.Getenv("S3_BACKEND_EXECUTION_MODE"); val != "" {
		c.ExecutionMode = strings.ToLower(val)
	}
	if val := os.Getenv("S3_BACKEND_FORCE_PATH_STYLE"); val != "" {
		c.ForcePathStyle = strings.ToLower(val) == "true"
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"S3_BACKEND_MAX_RETRIES", &c.MaxRetries},
		{"S3_BACKEND_POOL_SIZE", &c.PoolSize},
		{"S3_BACKEND_OWNED_WORKERS", &c.OwnedWorkers},
		{"S3_BACKEND_OWNED_QUEUE_SIZE", &c.OwnedQueueSize},
	}
	for _, v := range ints {
		val := os.Getenv(v.name)
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, component, "env", "invalid integer").
				WithContext("variable", v.name)
		}
		*v.dst = n
	}

	if val := os.Getenv("S3_BACKEND_MULTIPART_THRESHOLD"); val != "" {
		n, err := utils.ParseBytes(val)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, component, "env", "invalid size").
				WithContext("variable", "S3_BACKEND_MULTIPART_THRESHOLD")
		}
		c.MultipartThreshold = n
	}

	return nil
}

// LoadFromEnv applies S3_BACKEND_* environment overrides to the storage configuration
func (c *StorageConfig) LoadFromEnv() error {
	if val := os.Getenv("S3_BACKEND_BUCKET"); val != "" {
		c.Volume.Bucket = val
	}
	if val := os.Getenv("S3_BACKEND_ACCESS_KEY"); val != "" {
		c.Volume.Private.AccessKey = val
	}
	if val := os.Getenv("S3_BACKEND_SECRET_KEY"); val != "" {
		c.Volume.Private.SecretKey = val
	}
	if val := os.Getenv("S3_BACKEND_ON_CLOSURE"); val != "" {
		c.Volume.OnClosure = OnClosure(strings.ToLower(val))
	}
	if val := os.Getenv("S3_BACKEND_READ_ONLY"); val != "" {
		c.Volume.ReadOnly = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("S3_BACKEND_REUSE_BUCKET"); val != "" {
		c.Volume.ReuseBucket = strings.ToLower(val) == "true"
	}
	return nil
}

// Validate validates the volume configuration
func (c *VolumeConfig) Validate() error {
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("url must be an absolute URL, got %q", c.Endpoint)
		}
	}

	if c.MaxRetries < 0 {
		return invalid("max_retries must not be negative")
	}

	if c.PoolSize <= 0 {
		return invalid("pool_size must be greater than 0")
	}

	if c.MultipartThreshold < 0 {
		return invalid("multipart_threshold must not be negative")
	}

	switch c.ExecutionMode {
	case ExecutionAmbient:
	case ExecutionOwned:
		if c.OwnedWorkers <= 0 {
			return invalid("owned_workers must be greater than 0")
		}
		if c.OwnedQueueSize < 0 {
			return invalid("owned_queue_size must not be negative")
		}
	default:
		return invalid("invalid execution_mode: %s (must be one of: %s, %s)",
			c.ExecutionMode, ExecutionAmbient, ExecutionOwned)
	}

	if c.TLS != nil {
		if err := c.TLS.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Validate validates the storage configuration
func (c *StorageConfig) Validate() error {
	if c.Volume.Bucket == "" {
		return invalid("volume.bucket is required")
	}

	filter, err := keyexpr.Parse(c.KeyExpr)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, component, "validate", "invalid key_expr")
	}

	if c.StripPrefix != "" {
		prefix, err := keyexpr.Parse(c.StripPrefix)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigInvalid, component, "validate", "invalid strip_prefix")
		}
		if prefix.IsWild() {
			return invalid("strip_prefix %q must not contain wildcards", c.StripPrefix)
		}
		if _, ok := filter.StripPrefix(prefix.String()); !ok {
			return invalid("strip_prefix %q is not a prefix of key_expr %q", c.StripPrefix, c.KeyExpr)
		}
	}

	switch c.Volume.OnClosure {
	case OnClosureDestroyBucket, OnClosureDoNothing:
	default:
		return invalid("invalid volume.on_closure: %s (must be one of: %s, %s)",
			c.Volume.OnClosure, OnClosureDestroyBucket, OnClosureDoNothing)
	}

	if c.Volume.MaxConcurrentHeads < 0 {
		return invalid("volume.max_concurrent_heads must not be negative")
	}

	if (c.Volume.Private.AccessKey == "") != (c.Volume.Private.SecretKey == "") {
		return invalid("volume.private.access_key and volume.private.secret_key must be set together")
	}

	return nil
}

// Filter returns the parsed key_expr.
func (c *StorageConfig) Filter() (keyexpr.KeyExpr, error) {
	return keyexpr.Parse(c.KeyExpr)
}

// AdminStatus returns the storage configuration as reported to administrators.
// Credentials are never included.
func (c *StorageConfig) AdminStatus() map[string]any {
	return map[string]any{
		"key_expr":     c.KeyExpr,
		"strip_prefix": c.StripPrefix,
		"volume": map[string]any{
			"bucket":       c.Volume.Bucket,
			"read_only":    c.Volume.ReadOnly,
			"on_closure":   string(c.Volume.OnClosure),
			"reuse_bucket": c.Volume.ReuseBucket,
		},
	}
}

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeConfigInvalid, format, args...).
		WithComponent(component).
		WithOperation("validate")
}

// SaveToFile saves the configuration to a YAML file
func (c *VolumeConfig) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
