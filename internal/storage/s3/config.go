package s3

import (
	"crypto/tls"
	"fmt"

	"github.com/objectfs/s3backend/internal/config"
)

const (
	// DefaultRegion is used for request signing when neither the configuration nor
	// the environment names a region.
	DefaultRegion = "us-east-1"

	defaultMultipartChunkSize = 16 * 1024 * 1024
)

// Config represents S3 client configuration for one bucket
type Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	// Performance settings
	MaxRetries int `yaml:"max_retries"`
	PoolSize   int `yaml:"pool_size"`

	// CargoShip multipart settings; a zero threshold disables the transporter
	MultipartThreshold int64 `yaml:"multipart_threshold"`
	MultipartChunkSize int64 `yaml:"multipart_chunk_size"`

	TLS *tls.Config `yaml:"-"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		MaxRetries:         3,
		PoolSize:           8,
		MultipartChunkSize: defaultMultipartChunkSize,
	}
}

// NewConfig combines the volume and storage settings into a client configuration.
// The TLS block is resolved here so that a bad CA file fails storage creation.
func NewConfig(vol *config.VolumeConfig, st *config.StorageConfig) (*Config, error) {
	if st.Volume.Bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}

	tlsCfg, err := vol.TLS.ClientConfig()
	if err != nil {
		return nil, err
	}

	cfg := NewDefaultConfig()
	cfg.Bucket = st.Volume.Bucket
	cfg.Region = vol.Region
	cfg.Endpoint = vol.Endpoint
	cfg.AccessKeyID = st.Volume.Private.AccessKey
	cfg.SecretAccessKey = st.Volume.Private.SecretKey
	cfg.ForcePathStyle = vol.ForcePathStyle
	cfg.MaxRetries = vol.MaxRetries
	if vol.PoolSize > 0 {
		cfg.PoolSize = vol.PoolSize
	}
	cfg.MultipartThreshold = vol.MultipartThreshold
	cfg.TLS = tlsCfg

	return cfg, nil
}
