package config

import (
	"gopkg.in/yaml.v2"

	"github.com/objectfs/s3backend/pkg/errors"
)

// Property names understood by ParseVolumeProperties
const (
	PropEndpoint = "url"
	PropRegion   = "region"
	PropTLS      = "tls"
)

// ParseVolumeProperties builds a volume configuration from the JSON-like property map
// handed over by the middleware. Unset properties keep their defaults.
func ParseVolumeProperties(props map[string]any) (*VolumeConfig, error) {
	for _, name := range []string{PropEndpoint, PropRegion} {
		if v, ok := props[name]; ok && v != nil {
			if _, isString := v.(string); !isString {
				return nil, invalidProperty(name, "must be a string, got %T", v)
			}
		}
	}
	if v, ok := props[PropTLS]; ok && v != nil {
		if !isObject(v) {
			return nil, invalidProperty(PropTLS, "must be an object, got %T", v)
		}
	}

	cfg := NewDefaultVolumeConfig()
	if err := decodeProperties(props, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseStorageProperties builds a storage configuration from a property map of the form
//
//	{"key_expr": "...", "strip_prefix": "...", "volume": {"bucket": "...", ...}}
func ParseStorageProperties(props map[string]any) (*StorageConfig, error) {
	if v, ok := props["volume"]; ok && v != nil && !isObject(v) {
		return nil, invalidProperty("volume", "must be an object, got %T", v)
	}

	cfg := NewDefaultStorageConfig()
	if err := decodeProperties(props, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeProperties maps props onto out through the YAML codec so that the yaml tags
// are the single source of property names.
func decodeProperties(props map[string]any, out interface{}) error {
	data, err := yaml.Marshal(props)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, component, "properties", "failed to encode properties")
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, component, "properties", "failed to decode properties")
	}
	return nil
}

func isObject(v any) bool {
	switch v.(type) {
	case map[string]any, map[interface{}]interface{}:
		return true
	default:
		return false
	}
}

func invalidProperty(name, format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeConfigInvalid, "property '"+name+"' "+format, args...).
		WithComponent(component).
		WithOperation("properties").
		WithContext("property", name)
}
