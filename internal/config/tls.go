package config

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/objectfs/s3backend/pkg/errors"
)

// TLSConfig represents the client TLS settings used to reach the S3 endpoint
type TLSConfig struct {
	RootCACertificate       string `yaml:"root_ca_certificate"`
	RootCACertificateBase64 string `yaml:"root_ca_certificate_base64"`
	InsecureSkipVerify      bool   `yaml:"insecure_skip_verify"`
	MinVersion              string `yaml:"min_version"`
}

// Validate validates the TLS settings without touching the filesystem
func (t *TLSConfig) Validate() error {
	if t.RootCACertificate != "" && t.RootCACertificateBase64 != "" {
		return invalid("tls.root_ca_certificate and tls.root_ca_certificate_base64 are mutually exclusive")
	}
	if _, err := parseTLSVersion(t.MinVersion); err != nil {
		return err
	}
	return nil
}

// ClientConfig builds a tls.Config trusting the system roots plus the configured CA.
// A nil receiver yields a nil config.
func (t *TLSConfig) ClientConfig() (*tls.Config, error) {
	if t == nil {
		return nil, nil
	}

	minVersion, err := parseTLSVersion(t.MinVersion)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		MinVersion: minVersion,
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}

	var caPEM []byte
	switch {
	case t.RootCACertificate != "":
		caPEM, err = os.ReadFile(filepath.Clean(t.RootCACertificate))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigLoad, component, "tls", "failed to read CA certificate").
				WithContext("file", t.RootCACertificate)
		}
	case t.RootCACertificateBase64 != "":
		caPEM, err = base64.StdEncoding.DecodeString(strings.TrimSpace(t.RootCACertificateBase64))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, component, "tls", "failed to decode base64 CA certificate")
		}
	}

	if caPEM != nil && !rootCAs.AppendCertsFromPEM(caPEM) {
		return nil, errors.Wrap(fmt.Errorf("invalid PEM data"), errors.ErrCodeConfigInvalid, component, "tls",
			"failed to parse CA certificate")
	}

	tlsConfig.RootCAs = rootCAs
	tlsConfig.InsecureSkipVerify = t.InsecureSkipVerify // #nosec G402 -- explicit operator choice

	return tlsConfig, nil
}

func parseTLSVersion(v string) (uint16, error) {
	switch v {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, invalid("invalid tls.min_version: %s (must be one of: 1.2, 1.3)", v)
	}
}
