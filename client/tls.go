// This file contains TLS configuration and certificate loading for HTTPS backends.
package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/otherjamesbrown/scribe-cli/config"
)

// LoadClientTLSConfig creates a tls.Config for the HTTP transport.
// Returns nil if no TLS setting is configured, leaving Go's defaults in place.
func LoadClientTLSConfig(cfg *config.TLSConfig) (*tls.Config, error) {
	if cfg == nil || cfg.IsZero() {
		return nil, nil
	}

	// Resolve paths (expands ~).
	cfg.ResolvePaths()

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.SkipVerify,
	}

	// Client certificate for mTLS is optional; both halves must be present.
	if cfg.ClientCert != "" || cfg.ClientKey != "" {
		if err := CheckCertsExist(cfg); err != nil {
			return nil, err
		}
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	// Load CA certificate for server verification (unless SkipVerify is set).
	if cfg.CACert != "" && !cfg.SkipVerify {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}

		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA cert: invalid PEM")
		}

		tlsConfig.RootCAs = caPool
	}

	return tlsConfig, nil
}

// CheckCertsExist verifies the client certificate and key files are present.
// This is useful for providing clear error messages before attempting to connect.
func CheckCertsExist(cfg *config.TLSConfig) error {
	files := []struct {
		name string
		path string
	}{
		{"Client certificate", cfg.ClientCert},
		{"Client key", cfg.ClientKey},
	}

	for _, f := range files {
		if f.path == "" {
			return fmt.Errorf("%s not configured", f.name)
		}
		if _, err := os.Stat(f.path); os.IsNotExist(err) {
			return fmt.Errorf("%s not found: %s", f.name, f.path)
		}
	}

	return nil
}
