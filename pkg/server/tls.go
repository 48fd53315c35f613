package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"mercator-hq/callisto/pkg/config"
)

// certExpiryWarning is how close to expiry a loaded certificate is logged
// as a warning.
const certExpiryWarning = 30 * 24 * time.Hour

// newTLSConfig builds the listener TLS config for cfg.
func newTLSConfig(cfg *config.TLSConfig, logger *slog.Logger) (*tls.Config, error) {
	loader := &certLoader{certFile: cfg.CertFile, keyFile: cfg.KeyFile, logger: logger}
	if err := loader.load(); err != nil {
		return nil, err
	}

	minVersion := uint16(tls.VersionTLS13)
	if cfg.MinVersion == "1.2" {
		minVersion = tls.VersionTLS12
	}

	// #nosec G402 - MinVersion is 1.2 or 1.3
	return &tls.Config{
		MinVersion:     minVersion,
		GetCertificate: loader.getCertificate,
	}, nil
}

// certLoader serves the certificate pair from disk, reloading it when
// either file is modified. A failed reload keeps the previous certificate.
type certLoader struct {
	certFile string
	keyFile  string
	logger   *slog.Logger

	mu       sync.RWMutex
	cert     *tls.Certificate
	certTime time.Time
	keyTime  time.Time
}

func (l *certLoader) load() error {
	certInfo, err := os.Stat(l.certFile)
	if err != nil {
		return fmt.Errorf("certificate file not found: %w", err)
	}
	keyInfo, err := os.Stat(l.keyFile)
	if err != nil {
		return fmt.Errorf("key file not found: %w", err)
	}

	cert, err := tls.LoadX509KeyPair(l.certFile, l.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}
	now := time.Now()
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("certificate expired at %s", leaf.NotAfter.Format(time.RFC3339))
	}
	cert.Leaf = leaf

	l.mu.Lock()
	l.cert = &cert
	l.certTime = certInfo.ModTime()
	l.keyTime = keyInfo.ModTime()
	l.mu.Unlock()

	attrs := []any{
		"subject", leaf.Subject.CommonName,
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
	}
	if leaf.NotAfter.Sub(now) < certExpiryWarning {
		l.logger.Warn("certificate expiring soon", attrs...)
	} else {
		l.logger.Info("certificate loaded", attrs...)
	}
	return nil
}

func (l *certLoader) changed() bool {
	certInfo, err := os.Stat(l.certFile)
	if err != nil {
		return false
	}
	keyInfo, err := os.Stat(l.keyFile)
	if err != nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return certInfo.ModTime().After(l.certTime) || keyInfo.ModTime().After(l.keyTime)
}

func (l *certLoader) getCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	if l.changed() {
		if err := l.load(); err != nil {
			l.logger.Error("failed to reload certificate", "cert_file", l.certFile, "error", err)
		}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cert, nil
}
