package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/portwatch/internal/config"
)

const (
	tlsCaCrt = "tls_ca.crt"
	tlsCrt   = "tls.crt"
	tlsKey   = "tls.key"

	defaultValidDays = 365 * 5
)

func parseTLSVersion(ver string) (uint16, bool) {
	switch strings.ToLower(strings.TrimSpace(ver)) {
	case "1.2", "tls1.2":
		return tls.VersionTLS12, true
	case "1.3", "tls1.3":
		return tls.VersionTLS13, true
	default:
		return 0, false
	}
}

// versions defaults both bounds to TLS 1.3.
func versions(cfg config.ServerConfig) (minVer, maxVer uint16) {
	minVer, maxVer = tls.VersionTLS13, tls.VersionTLS13
	if v, ok := parseTLSVersion(cfg.TLSMinVersion); ok {
		minVer = v
	}
	if v, ok := parseTLSVersion(cfg.TLSMaxVersion); ok {
		maxVer = v
	}
	if minVer > maxVer {
		maxVer = minVer
	}
	return minVer, maxVer
}

// SetupTLS returns the server TLS configuration, or nil when TLS is off.
// Explicit cert_file/key_file win over dir; with dir and auto_generate a
// self-signed pair is created on first use.
func SetupTLS(server config.ServerConfig) (*tls.Config, error) {
	if server.TLS == nil || !server.TLS.Enabled {
		return nil, nil
	}
	minVer, maxVer := versions(server)

	certPath, keyPath := server.TLS.CertFile, server.TLS.KeyFile
	if certPath == "" || keyPath == "" {
		if server.TLS.Dir == "" {
			return nil, errors.New("TLS enabled but neither cert_file/key_file nor dir is set")
		}
		certPath = filepath.Join(server.TLS.Dir, tlsCrt)
		keyPath = filepath.Join(server.TLS.Dir, tlsKey)
		if server.TLS.AutoGenerate && !certificatesExist(certPath, keyPath) {
			if err := generateCertificate(server.TLS.AutoGen, server.TLS.Dir); err != nil {
				return nil, fmt.Errorf("certificate generation failed: %w", err)
			}
		}
	}
	// fail at startup rather than on the first handshake
	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}
	return &tls.Config{
		GetCertificate: reloadingCertificate(certPath, keyPath),
		MinVersion:     minVer,
		MaxVersion:     maxVer,
	}, nil
}

// reloadingCertificate reads the pair on every handshake so renewed
// certificates are picked up without a restart.
func reloadingCertificate(certFile, keyFile string) func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		cert, err := tls.LoadX509KeyPair(filepath.Clean(certFile), filepath.Clean(keyFile))
		if err != nil {
			return nil, err
		}
		return &cert, nil
	}
}

func certificatesExist(certPath, keyPath string) bool {
	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)
	return certErr == nil && keyErr == nil
}

func generateCertificate(auto *config.AutoGenTLS, destDir string) error {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if auto == nil {
		auto = &config.AutoGenTLS{}
	}
	cc := CertConfig{
		CommonName:   auto.CommonName,
		Organization: auto.Organization,
		DNSNames:     auto.DNSNames,
		IPAddresses:  auto.IPAddresses,
		CertPath:     filepath.Join(destDir, tlsCrt),
		KeyPath:      filepath.Join(destDir, tlsKey),
		CACertPath:   filepath.Join(destDir, tlsCaCrt),
	}
	if cc.CommonName == "" {
		cc.CommonName = "localhost"
	}
	if cc.Organization == "" {
		cc.Organization = "portwatch"
	}
	if len(cc.DNSNames) == 0 {
		cc.DNSNames = []string{"localhost"}
	}
	if len(cc.IPAddresses) == 0 {
		cc.IPAddresses = []string{"127.0.0.1"}
	}
	days := auto.ValidDays
	if days <= 0 {
		days = defaultValidDays
	}
	cc.NotAfter = time.Now().AddDate(0, 0, days)
	return GenerateSelfSignedCert(cc)
}
