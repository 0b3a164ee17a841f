package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	tlsCaCrt = "tls_ca.crt"
	tlsCrt   = "tls.crt"
	tlsKey   = "tls.key"
)

// Options configure HTTPS for the status API.
type Options struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	// Dir holds tls.crt and tls.key when CertFile/KeyFile are not given.
	Dir          string `mapstructure:"dir"`
	AutoGenerate bool   `mapstructure:"auto_generate"`
	MinVersion   string `mapstructure:"min_version"`
}

// parseTLSVersion parses TLS version string and returns the corresponding constant
func parseTLSVersion(ver string) (uint16, error) {
	switch ver {
	case "", "default", "1.3", "TLS1.3", "tls1.3":
		return tls.VersionTLS13, nil
	case "1.2", "TLS1.2", "tls1.2":
		return tls.VersionTLS12, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q", ver)
	}
}

// Setup returns the server TLS config for o, or nil when TLS is disabled.
// Explicit cert/key files win over Dir. With AutoGenerate a self-signed
// pair is written into Dir on first use.
func Setup(o Options) (*tls.Config, error) {
	if !o.Enabled {
		return nil, nil
	}
	minVer, err := parseTLSVersion(o.MinVersion)
	if err != nil {
		return nil, err
	}

	certPath, keyPath := o.CertFile, o.KeyFile
	if certPath == "" || keyPath == "" {
		if o.Dir == "" {
			return nil, errors.New("TLS enabled but no valid certificate configuration found")
		}
		certPath = filepath.Join(o.Dir, tlsCrt)
		keyPath = filepath.Join(o.Dir, tlsKey)
		if o.AutoGenerate && !certificatesExist(certPath, keyPath) {
			if err := GenerateSelfSigned(o.Dir, "localhost", []string{"localhost", "127.0.0.1"}, 5*365*24*time.Hour); err != nil {
				return nil, fmt.Errorf("certificate generation failed: %w", err)
			}
		}
	}

	// Load once up front so a bad pair fails at startup.
	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}
	return &tls.Config{
		GetCertificate: reloadingCertificate(certPath, keyPath),
		MinVersion:     minVer,
	}, nil
}

// reloadingCertificate re-reads the pair on every handshake so rotated
// files are picked up without a restart.
func reloadingCertificate(certFile, keyFile string) func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		c, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, err
		}
		return &c, nil
	}
}

func certificatesExist(certPath, keyPath string) bool {
	_, certErr := os.Stat(certPath)
	_, keyErr := os.Stat(keyPath)
	return certErr == nil && keyErr == nil
}

// GenerateSelfSigned writes tls.crt, tls.key and tls_ca.crt into dir.
// hosts may mix DNS names and IP addresses.
func GenerateSelfSigned(dir, commonName string, hosts []string, validFor time.Duration) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return err
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"spawnd"}},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	for _, f := range []struct {
		name string
		data []byte
		mode os.FileMode
	}{
		{tlsCrt, certPEM, 0o644},
		{tlsCaCrt, certPEM, 0o644},
		{tlsKey, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600},
	} {
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, f.mode); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}
