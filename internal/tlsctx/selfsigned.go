package tlsctx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/scx-projects/scx-tcp/internal/fsutil"
)

const (
	certFileName = "selfsigned_cert.pem"
	keyFileName  = "selfsigned_key.pem"
)

// certValidity is the lifetime of generated certificates.
const certValidity = 365 * 24 * time.Hour

// defaultHosts are the subject alternative names used when none are given.
var defaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// GenerateCertificate creates a self-signed ECDSA P-256 certificate valid for
// hosts (DNS names or IP literals). With no hosts it covers localhost.
func GenerateCertificate(hosts ...string) (tls.Certificate, error) {
	certPEM, keyPEM, err := generatePEM(hosts)
	if err != nil {
		return tls.Certificate{}, err
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tlsctx: selfsigned: key pair: %w", err)
	}
	return cert, nil
}

// LoadOrGenerateCertificate loads a self-signed certificate previously stored
// in dataDir, or generates and persists a new one if none exists.
func LoadOrGenerateCertificate(dataDir string, logger *slog.Logger) (tls.Certificate, error) {
	certPath := filepath.Join(dataDir, certFileName)
	keyPath := filepath.Join(dataDir, keyFileName)

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err == nil {
		if info, statErr := os.Stat(keyPath); statErr == nil && info.Mode().Perm() != 0600 {
			logger.Warn("private key file has unexpected permissions",
				"path", keyPath,
				"mode", fmt.Sprintf("%04o", info.Mode().Perm()),
				"component", "tlsctx",
			)
		}
		logger.Info("loaded existing certificate", "path", certPath, "component", "tlsctx")
		return cert, nil
	}
	if _, statErr := os.Stat(certPath); !os.IsNotExist(statErr) {
		return tls.Certificate{}, fmt.Errorf("tlsctx: selfsigned: load %s: %w", certPath, err)
	}

	certPEM, keyPEM, err := generatePEM(nil)
	if err != nil {
		return tls.Certificate{}, err
	}
	if err := fsutil.WriteFileAtomic(dataDir, keyFileName, keyPEM, 0600); err != nil {
		return tls.Certificate{}, fmt.Errorf("tlsctx: selfsigned: write key file: %w", err)
	}
	if err := fsutil.WriteFileAtomic(dataDir, certFileName, certPEM, 0644); err != nil {
		return tls.Certificate{}, fmt.Errorf("tlsctx: selfsigned: write cert file: %w", err)
	}

	cert, err = tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("tlsctx: selfsigned: key pair: %w", err)
	}
	logger.Info("generated new certificate", "path", certPath, "component", "tlsctx")
	return cert, nil
}

func generatePEM(hosts []string) (certPEM, keyPEM []byte, err error) {
	if len(hosts) == 0 {
		hosts = defaultHosts
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("tlsctx: selfsigned: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("tlsctx: selfsigned: serial: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: hosts[0]},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, fmt.Errorf("tlsctx: selfsigned: create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("tlsctx: selfsigned: marshal key: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}
