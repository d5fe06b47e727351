package tlsctx

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
	"strings"
	"testing"
)

const testKeystorePassphrase = "changeit"

func loadKeystore(t *testing.T, path string) *Context {
	t.Helper()
	ctx, err := FromKeystore(path, testKeystorePassphrase)
	if err != nil {
		t.Fatalf("FromKeystore(%s) error: %v", path, err)
	}
	return ctx
}

func testCAPool(t *testing.T) *x509.CertPool {
	t.Helper()
	pemData, err := os.ReadFile("testdata/ca_cert.pem")
	if err != nil {
		t.Fatal(err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemData) {
		t.Fatal("AppendCertsFromPEM() failed")
	}
	return pool
}

func TestFromKeystore(t *testing.T) {
	ctx := loadKeystore(t, "testdata/server.p12")

	cfg := ctx.Config()
	if len(cfg.Certificates) != 1 {
		t.Fatalf("len(Certificates) = %d, want 1", len(cfg.Certificates))
	}
	leaf := cfg.Certificates[0].Leaf
	if leaf == nil {
		t.Fatal("Leaf = nil")
	}
	if leaf.Subject.CommonName != "localhost" {
		t.Errorf("CommonName = %q, want %q", leaf.Subject.CommonName, "localhost")
	}
	if cfg.RootCAs == nil {
		t.Error("RootCAs = nil, want the keystore certificate")
	}
	if cfg.ClientAuth != tls.VerifyClientCertIfGiven {
		t.Errorf("ClientAuth = %v, want VerifyClientCertIfGiven", cfg.ClientAuth)
	}
}

func TestFromKeystore_Formats(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantChain int
	}{
		{name: "legacy 3DES", path: "testdata/server.p12", wantChain: 1},
		{name: "PBES2 AES-256 with SHA-256 MAC", path: "testdata/server_default.p12", wantChain: 1},
		{name: "with CA chain", path: "testdata/server_chain.p12", wantChain: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadKeystore(t, tt.path).Config()
			if len(cfg.Certificates) != 1 {
				t.Fatalf("len(Certificates) = %d, want 1", len(cfg.Certificates))
			}
			cert := cfg.Certificates[0]
			if got := len(cert.Certificate); got != tt.wantChain {
				t.Errorf("chain length = %d, want %d", got, tt.wantChain)
			}
			if cert.Leaf.Subject.CommonName != "localhost" {
				t.Errorf("CommonName = %q, want %q", cert.Leaf.Subject.CommonName, "localhost")
			}
			if cert.PrivateKey == nil {
				t.Error("PrivateKey = nil")
			}
		})
	}
}

func TestFromKeystore_ChainCATrusted(t *testing.T) {
	cfg := loadKeystore(t, "testdata/server_chain.p12").Config()

	ca, err := x509.ParseCertificate(cfg.Certificates[0].Certificate[1])
	if err != nil {
		t.Fatalf("ParseCertificate() error: %v", err)
	}
	if ca.Subject.CommonName != "scx-tcp test CA" {
		t.Errorf("chain[1] CommonName = %q, want %q", ca.Subject.CommonName, "scx-tcp test CA")
	}

	_, err = cfg.Certificates[0].Leaf.Verify(x509.VerifyOptions{
		DNSName: "localhost",
		Roots:   cfg.RootCAs,
	})
	if err != nil {
		t.Errorf("leaf does not verify against RootCAs: %v", err)
	}
}

// TestFromKeystore_MutualTrust verifies that two contexts loaded from the same
// keystore complete a fully verified handshake in both directions.
func TestFromKeystore_MutualTrust(t *testing.T) {
	for _, path := range []string{"testdata/server.p12", "testdata/server_default.p12", "testdata/server_chain.p12"} {
		t.Run(path, func(t *testing.T) {
			client, server := upgradeBoth(t, loadKeystore(t, path), loadKeystore(t, path))
			if client.err != nil {
				t.Fatalf("client UpgradeToTLS() error: %v", client.err)
			}
			if server.err != nil {
				t.Fatalf("server UpgradeToTLSServer() error: %v", server.err)
			}
			if len(client.conn.ConnectionState().VerifiedChains) == 0 {
				t.Error("client VerifiedChains empty, want a verified server chain")
			}
			if len(server.conn.ConnectionState().VerifiedChains) == 0 {
				t.Error("server VerifiedChains empty, want a verified client chain")
			}
			exchange(t, client.conn, server.conn)
		})
	}
}

func TestFromKeystore_ServesChainToCATrustingClient(t *testing.T) {
	clientCtx := FromConfig(&tls.Config{RootCAs: testCAPool(t), MinVersion: tls.VersionTLS12})

	client, server := upgradeBoth(t, clientCtx, loadKeystore(t, "testdata/server_chain.p12"))
	if client.err != nil {
		t.Fatalf("client UpgradeToTLS() error: %v", client.err)
	}
	if server.err != nil {
		t.Fatalf("server UpgradeToTLSServer() error: %v", server.err)
	}

	chains := client.conn.ConnectionState().VerifiedChains
	if len(chains) == 0 || len(chains[0]) != 2 {
		t.Fatalf("VerifiedChains = %d chains, want leaf plus CA", len(chains))
	}
	if got := chains[0][1].Subject.CommonName; got != "scx-tcp test CA" {
		t.Errorf("chain root = %q, want %q", got, "scx-tcp test CA")
	}
	if n := len(server.conn.ConnectionState().PeerCertificates); n != 0 {
		t.Errorf("server saw %d client certificates, want 0", n)
	}
	exchange(t, client.conn, server.conn)
}

func TestFromKeystore_RejectsUntrustedClientCertificate(t *testing.T) {
	// The client skips server verification and always presents a
	// self-signed certificate the keystore does not trust.
	cert, err := GenerateCertificate()
	if err != nil {
		t.Fatalf("GenerateCertificate() error: %v", err)
	}
	clientCtx := FromConfig(&tls.Config{
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
		GetClientCertificate: func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
			return &cert, nil
		},
	})

	_, server := upgradeBoth(t, clientCtx, loadKeystore(t, "testdata/server_default.p12"))
	if server.err == nil {
		t.Fatal("server UpgradeToTLSServer() = nil, want error for untrusted client certificate")
	}
	if !errors.Is(server.err, ErrHandshake) {
		t.Errorf("server error = %v, want ErrHandshake", server.err)
	}
	var verr *tls.CertificateVerificationError
	if !errors.As(server.err, &verr) {
		t.Errorf("server error = %v, want a certificate verification failure", server.err)
	}
}

func TestFromKeystore_WrongPassphrase(t *testing.T) {
	_, err := FromKeystore("testdata/server_default.p12", "wrong")
	if err == nil {
		t.Fatal("FromKeystore() = nil, want error")
	}
	if !strings.Contains(err.Error(), "tlsctx: keystore: decode") {
		t.Errorf("error = %q, want decode failure", err.Error())
	}
}

func TestFromKeystore_MissingFile(t *testing.T) {
	_, err := FromKeystore("testdata/missing.p12", testKeystorePassphrase)
	if err == nil {
		t.Fatal("FromKeystore() = nil, want error")
	}
	if !strings.Contains(err.Error(), "tlsctx: keystore: read") {
		t.Errorf("error = %q, want read failure", err.Error())
	}
}
