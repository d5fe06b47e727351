package tlsctx

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"software.sslmate.com/src/go-pkcs12"
)

// FromKeystore loads a PKCS#12 keystore holding a private key, its
// certificate and any CA certificates of its chain. Both the modern
// PBES2/AES format and the legacy 3DES/RC2 format are accepted.
//
// The certificate and its chain form the local identity. The certificate and
// the keystore's CA certificates are the only trust anchors for peers, in
// both roles. As server the context asks for a client certificate and
// verifies it against those anchors when one is given
// (tls.VerifyClientCertIfGiven); clients without a certificate are still
// accepted.
func FromKeystore(path, passphrase string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlsctx: keystore: read %s: %w", path, err)
	}

	key, leaf, caCerts, err := pkcs12.DecodeChain(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("tlsctx: keystore: decode %s: %w", path, err)
	}

	chain := [][]byte{leaf.Raw}
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	for _, ca := range caCerts {
		chain = append(chain, ca.Raw)
		pool.AddCert(ca)
	}

	return &Context{cfg: &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: chain,
			PrivateKey:  key,
			Leaf:        leaf,
		}},
		RootCAs:    pool,
		ClientCAs:  pool,
		ClientAuth: tls.VerifyClientCertIfGiven,
		MinVersion: tls.VersionTLS12,
	}}, nil
}
