// Package tlsctx builds reusable TLS contexts and upgrades already-connected
// TCP connections to TLS in place.
package tlsctx

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// Context is a reusable TLS configuration. The listening-side factory
// (ServerConfig, NewListener) and the connecting-side factory (ClientConfig,
// Dialer) are both derived from the same underlying config.
type Context struct {
	cfg *tls.Config
}

// FromConfig wraps an externally built config. The config is cloned.
func FromConfig(cfg *tls.Config) *Context {
	if cfg == nil {
		cfg = &tls.Config{}
	}
	return &Context{cfg: cfg.Clone()}
}

// Default returns a context that verifies peers against the platform trust
// store. It carries no local certificate, so a server-role handshake fails.
func Default() *Context {
	return &Context{cfg: &tls.Config{MinVersion: tls.VersionTLS12}}
}

// TrustAny returns a context that accepts any peer certificate without
// verification. It is unsafe outside development and testing. An ephemeral
// self-signed certificate is generated so the context can also serve.
func TrustAny() (*Context, error) {
	cert, err := GenerateCertificate()
	if err != nil {
		return nil, fmt.Errorf("tlsctx: trust any: %w", err)
	}
	return TrustAnyWithCertificate(cert), nil
}

// TrustAnyWithCertificate is TrustAny with a caller-supplied local certificate.
func TrustAnyWithCertificate(cert tls.Certificate) *Context {
	return &Context{cfg: &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
	}}
}

// FromFiles loads a PEM certificate chain and private key. Peers are verified
// against the platform trust store.
func FromFiles(certFile, keyFile string) (*Context, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("tlsctx: load key pair: %w", err)
	}
	return &Context{cfg: &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}}, nil
}

// Config returns a copy of the underlying config.
func (c *Context) Config() *tls.Config {
	return c.cfg.Clone()
}

// ServerConfig returns a config for the listening side.
func (c *Context) ServerConfig() *tls.Config {
	return c.cfg.Clone()
}

// ClientConfig returns a config for the connecting side. serverName is used
// for certificate verification unless the context already pins one.
func (c *Context) ClientConfig(serverName string) *tls.Config {
	cfg := c.cfg.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}
	return cfg
}

// NewListener wraps ln so that every accepted connection is a server-role TLS
// connection. The handshake runs on first read or write.
func (c *Context) NewListener(ln net.Listener) net.Listener {
	return tls.NewListener(ln, c.ServerConfig())
}

// Dialer returns a TLS dialer using d for the underlying TCP connection.
// A nil d uses a zero net.Dialer.
func (c *Context) Dialer(d *net.Dialer) *tls.Dialer {
	return &tls.Dialer{NetDialer: d, Config: c.Config()}
}

// UpgradeToTLS performs a client-role handshake over conn, which must be an
// already-connected plaintext transport. No new socket is opened. Closing the
// returned connection closes conn. On failure conn is left open and still
// belongs to the caller.
func (c *Context) UpgradeToTLS(ctx context.Context, conn net.Conn) (*tls.Conn, error) {
	tc := tls.Client(conn, c.ClientConfig(remoteHost(conn)))
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, &HandshakeError{Role: "client", Remote: remoteAddr(conn), Err: err}
	}
	return tc, nil
}

// UpgradeToTLSServer is the server-role counterpart of UpgradeToTLS.
func (c *Context) UpgradeToTLSServer(ctx context.Context, conn net.Conn) (*tls.Conn, error) {
	tc := tls.Server(conn, c.ServerConfig())
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, &HandshakeError{Role: "server", Remote: remoteAddr(conn), Err: err}
	}
	return tc, nil
}

func remoteAddr(conn net.Conn) string {
	if a := conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// remoteHost returns the host part of the peer address, used as the default
// server name for verification.
func remoteHost(conn net.Conn) string {
	addr := remoteAddr(conn)
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
