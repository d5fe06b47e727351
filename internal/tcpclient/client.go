// Package tcpclient opens outbound TCP connections.
package tcpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Config holds the configuration for outbound connections.
type Config struct {
	// DialTimeout bounds connection establishment. Zero means no timeout
	// beyond the operating system's own.
	// Default: 0
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.DialTimeout < 0 {
		return errors.New("tcpclient: config: DialTimeout must not be negative")
	}
	return nil
}

// Client connects to TCP endpoints. The returned connections belong to the
// caller.
type Client struct {
	cfg Config
}

// New creates a Client.
func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Connect dials address ("host:port").
func (c *Client) Connect(ctx context.Context, address string) (net.Conn, error) {
	d := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("tcpclient: connect %s: %w", address, err)
	}
	return conn, nil
}
