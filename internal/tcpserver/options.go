// Package tcpserver implements a minimal TCP acceptor. A Server binds a
// listening socket, blocks on accept, and hands each accepted connection,
// with full ownership, to a registered Handler running in its own goroutine.
//
// The server does not track connections or goroutines, impose timeouts, or
// limit concurrency. Stop only stops accepting; connections already handed
// to the handler run to completion on their own.
package tcpserver

import "errors"

// DefaultBacklog is the default listen queue depth.
const DefaultBacklog = 128

// Options holds construction-time TCP settings for a Server.
// Options is copied by value into the Server.
type Options struct {
	// Backlog is the listen queue depth passed to listen(2).
	// Default: 128
	Backlog int `yaml:"backlog"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (o *Options) ApplyDefaults() {
	if o.Backlog == 0 {
		o.Backlog = DefaultBacklog
	}
}

// Validate checks that option values are within acceptable ranges.
func (o *Options) Validate() error {
	if o.Backlog <= 0 {
		return errors.New("tcpserver: options: Backlog must be positive")
	}
	return nil
}
