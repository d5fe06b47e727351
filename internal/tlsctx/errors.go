package tlsctx

import (
	"errors"
	"fmt"
)

// ErrHandshake matches every *HandshakeError via errors.Is.
var ErrHandshake = errors.New("tlsctx: handshake failed")

// HandshakeError reports a failed TLS negotiation over an existing
// connection: protocol mismatch, certificate validation failure, or an I/O
// error during the handshake.
type HandshakeError struct {
	// Role is "client" or "server".
	Role string
	// Remote is the peer address of the upgraded connection.
	Remote string
	Err    error
}

// Error returns the formatted error string.
func (e *HandshakeError) Error() string {
	return fmt.Sprintf("tlsctx: handshake: %s role with %s: %v", e.Role, e.Remote, e.Err)
}

// Unwrap returns the underlying TLS or I/O error.
func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrHandshake.
func (e *HandshakeError) Is(target error) bool {
	return target == ErrHandshake
}
