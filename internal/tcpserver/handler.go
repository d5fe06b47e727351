package tcpserver

import (
	"fmt"
	"io"
	"net"
	"os"
)

// Handler serves one accepted connection. The handler owns conn: the server
// never reads, writes, or closes it after ServeConn has been called, even if
// ServeConn returns an error or panics.
type Handler interface {
	ServeConn(conn net.Conn) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(conn net.Conn) error

// ServeConn calls f(conn).
func (f HandlerFunc) ServeConn(conn net.Conn) error {
	return f(conn)
}

// UncaughtHandler receives a failure that escaped a connection goroutine:
// the non-nil error returned by Handler.ServeConn, the value passed to panic
// inside it, or the *tlsctx.HandshakeError of a failed server-side upgrade.
// The value is delivered as-is, never wrapped.
//
// For a panic, stack is the goroutine stack captured at the panic site, before
// the goroutine unwound. It is nil for returned errors.
type UncaughtHandler func(failure any, stack []byte)

// DefaultUncaughtHandler reports failures to stderr. A panic is printed with
// the stack of the panicking goroutine, as the runtime would print it, but the
// process keeps running.
func DefaultUncaughtHandler(failure any, stack []byte) {
	writeUncaught(os.Stderr, failure, stack)
}

func writeUncaught(w io.Writer, failure any, stack []byte) {
	fmt.Fprintf(w, "uncaught failure in connection goroutine: %v\n", failure)
	if len(stack) > 0 {
		fmt.Fprintf(w, "\n%s", stack)
	}
}
