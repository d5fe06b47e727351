package tcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/scx-projects/scx-tcp/internal/tlsctx"
)

const (
	stateStopped int32 = iota
	stateRunning
)

// Server accepts TCP connections and dispatches each one to a Handler in a
// new goroutine. The zero value is not usable; construct with New.
//
// Start, Stop, LocalAddr and the registration methods are safe for concurrent
// use. Handler, UncaughtHandler and TLS context must be registered before
// Start; registering while running fails with ErrAlreadyRunning.
type Server struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	handler  Handler
	uncaught UncaughtHandler
	tls      *tlsctx.Context
	listener net.Listener
	done     chan struct{} // closed when the accept loop returns

	// state is written by Start/Stop under mu and by the accept loop on a
	// fatal accept failure.
	state atomic.Int32
}

// New creates a stopped Server. Option defaults are applied; a nil logger
// uses slog.Default().
func New(opts Options, logger *slog.Logger) *Server {
	opts.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		opts:     opts,
		logger:   logger.With("component", "tcpserver"),
		uncaught: DefaultUncaughtHandler,
	}
}

// Options returns the options the server was built with.
func (s *Server) Options() Options {
	return s.opts
}

// OnConnect registers the connection handler.
func (s *Server) OnConnect(h Handler) error {
	if h == nil {
		return ErrHandlerNotSet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Load() == stateRunning {
		return ErrAlreadyRunning
	}
	s.handler = h
	return nil
}

// OnUncaught registers the receiver of handler failures. A nil fn restores
// DefaultUncaughtHandler.
func (s *Server) OnUncaught(fn UncaughtHandler) error {
	if fn == nil {
		fn = DefaultUncaughtHandler
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Load() == stateRunning {
		return ErrAlreadyRunning
	}
	s.uncaught = fn
	return nil
}

// UseTLS makes every accepted connection perform a server-role TLS handshake
// before it reaches the handler. A nil ctx disables TLS.
func (s *Server) UseTLS(ctx *tlsctx.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Load() == stateRunning {
		return ErrAlreadyRunning
	}
	s.tls = ctx
	return nil
}

// Start binds address ("host:port"; port 0 picks an ephemeral port) and starts
// the accept loop. It fails with ErrAlreadyRunning or ErrHandlerNotSet without
// side effects, and with an ErrBind-class error if the socket cannot be bound.
func (s *Server) Start(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Load() == stateRunning {
		return ErrAlreadyRunning
	}
	if s.handler == nil {
		return ErrHandlerNotSet
	}
	if err := s.opts.Validate(); err != nil {
		return &Error{Kind: KindConfiguration, Message: "invalid options", Err: err}
	}

	// A loop that stopped itself after an accept failure may still be exiting.
	s.join()

	ln, err := listenTCP(address, s.opts.Backlog, s.logger)
	if err != nil {
		return bindError(address, err)
	}

	s.listener = ln
	s.done = make(chan struct{})
	s.state.Store(stateRunning)

	d := dispatcher{handler: s.handler, uncaught: s.uncaught, tls: s.tls}
	go s.acceptLoop(ln, d, s.done)

	s.logger.Info("server started",
		"addr", ln.Addr().String(),
		"backlog", s.opts.Backlog,
		"tls", s.tls != nil,
	)
	if !backlogHonored {
		s.logger.Debug("backlog not supported on this platform, using runtime default")
	}
	return nil
}

// StartPort binds the wildcard address on port.
func (s *Server) StartPort(port int) error {
	return s.Start(net.JoinHostPort("", strconv.Itoa(port)))
}

// Stop stops accepting connections and waits for the accept loop to exit.
// Connections already dispatched are not touched. Stop is idempotent.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped := s.state.CompareAndSwap(stateRunning, stateStopped)
	if stopped {
		if err := s.listener.Close(); err != nil {
			s.logger.Debug("close listener", "error", err)
		}
	}
	s.join()
	if stopped {
		s.logger.Info("server stopped")
	}
}

// LocalAddr returns the address the listener is bound to.
func (s *Server) LocalAddr() (*net.TCPAddr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Load() != stateRunning || s.listener == nil {
		return nil, ErrNotRunning
	}
	addr, ok := s.listener.Addr().(*net.TCPAddr)
	if !ok {
		return nil, &Error{Kind: KindConfiguration, Message: fmt.Sprintf("unexpected listener address %T", s.listener.Addr())}
	}
	return addr, nil
}

// join waits for the current accept loop, if any. Caller holds mu.
func (s *Server) join() {
	if s.done == nil {
		return
	}
	<-s.done
	s.done = nil
	s.listener = nil
}

// acceptLoop accepts connections on ln until it is closed. It owns nothing
// but ln and only closes it on an unexpected accept failure.
func (s *Server) acceptLoop(ln net.Listener, d dispatcher, done chan<- struct{}) {
	defer close(done)

	for {
		conn, err := ln.Accept()
		if err != nil {
			// Stop closed the listener.
			if s.state.Load() == stateStopped {
				return
			}
			// Unexpected failure: stop ourselves. Losing the race to Stop
			// means the failure was caused by the close after all.
			if !s.state.CompareAndSwap(stateRunning, stateStopped) {
				return
			}
			if cerr := ln.Close(); cerr != nil {
				s.logger.Debug("close listener", "error", cerr)
			}
			s.logger.Error("accept failed, listener stopped",
				"error", acceptError(ln.Addr().String(), err),
			)
			return
		}

		s.logger.Debug("connection accepted", "remote_addr", conn.RemoteAddr().String())
		go d.serve(conn)
	}
}

// dispatcher runs one connection. Its fields are captured at Start so the
// per-connection goroutines never read Server state.
type dispatcher struct {
	handler  Handler
	uncaught UncaughtHandler
	tls      *tlsctx.Context
}

func (d dispatcher) serve(conn net.Conn) {
	if failure, stack := d.run(conn); failure != nil {
		d.uncaught(failure, stack)
	}
}

// run performs the optional TLS upgrade and calls the handler. It returns the
// handler's error or recovered panic value unchanged. For a panic, stack is
// captured inside the deferred recover, while the panicking frames are still
// on the goroutine.
func (d dispatcher) run(conn net.Conn) (failure any, stack []byte) {
	defer func() {
		if r := recover(); r != nil {
			failure = r
			stack = debug.Stack()
		}
	}()

	if d.tls != nil {
		tc, err := d.tls.UpgradeToTLSServer(context.Background(), conn)
		if err != nil {
			// The handler never saw conn, so it is still ours to close.
			conn.Close()
			return err, nil
		}
		conn = tc
	}

	if err := d.handler.ServeConn(conn); err != nil {
		return err, nil
	}
	return nil, nil
}
