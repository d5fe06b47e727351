package tcpserver

import "fmt"

// Kind classifies server errors.
type Kind int

const (
	// KindConfiguration covers lifecycle misuse: already running, no
	// handler registered, address queried while stopped.
	KindConfiguration Kind = iota + 1
	// KindBind covers invalid addresses and addresses already in use.
	KindBind
	// KindAccept is a fatal accept failure that stopped the listener.
	KindAccept
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindBind:
		return "bind"
	case KindAccept:
		return "accept"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the error type returned by Server lifecycle operations.
// It supports errors.Is matching against the class sentinels (ErrConfiguration,
// ErrBind, ErrAccept) by kind, and against the specific sentinels
// (ErrAlreadyRunning, ErrHandlerNotSet, ErrNotRunning) by kind and message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error returns the formatted error string.
func (e *Error) Error() string {
	msg := "tcpserver: " + e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is supports errors.Is matching by kind.
// A target without a message matches every error of its kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// Class sentinels.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrBind          = &Error{Kind: KindBind}
	ErrAccept        = &Error{Kind: KindAccept}
)

// Configuration sentinels.
var (
	ErrAlreadyRunning = &Error{Kind: KindConfiguration, Message: "server already running"}
	ErrHandlerNotSet  = &Error{Kind: KindConfiguration, Message: "connection handler not set"}
	ErrNotRunning     = &Error{Kind: KindConfiguration, Message: "server not running"}
)

func bindError(address string, err error) error {
	return &Error{Kind: KindBind, Message: address, Err: err}
}

func acceptError(address string, err error) error {
	return &Error{Kind: KindAccept, Message: address, Err: err}
}
