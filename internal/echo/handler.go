// Package echo provides a line-oriented connection handler: "ping" is
// answered with "pong", any other line is written back unchanged.
package echo

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
)

// MaxLineSize is the longest line the handler accepts.
const MaxLineSize = 64 * 1024

// Handler serves line-based echo sessions. It implements tcpserver.Handler.
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a Handler. A nil logger uses slog.Default().
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger.With("component", "echo")}
}

// ServeConn reads lines until EOF and answers each one. It closes conn before
// returning.
func (h *Handler) ServeConn(conn net.Conn) error {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	h.logger.Debug("session started", "remote_addr", remote)

	r := bufio.NewReaderSize(conn, 4096)
	w := bufio.NewWriter(conn)
	lines := 0
	for {
		line, err := readLine(r)
		if errors.Is(err, io.EOF) {
			h.logger.Debug("session ended", "remote_addr", remote, "lines", lines)
			return nil
		}
		if err != nil {
			return err
		}
		lines++

		if _, err := w.WriteString(Reply(line) + "\n"); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}

// Reply returns the answer to one line, without the trailing newline.
func Reply(line string) string {
	if line == "ping" {
		return "pong"
	}
	return line
}

var errLineTooLong = errors.New("echo: line too long")

// readLine returns the next line without its "\n" or "\r\n" terminator. A
// final unterminated line is returned before io.EOF.
func readLine(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		chunk, err := r.ReadSlice('\n')
		if sb.Len()+len(chunk) > MaxLineSize {
			return "", errLineTooLong
		}
		sb.Write(chunk)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				return strings.TrimRight(sb.String(), "\r"), nil
			}
			return "", err
		}
		return strings.TrimRight(sb.String(), "\r\n"), nil
	}
}
