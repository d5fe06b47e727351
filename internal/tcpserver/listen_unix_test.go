//go:build linux || darwin

package tcpserver

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

func TestListenTCP_DualStackFailureLogged(t *testing.T) {
	orig := setsockoptInt
	t.Cleanup(func() { setsockoptInt = orig })
	setsockoptInt = func(fd, level, opt, value int) error {
		if level == unix.IPPROTO_IPV6 && opt == unix.IPV6_V6ONLY {
			return unix.ENOPROTOOPT
		}
		return orig(fd, level, opt, value)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	srv := New(Options{}, logger)
	if err := srv.OnConnect(noopHandler()); err != nil {
		t.Fatalf("OnConnect() error: %v", err)
	}
	if err := srv.Start("[::]:0"); err != nil {
		t.Skipf("IPv6 wildcard not available: %v", err)
	}
	srv.Stop()

	out := buf.String()
	if !strings.Contains(out, "IPV6_V6ONLY not cleared") {
		t.Errorf("log output missing dual-stack failure, got: %s", out)
	}
	if !strings.Contains(out, "level=DEBUG") {
		t.Errorf("dual-stack failure not logged at DEBUG, got: %s", out)
	}
}

func TestListenTCP_IPv4WildcardSkipsDualStack(t *testing.T) {
	orig := setsockoptInt
	t.Cleanup(func() { setsockoptInt = orig })
	var v6only bool
	setsockoptInt = func(fd, level, opt, value int) error {
		if level == unix.IPPROTO_IPV6 && opt == unix.IPV6_V6ONLY {
			v6only = true
		}
		return orig(fd, level, opt, value)
	}

	ln, err := listenTCP(":0", DefaultBacklog, discardLogger())
	if err != nil {
		t.Fatalf("listenTCP() error: %v", err)
	}
	ln.Close()

	if v6only {
		t.Error("IPV6_V6ONLY set on an IPv4 socket")
	}
}
