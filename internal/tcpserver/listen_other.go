//go:build !linux && !darwin

package tcpserver

import (
	"context"
	"log/slog"
	"net"
)

// backlogHonored is false: the runtime picks the listen queue size here.
const backlogHonored = false

// listenTCP opens a TCP listener through the runtime. The backlog argument is
// ignored on this platform.
func listenTCP(address string, _ int, _ *slog.Logger) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(context.Background(), "tcp", address)
}
