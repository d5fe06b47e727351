//go:build linux || darwin

package tcpserver

import (
	"log/slog"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// backlogHonored reports whether listenTCP passes Options.Backlog to listen(2).
const backlogHonored = true

// setsockoptInt is replaced in tests.
var setsockoptInt = unix.SetsockoptInt

// listenTCP opens a TCP listening socket with an explicit backlog. net.Listen
// always uses the kernel's somaxconn, so the socket is built by hand and then
// handed to the runtime poller through net.FileListener.
func listenTCP(address string, backlog int, logger *slog.Logger) (net.Listener, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, err
	}

	family, sa := sockaddr(addr)

	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)

	if err := setsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("setsockopt", err)
	}
	if family == unix.AF_INET6 && addr.IP.IsUnspecified() {
		// Wildcard IPv6 listeners accept IPv4 too, as net.Listen does.
		if err := setsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0); err != nil {
			logger.Debug("IPV6_V6ONLY not cleared, listener is IPv6 only",
				"addr", address,
				"error", os.NewSyscallError("setsockopt", err),
			)
		}
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}

	// FileListener dups the descriptor; the original is closed with f.
	f := os.NewFile(uintptr(fd), "tcp:"+address)
	ln, err := net.FileListener(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	return ln, nil
}

// sockaddr converts a resolved TCP address into a socket family and address.
// An empty host binds the IPv4 wildcard.
func sockaddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); addr.IP == nil || ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return unix.AF_INET, sa
	}

	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	if addr.Zone != "" {
		if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return unix.AF_INET6, sa
}
