package sys

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/net/ipv4"

	"github.com/amprnet/ripd44/internal/unix"
)

// A Socket reads RIP datagrams from the multicast UDP socket.
type Socket struct {
	pc *ipv4.PacketConn
}

// ListenRIP binds a UDP socket on port, joins the RIP multicast group
// on the default interface, and returns it as a datagram source. A
// nonzero mark is applied as SO_MARK so policy routing can classify the
// daemon's socket.
func ListenRIP(group string, port, mark int) (*Socket, error) {
	g := net.ParseIP(group)
	if g == nil {
		return nil, fmt.Errorf("bad multicast group %q", group)
	}
	lc := net.ListenConfig{Control: sockopts(mark)}
	c, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("binding RIP socket: %w", err)
	}
	pc := ipv4.NewPacketConn(c)
	if err := pc.JoinGroup(nil, &net.UDPAddr{IP: g}); err != nil {
		c.Close()
		return nil, fmt.Errorf("joining group %s: %w", group, err)
	}
	return &Socket{pc: pc}, nil
}

// ReadDatagram blocks for the next datagram on the socket.
func (s *Socket) ReadDatagram(buf []byte) (int, error) {
	n, _, _, err := s.pc.ReadFrom(buf)
	return n, err
}

// Close closes the underlying socket.
func (s *Socket) Close() error {
	return s.pc.Close()
}

// sockopts sets SO_REUSEADDR and, when nonzero, SO_MARK before bind.
func sockopts(mark int) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			if serr == nil && mark != 0 {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_MARK, mark)
			}
		})
		if err != nil {
			return err
		}
		return serr
	}
}
