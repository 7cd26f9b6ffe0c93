package sys

import (
	"github.com/mdlayher/netlink"

	"github.com/amprnet/ripd44/internal/unix"
)

// A Conn is a route netlink connection.
type Conn struct {
	c conn
}

var _ conn = &netlink.Conn{}

// A conn is a netlink connection, which can be swapped for tests.
type conn interface {
	Close() error
	Execute(m netlink.Message) ([]netlink.Message, error)
}

// Dial dials a route netlink connection. Config specifies optional
// configuration for the underlying netlink connection; nil means the
// default configuration.
func Dial(config *netlink.Config) (*Conn, error) {
	c, err := netlink.Dial(unix.NETLINK_ROUTE, config)
	if err != nil {
		return nil, err
	}
	return newConn(c), nil
}

// newConn is the internal constructor for Conn, used in tests.
func newConn(c conn) *Conn {
	return &Conn{c: c}
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.c.Close()
}

// execute sends one request with the given header type and flags and
// returns the kernel's replies.
func (c *Conn) execute(typ netlink.HeaderType, flags netlink.HeaderFlags, data []byte) ([]netlink.Message, error) {
	return c.c.Execute(netlink.Message{
		Header: netlink.Header{
			Type:  typ,
			Flags: flags,
		},
		Data: data,
	})
}
