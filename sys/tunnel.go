package sys

import (
	"errors"
	"fmt"
	"net"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"

	"github.com/amprnet/ripd44/internal/unix"
)

// tunnelTTL is the outer-header TTL set on created ipip interfaces.
const tunnelTTL = 64

// New dials route netlink and returns the Linux System implementation.
func New() (System, error) {
	c, err := Dial(nil)
	if err != nil {
		return nil, fmt.Errorf("dialing route netlink: %w", err)
	}
	return &system{c: c}, nil
}

// system implements System over rtnetlink.
type system struct {
	c *Conn
}

// Init performs one-time setup. Linux routing tables spring into
// existence on first use, so there is nothing to create up front.
func (s *system) Init(table int) error {
	return nil
}

// TunnelUp creates an ipip interface with the tunnel's outer endpoints,
// numbers its inner point-to-point addresses, and brings it up.
func (s *system) TunnelUp(t Tunnel, table int) (int, error) {
	if err := s.linkAdd(t); err != nil {
		return 0, fmt.Errorf("creating link %s: %w", t.Name, err)
	}
	ifi, err := net.InterfaceByName(t.Name)
	if err != nil {
		return 0, fmt.Errorf("looking up link %s: %w", t.Name, err)
	}
	if err := s.addressAdd(t, ifi.Index); err != nil {
		return 0, fmt.Errorf("addressing link %s: %w", t.Name, err)
	}
	if err := s.linkUp(ifi.Index); err != nil {
		return 0, fmt.Errorf("bringing up link %s: %w", t.Name, err)
	}
	return ifi.Index, nil
}

// TunnelDown destroys the named interface.
func (s *system) TunnelDown(name string) error {
	b := newIfInfomsg(0, 0, 0)
	ae := netlink.NewAttributeEncoder()
	ae.String(unix.IFLA_IFNAME, name)
	a, err := ae.Encode()
	if err != nil {
		return err
	}
	_, err = s.c.execute(unix.RTM_DELLINK,
		netlink.Request|netlink.Acknowledge, append(b, a...))
	if err != nil {
		return fmt.Errorf("deleting link %s: %w", name, notFound(err))
	}
	return nil
}

// linkAdd sends the RTM_NEWLINK creating the ipip interface.
func (s *system) linkAdd(t Tunnel) error {
	b := newIfInfomsg(0, 0, 0)
	ae := netlink.NewAttributeEncoder()
	ae.String(unix.IFLA_IFNAME, t.Name)
	ae.Nested(unix.IFLA_LINKINFO, func(nae *netlink.AttributeEncoder) error {
		nae.String(unix.IFLA_INFO_KIND, "ipip")
		nae.Nested(unix.IFLA_INFO_DATA, func(dae *netlink.AttributeEncoder) error {
			dae.Bytes(unix.IFLA_IPTUN_LOCAL, be32(t.OuterLocal))
			dae.Bytes(unix.IFLA_IPTUN_REMOTE, be32(t.OuterRemote))
			dae.Uint8(unix.IFLA_IPTUN_TTL, tunnelTTL)
			return nil
		})
		return nil
	})
	a, err := ae.Encode()
	if err != nil {
		return err
	}
	_, err = s.c.execute(unix.RTM_NEWLINK,
		netlink.Request|netlink.Create|netlink.Excl|netlink.Acknowledge,
		append(b, a...))
	return err
}

// addressAdd numbers the tunnel with its inner local address and the
// inner remote as the point-to-point peer.
func (s *system) addressAdd(t Tunnel, ifindex int) error {
	b := make([]byte, unix.SizeofIfAddrmsg)
	b[0] = unix.AF_INET
	b[1] = 32
	b[3] = unix.RT_SCOPE_UNIVERSE
	nlenc.PutUint32(b[4:8], uint32(ifindex))

	ae := netlink.NewAttributeEncoder()
	ae.Bytes(unix.IFA_LOCAL, be32(t.InnerLocal))
	ae.Bytes(unix.IFA_ADDRESS, be32(t.InnerRemote))
	a, err := ae.Encode()
	if err != nil {
		return err
	}
	_, err = s.c.execute(unix.RTM_NEWADDR,
		netlink.Request|netlink.Create|netlink.Excl|netlink.Acknowledge,
		append(b, a...))
	return err
}

// linkUp marks the interface up and point-to-point.
func (s *system) linkUp(ifindex int) error {
	flags := uint32(unix.IFF_UP | unix.IFF_POINTOPOINT)
	b := newIfInfomsg(ifindex, flags, flags)
	_, err := s.c.execute(unix.RTM_NEWLINK,
		netlink.Request|netlink.Acknowledge, b)
	return err
}

// newIfInfomsg marshals an ifinfomsg with the given index, flags and
// change mask.
func newIfInfomsg(ifindex int, flags, change uint32) []byte {
	b := make([]byte, unix.SizeofIfInfomsg)
	b[0] = unix.AF_UNSPEC
	nlenc.PutUint32(b[4:8], uint32(ifindex))
	nlenc.PutUint32(b[8:12], flags)
	nlenc.PutUint32(b[12:16], change)
	return b
}

// be32 returns the network byte order representation of a host-order
// IPv4 address.
func be32(a uint32) []byte {
	return []byte{byte(a >> 24), byte(a >> 16), byte(a >> 8), byte(a)}
}

// addrString formats a host-order IPv4 address for error messages.
func addrString(a uint32) string {
	return net.IP(be32(a)).String()
}

// notFound maps the kernel's missing-object errnos onto ErrNotFound so
// callers can distinguish them with errors.Is.
func notFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ESRCH) || errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ENODEV) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
