package sys

import (
	"fmt"

	"github.com/mdlayher/netlink"

	"github.com/amprnet/ripd44/internal/unix"
)

// RouteAdd installs a new unicast route for r through the interface.
func (s *system) RouteAdd(r Route, ifindex, table int) error {
	b, err := routeMessage(r, ifindex, table)
	if err != nil {
		return err
	}
	_, err = s.c.execute(unix.RTM_NEWROUTE,
		netlink.Request|netlink.Create|netlink.Excl|netlink.Acknowledge, b)
	if err != nil {
		return fmt.Errorf("adding route %s/%d: %w", addrString(r.Network), r.Bits, err)
	}
	return nil
}

// RouteChange replaces the installed route for r. A destination the
// kernel does not know reports ErrNotFound.
func (s *system) RouteChange(r Route, ifindex, table int) error {
	b, err := routeMessage(r, ifindex, table)
	if err != nil {
		return err
	}
	_, err = s.c.execute(unix.RTM_NEWROUTE,
		netlink.Request|netlink.Replace|netlink.Acknowledge, b)
	if err != nil {
		return fmt.Errorf("changing route %s/%d: %w", addrString(r.Network), r.Bits, notFound(err))
	}
	return nil
}

// RouteRemove deletes the route for r. The output interface is left
// out: the destination alone identifies the route, and its tunnel may
// already be gone.
func (s *system) RouteRemove(r Route, table int) error {
	b, err := routeMessage(r, 0, table)
	if err != nil {
		return err
	}
	_, err = s.c.execute(unix.RTM_DELROUTE,
		netlink.Request|netlink.Acknowledge, b)
	if err != nil {
		return fmt.Errorf("removing route %s/%d: %w", addrString(r.Network), r.Bits, notFound(err))
	}
	return nil
}

// routeMessage marshals an rtmsg plus attributes for r. Tables beyond
// the one-byte rtmsg field are carried in RTA_TABLE.
func routeMessage(r Route, ifindex, table int) ([]byte, error) {
	b := make([]byte, unix.SizeofRtMsg)
	b[0] = unix.AF_INET
	b[1] = uint8(r.Bits)
	b[5] = unix.RTPROT_BOOT
	b[6] = unix.RT_SCOPE_LINK
	b[7] = unix.RTN_UNICAST

	ae := netlink.NewAttributeEncoder()
	ae.Bytes(unix.RTA_DST, be32(r.Network))
	if ifindex != 0 {
		ae.Uint32(unix.RTA_OIF, uint32(ifindex))
	}
	if table < 256 {
		b[4] = uint8(table)
	} else {
		b[4] = unix.RT_TABLE_UNSPEC
		ae.Uint32(unix.RTA_TABLE, uint32(table))
	}
	a, err := ae.Encode()
	if err != nil {
		return nil, err
	}
	return append(b, a...), nil
}
