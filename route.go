package ripd44

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/amprnet/ripd44/bitvec"
)

// hostBits is the prefix length of a single host address.
const hostBits = 32

// A Route is one installed prefix-to-tunnel binding. Network is kept
// canonical: no bits set outside the netmask.
type Route struct {
	Network uint32
	Netmask uint32
	Gateway uint32
	Expires time.Time

	next   *Route
	tunnel *Tunnel
}

// A Tunnel is one IP-in-IP encapsulation interface to a remote
// endpoint. Routes that point through it are kept on a singly linked
// list; refs always equals the list length.
type Tunnel struct {
	OuterLocal  uint32
	OuterRemote uint32
	InnerLocal  uint32
	InnerRemote uint32

	Name    string
	Num     uint
	IfIndex int

	routes *Route
	refs   int
}

// link attaches route to the head of the tunnel's route list and points
// the route's gateway at the tunnel's inner endpoint.
func (t *Tunnel) link(route *Route) {
	route.next = t.routes
	t.routes = route
	route.tunnel = t
	route.Gateway = t.InnerRemote
	t.refs++
}

// unlink detaches route from the tunnel's route list. Detaching from a
// nil tunnel or a tunnel that does not hold the route is a no-op.
func (t *Tunnel) unlink(route *Route) {
	if t == nil {
		return
	}
	var prev *Route
	for r := t.routes; r != nil; prev, r = r, r.next {
		if r.Network == route.Network && r.Netmask == route.Netmask {
			if prev == nil {
				t.routes = r.next
			} else {
				prev.next = r.next
			}
			route.Gateway = 0
			t.refs--
			return
		}
	}
}

// allocIfname assigns the tunnel the lowest free interface number from
// the bitmap and derives its gif name.
func (t *Tunnel) allocIfname(interfaces *bitvec.Vector) {
	num := interfaces.NextClear()
	t.Num = num
	t.Name = fmt.Sprintf("gif%d", num)
	interfaces.Set(num)
}

// ipString formats a host-order IPv4 address in dotted quad form.
func ipString(a uint32) string {
	return netip.AddrFrom4([4]byte{byte(a >> 24), byte(a >> 16), byte(a >> 8), byte(a)}).String()
}

// prefixString formats a host-order network and prefix length in CIDR
// form.
func prefixString(addr uint32, bits int) string {
	return fmt.Sprintf("%s/%d", ipString(addr), bits)
}
