// Package sys drives the operating system pieces of the tunnel mesh:
// IP-in-IP interface creation and teardown, kernel route maintenance,
// and the RIP datagram sources. The engine talks to it only through the
// System interface so tests can substitute a recorder.
package sys

import "errors"

// ErrNotFound reports that the kernel has no object matching the
// request, e.g. changing a route it never saw. The engine retries such
// route changes as a delete followed by an add.
var ErrNotFound = errors.New("sys: not found")

// A Tunnel describes one IP-in-IP interface to create. All addresses
// are host-order IPv4.
type Tunnel struct {
	Name        string
	OuterLocal  uint32
	OuterRemote uint32
	InnerLocal  uint32
	InnerRemote uint32
}

// A Route describes one kernel route destination as a host-order
// network address and prefix length. The output interface and routing
// table are passed alongside.
type Route struct {
	Network uint32
	Bits    int
}

// System is the narrow boundary between the reconciliation engine and
// the kernel.
type System interface {
	// Init performs one-time setup for the given routing table.
	Init(table int) error

	// TunnelUp creates, configures and brings up an IP-in-IP
	// interface, returning its interface index.
	TunnelUp(t Tunnel, table int) (int, error)

	// TunnelDown destroys the named interface.
	TunnelDown(name string) error

	// RouteAdd installs a new route through the interface.
	RouteAdd(r Route, ifindex, table int) error

	// RouteChange repoints an existing route at the interface. A
	// route unknown to the kernel reports ErrNotFound.
	RouteChange(r Route, ifindex, table int) error

	// RouteRemove deletes the route.
	RouteRemove(r Route, table int) error
}
