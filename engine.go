// Package ripd44 maintains the AMPR (44/8) IP-in-IP tunnel mesh from
// RIPv2 announcements.
//
// The engine is receive-only: it listens for authenticated RIP
// datagrams, creates an encapsulation tunnel per distinct gateway,
// installs kernel routes through those tunnels, refreshes route
// expirations on every announcement, and tears tunnels down once no
// route references them.
package ripd44

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amprnet/ripd44/bitvec"
	"github.com/amprnet/ripd44/ipmap"
	"github.com/amprnet/ripd44/sys"
)

const (
	// DefaultTable is the routing table tunnel routes are created in.
	DefaultTable = 44

	// DefaultTimeout is how long a route lives without a refreshing
	// announcement. It is much greater than the interval between RIP
	// broadcasts.
	DefaultTimeout = 7 * 24 * time.Hour

	// DefaultPassword is the well-known plaintext password spoken on
	// the AMPR mesh.
	DefaultPassword = "pLaInTeXtpAsSwD"
)

// A Policy decides whether announcements under a prefix are accepted.
type Policy uint8

const (
	PolicyIgnore Policy = iota
	PolicyAccept
)

// A Source yields one datagram per call, either from the RIP multicast
// socket or from a replay file.
type Source interface {
	ReadDatagram(buf []byte) (int, error)
}

// Config carries the engine's startup parameters.
type Config struct {
	// OuterLocal is the local endpoint of every tunnel's outer
	// (encapsulating) header.
	OuterLocal uint32

	// InnerLocal is the local address numbered on the tunnel
	// interfaces themselves.
	InnerLocal uint32

	// Table is the routing table routes and tunnels are created in.
	// Zero means DefaultTable.
	Table int

	// Password authenticates incoming datagrams. Empty means
	// DefaultPassword.
	Password string

	// Timeout is the route expiration interval. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// Accept and Ignore seed the acceptance trie. With neither set,
	// every announcement is accepted.
	Accept []ipmap.Prefix
	Ignore []ipmap.Prefix

	// StaticInterfaces are gif numbers reserved outside the engine's
	// control; they are never allocated and never torn down.
	StaticInterfaces []uint
}

// An Engine owns the route and tunnel tables and reconciles them
// against incoming RIP responses. It is single-threaded: one datagram
// is fully processed before the next is read.
type Engine struct {
	cfg Config
	sys sys.System
	log logrus.FieldLogger
	now func() time.Time

	routes     *ipmap.Map[*Route]
	tunnels    *ipmap.Map[*Tunnel]
	acceptable *ipmap.Map[Policy]

	interfaces       bitvec.Vector
	staticInterfaces bitvec.Vector
}

// NewEngine builds an engine from cfg, driving the OS through system.
func NewEngine(cfg Config, system sys.System, log logrus.FieldLogger) *Engine {
	if cfg.Table == 0 {
		cfg.Table = DefaultTable
	}
	if cfg.Password == "" {
		cfg.Password = DefaultPassword
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Engine{
		cfg:        cfg,
		sys:        system,
		log:        log,
		now:        time.Now,
		routes:     ipmap.New[*Route](),
		tunnels:    ipmap.New[*Tunnel](),
		acceptable: ipmap.New[Policy](),
	}
	for _, p := range cfg.Accept {
		e.acceptable.Insert(p.Addr, p.Bits, PolicyAccept)
	}
	for _, p := range cfg.Ignore {
		e.acceptable.Insert(p.Addr, p.Bits, PolicyIgnore)
	}
	if len(cfg.Accept) == 0 && len(cfg.Ignore) == 0 {
		e.acceptable.Insert(0, 0, PolicyAccept)
	}
	for _, n := range cfg.StaticInterfaces {
		e.interfaces.Set(n)
		e.staticInterfaces.Set(n)
	}
	return e
}

// Run reads datagrams from src until it is exhausted, reconciling after
// each one. A source returning io.EOF (a replay file) ends the loop
// without error.
func (e *Engine) Run(src Source) error {
	buf := make([]byte, 65535)
	for {
		n, err := src.ReadDatagram(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading datagram: %w", err)
		}
		if err := e.HandleDatagram(buf[:n]); err != nil {
			return err
		}
	}
}

// HandleDatagram runs one pass of the reconciliation loop: parse,
// authenticate, process every response entry, then sweep expired
// routes. Malformed or unauthenticated datagrams are logged and
// dropped; only OS-level tunnel failures propagate.
func (e *Engine) HandleDatagram(b []byte) error {
	pkt, err := ParsePacket(b)
	if err != nil {
		e.log.WithError(err).Error("packet parse error")
		return nil
	}
	if err := pkt.VerifyAuth(e.cfg.Password); err != nil {
		e.log.WithError(err).Error("packet authentication failed")
		return nil
	}
	now := e.now()
	for k := 0; k < pkt.NumResponses(); k++ {
		resp, err := pkt.Response(k)
		if err != nil {
			e.log.WithError(err).WithField("index", k).Warn("bad response entry")
			continue
		}
		if err := e.processResponse(resp, now); err != nil {
			return err
		}
	}
	return e.sweepExpired(now)
}

// processResponse reconciles one announcement: create or reuse the
// gateway's tunnel, create or move the announced route, and refresh its
// expiration.
func (e *Engine) processResponse(r Response, now time.Time) error {
	cidr := NetmaskBits(r.Netmask)
	if r.IPAddr&^r.Netmask != 0 {
		e.log.WithField("route", prefixString(r.IPAddr, cidr)).
			Error("route has more bits than netmask")
		r.IPAddr &= r.Netmask
	}
	if r.NextHop == e.cfg.OuterLocal {
		e.log.WithField("route", prefixString(r.IPAddr, cidr)).
			Info("skipping route to local address")
		return nil
	}
	if r.NextHop&r.Netmask == r.IPAddr {
		e.log.WithFields(logrus.Fields{
			"route":   prefixString(r.IPAddr, cidr),
			"gateway": ipString(r.NextHop),
		}).Info("skipping gateway inside of subnet")
		return nil
	}
	if policy, _ := e.acceptable.Nearest(r.IPAddr, cidr); policy != PolicyAccept {
		e.log.WithField("route", prefixString(r.IPAddr, cidr)).
			Info("skipping ignored route")
		return nil
	}

	tunnel, ok := e.tunnels.Find(r.NextHop, hostBits)
	if !ok {
		tunnel = &Tunnel{
			OuterLocal:  e.cfg.OuterLocal,
			OuterRemote: r.NextHop,
			InnerLocal:  e.cfg.InnerLocal,
			InnerRemote: r.IPAddr,
		}
		tunnel.allocIfname(&e.interfaces)
		ifindex, err := e.sys.TunnelUp(sys.Tunnel{
			Name:        tunnel.Name,
			OuterLocal:  tunnel.OuterLocal,
			OuterRemote: tunnel.OuterRemote,
			InnerLocal:  tunnel.InnerLocal,
			InnerRemote: tunnel.InnerRemote,
		}, e.cfg.Table)
		if err != nil {
			return fmt.Errorf("bringing up tunnel %s to %s: %w",
				tunnel.Name, ipString(tunnel.OuterRemote), err)
		}
		tunnel.IfIndex = ifindex
		e.tunnels.Insert(r.NextHop, hostBits, tunnel)
		e.log.WithFields(logrus.Fields{
			"tunnel":  tunnel.Name,
			"gateway": ipString(r.NextHop),
		}).Info("created tunnel")
	}

	route, ok := e.routes.Find(r.IPAddr, cidr)
	if !ok {
		route = &Route{
			Network: r.IPAddr,
			Netmask: r.Netmask,
			Gateway: r.NextHop,
		}
		e.routes.Insert(route.Network, cidr, route)
		e.log.WithField("route", prefixString(r.IPAddr, cidr)).Info("added route")
	}

	// The route is new or moved to a different tunnel.
	if route.tunnel != tunnel {
		if route.tunnel == nil {
			e.installRoute(route, tunnel, cidr)
		} else {
			e.moveRoute(route, tunnel, cidr)
		}
		old := route.tunnel
		tunnel.unlink(route)
		old.unlink(route)
		if err := e.collapse(old); err != nil {
			return err
		}
		tunnel.link(route)
	}
	route.Expires = now.Add(e.cfg.Timeout)
	e.log.WithFields(logrus.Fields{
		"route":   prefixString(r.IPAddr, cidr),
		"gateway": ipString(r.NextHop),
	}).Debug("RIPv2 response")
	return nil
}

// installRoute writes a brand-new kernel route through tunnel.
func (e *Engine) installRoute(route *Route, tunnel *Tunnel, cidr int) {
	r := sys.Route{Network: route.Network, Bits: cidr}
	if err := e.sys.RouteAdd(r, tunnel.IfIndex, e.cfg.Table); err != nil {
		e.log.WithError(err).WithField("route", prefixString(route.Network, cidr)).
			Error("route add failed")
	}
}

// moveRoute repoints an installed kernel route at tunnel. If the kernel
// has lost the route, fall back to delete and re-add.
func (e *Engine) moveRoute(route *Route, tunnel *Tunnel, cidr int) {
	r := sys.Route{Network: route.Network, Bits: cidr}
	err := e.sys.RouteChange(r, tunnel.IfIndex, e.cfg.Table)
	if errors.Is(err, sys.ErrNotFound) {
		if err := e.sys.RouteRemove(r, e.cfg.Table); err != nil && !errors.Is(err, sys.ErrNotFound) {
			e.log.WithError(err).WithField("route", prefixString(route.Network, cidr)).
				Error("route remove failed")
		}
		err = e.sys.RouteAdd(r, tunnel.IfIndex, e.cfg.Table)
	}
	if err != nil {
		e.log.WithError(err).WithField("route", prefixString(route.Network, cidr)).
			Error("route change failed")
	}
}

// sweepExpired removes every route whose expiration has passed,
// collapsing tunnels left without references. Collection and deletion
// are separate passes so the route trie is never mutated mid-walk.
func (e *Engine) sweepExpired(now time.Time) error {
	type expiredRoute struct {
		p     ipmap.Prefix
		route *Route
	}
	var expired []expiredRoute
	for p, route := range e.routes.All(ipmap.InOrder) {
		if !route.Expires.After(now) {
			expired = append(expired, expiredRoute{p, route})
		}
	}
	for _, ex := range expired {
		p, route := ex.p, ex.route
		removed, ok := e.routes.Remove(p.Addr, p.Bits)
		if !ok || removed != route {
			e.log.WithField("route", prefixString(p.Addr, p.Bits)).
				Warn("expired route vanished from table")
			continue
		}
		tunnel := route.tunnel
		tunnel.unlink(route)
		r := sys.Route{Network: route.Network, Bits: p.Bits}
		if err := e.sys.RouteRemove(r, e.cfg.Table); err != nil {
			e.log.WithError(err).WithField("route", prefixString(p.Addr, p.Bits)).
				Error("route remove failed")
		}
		e.log.WithField("route", prefixString(p.Addr, p.Bits)).Info("expired route")
		if err := e.collapse(tunnel); err != nil {
			return err
		}
	}
	return nil
}

// collapse tears tunnel down once nothing references it. Static
// interface numbers stay reserved in the bitmap.
func (e *Engine) collapse(tunnel *Tunnel) error {
	if tunnel == nil || tunnel.refs > 0 {
		return nil
	}
	removed, ok := e.tunnels.Remove(tunnel.OuterRemote, hostBits)
	if !ok || removed != tunnel {
		e.log.WithField("tunnel", tunnel.Name).Warn("tunnel missing from table")
	}
	if err := e.sys.TunnelDown(tunnel.Name); err != nil {
		return fmt.Errorf("tearing down tunnel %s: %w", tunnel.Name, err)
	}
	if !e.staticInterfaces.Test(tunnel.Num) {
		e.interfaces.Clear(tunnel.Num)
	}
	e.log.WithField("tunnel", tunnel.Name).Info("removed tunnel")
	return nil
}
