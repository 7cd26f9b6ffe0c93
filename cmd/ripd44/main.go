// Command ripd44 listens for RIPv2 announcements from the AMPR mesh and
// maintains the matching IP-in-IP tunnels and kernel routes.
package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/syslog"
	"net/netip"
	"os"

	"github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"
	"github.com/spf13/pflag"

	"github.com/amprnet/ripd44"
	"github.com/amprnet/ripd44/ipmap"
	"github.com/amprnet/ripd44/sys"
)

// maxNum bounds numeric flag values, matching the historical limit on
// routing table and interface numbers.
const maxNum = 1 << 20

func main() {
	var (
		foreground = pflag.BoolP("foreground", "d", false, "log to stderr instead of syslog")
		table      = pflag.IntP("table", "T", ripd44.DefaultTable, "routing table to create routes in")
		bindTable  = pflag.IntP("bind-table", "B", 0, "mark to bind the receive socket with")
		accepts    = pflag.StringArrayP("accept", "A", nil, "prefix/cidr to accept (repeatable)")
		ignores    = pflag.StringArrayP("ignore", "I", nil, "prefix/cidr to ignore (repeatable)")
		statics    = pflag.UintSliceP("static", "s", nil, "reserve a static interface number (repeatable)")
		replay     = pflag.StringP("file", "f", "", "replay datagrams from a capture file")
	)
	pflag.Usage = usage
	pflag.Parse()
	if pflag.NArg() != 2 {
		usage()
		os.Exit(1)
	}

	log := logrus.New()
	if *foreground {
		log.SetLevel(logrus.DebugLevel)
	} else {
		hook, err := lsyslog.NewSyslogHook("", "", syslog.LOG_INFO|syslog.LOG_LOCAL0, "ripd44")
		if err != nil {
			log.WithError(err).Fatal("cannot connect to syslog")
		}
		log.AddHook(hook)
		log.SetOutput(io.Discard)
	}

	if *table < 0 || *table > maxNum {
		log.Fatalf("routing table out of range: %d", *table)
	}
	for _, n := range *statics {
		if n > maxNum {
			log.Fatalf("static interface number out of range: %d", n)
		}
	}

	cfg := ripd44.Config{
		OuterLocal:       parseAddr(log, pflag.Arg(0)),
		InnerLocal:       parseAddr(log, pflag.Arg(1)),
		Table:            *table,
		StaticInterfaces: *statics,
	}
	for _, s := range *accepts {
		cfg.Accept = append(cfg.Accept, parsePrefix(log, s))
	}
	for _, s := range *ignores {
		cfg.Ignore = append(cfg.Ignore, parsePrefix(log, s))
	}

	system, err := sys.New()
	if err != nil {
		log.WithError(err).Fatal("cannot reach the kernel")
	}
	if err := system.Init(*table); err != nil {
		log.WithError(err).Fatal("system setup failed")
	}

	var src ripd44.Source
	if *replay != "" {
		r, err := sys.OpenReplay(*replay)
		if err != nil {
			log.WithError(err).Fatal("cannot open replay file")
		}
		defer r.Close()
		src = r
	} else {
		s, err := sys.ListenRIP(ripd44.RIPGroup, ripd44.RIPPort, *bindTable)
		if err != nil {
			log.WithError(err).Fatal("cannot open RIP socket")
		}
		defer s.Close()
		src = s
	}

	engine := ripd44.NewEngine(cfg, system, log)
	if err := engine.Run(src); err != nil {
		log.WithError(err).Fatal("ripd44 exiting")
	}
}

// parseAddr parses a dotted-quad IPv4 address into host order.
func parseAddr(log *logrus.Logger, s string) uint32 {
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is4() {
		log.Fatalf("bad IPv4 address: %s", s)
	}
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

// parsePrefix parses prefix/cidr notation into a host-order prefix,
// dropping any bits beyond the prefix length.
func parsePrefix(log *logrus.Logger, s string) ipmap.Prefix {
	p, err := netip.ParsePrefix(s)
	if err != nil || !p.Addr().Is4() {
		log.Fatalf("bad route (use CIDR): %s", s)
	}
	p = p.Masked()
	b := p.Addr().As4()
	return ipmap.Prefix{Addr: binary.BigEndian.Uint32(b[:]), Bits: p.Bits()}
}

func usage() {
	fmt.Fprintf(os.Stderr,
		"Usage: %s [-d] [-T rtable] [-B rtable] [-A prefix/cidr] [-I prefix/cidr] [-s ifnum] [-f file] <local-outer-ip> <local-inner-ip>\n",
		os.Args[0])
	pflag.PrintDefaults()
}
