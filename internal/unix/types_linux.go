//go:build linux
// +build linux

package unix

import (
	linux "golang.org/x/sys/unix"
)

const (
	AF_INET           = linux.AF_INET
	AF_UNSPEC         = linux.AF_UNSPEC
	NETLINK_ROUTE     = linux.NETLINK_ROUTE
	SizeofIfAddrmsg   = linux.SizeofIfAddrmsg
	SizeofIfInfomsg   = linux.SizeofIfInfomsg
	SizeofRtMsg       = linux.SizeofRtMsg
	RTM_NEWLINK       = linux.RTM_NEWLINK
	RTM_DELLINK       = linux.RTM_DELLINK
	RTM_NEWADDR       = linux.RTM_NEWADDR
	RTM_NEWROUTE      = linux.RTM_NEWROUTE
	RTM_DELROUTE      = linux.RTM_DELROUTE
	IFF_UP            = linux.IFF_UP
	IFF_POINTOPOINT   = linux.IFF_POINTOPOINT
	IFA_LOCAL         = linux.IFA_LOCAL
	IFA_ADDRESS       = linux.IFA_ADDRESS
	IFLA_IFNAME       = linux.IFLA_IFNAME
	IFLA_MTU          = linux.IFLA_MTU
	IFLA_LINKINFO     = linux.IFLA_LINKINFO
	IFLA_INFO_KIND    = linux.IFLA_INFO_KIND
	IFLA_INFO_DATA    = linux.IFLA_INFO_DATA
	IFLA_IPTUN_LOCAL  = linux.IFLA_IPTUN_LOCAL
	IFLA_IPTUN_REMOTE = linux.IFLA_IPTUN_REMOTE
	IFLA_IPTUN_TTL    = linux.IFLA_IPTUN_TTL
	RTA_DST           = linux.RTA_DST
	RTA_OIF           = linux.RTA_OIF
	RTA_TABLE         = linux.RTA_TABLE
	RTN_UNICAST       = linux.RTN_UNICAST
	RTPROT_BOOT       = linux.RTPROT_BOOT
	RT_SCOPE_LINK     = linux.RT_SCOPE_LINK
	RT_SCOPE_UNIVERSE = linux.RT_SCOPE_UNIVERSE
	RT_TABLE_MAIN     = linux.RT_TABLE_MAIN
	RT_TABLE_UNSPEC   = linux.RT_TABLE_UNSPEC
	RT_TABLE_MAX      = linux.RT_TABLE_MAX
	SOL_SOCKET        = linux.SOL_SOCKET
	SO_REUSEADDR      = linux.SO_REUSEADDR
	SO_MARK           = linux.SO_MARK
	ESRCH             = linux.ESRCH
	ENOENT            = linux.ENOENT
	ENODEV            = linux.ENODEV
	EEXIST            = linux.EEXIST
)

func SetsockoptInt(fd, level, opt, value int) error {
	return linux.SetsockoptInt(fd, level, opt, value)
}
