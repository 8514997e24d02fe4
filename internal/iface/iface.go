// Package iface resolves a named network interface to the identifiers the
// ARP transport needs to build its outgoing frame template: kernel ifindex,
// bound IPv4 address, and hardware MAC.
package iface

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"github.com/gbonacini/arpchat/internal/frame"
	"github.com/gbonacini/arpchat/pkg/logger"
)

// ResolveError is returned for any interface lookup failure in Resolve.
type ResolveError struct {
	Iface  string
	Reason string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve interface %q: %s", e.Iface, e.Reason)
}

// Resolved carries the identifiers pulled from the kernel for one interface.
type Resolved struct {
	IfIndex  int
	LocalIP  frame.IpAddr
	LocalMAC frame.MacAddr
}

var log = logger.Get(logger.Iface)

// Resolve looks up ifName and returns its index, MAC and first bound IPv4
// address. It fails with ResolveError (wrapping UnknownInterface /
// NoAddress semantics from spec.md section 4.2) rather than a bare netlink
// error so callers can treat it uniformly as fatal init failure.
func Resolve(ifName string) (Resolved, error) {
	link, err := netlink.LinkByName(ifName)
	if err != nil {
		return Resolved{}, &ResolveError{Iface: ifName, Reason: "unknown interface: " + err.Error()}
	}

	attrs := link.Attrs()

	var mac frame.MacAddr
	hw := attrs.HardwareAddr
	if len(hw) != 6 {
		return Resolved{}, &ResolveError{Iface: ifName, Reason: fmt.Sprintf("unexpected hardware address length %d", len(hw))}
	}
	copy(mac[:], hw)

	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return Resolved{}, &ResolveError{Iface: ifName, Reason: "list addresses: " + err.Error()}
	}
	if len(addrs) == 0 {
		return Resolved{}, &ResolveError{Iface: ifName, Reason: "no IPv4 address bound"}
	}

	v4 := addrs[0].IP.To4()
	if v4 == nil {
		return Resolved{}, &ResolveError{Iface: ifName, Reason: "bound address is not IPv4"}
	}

	var ip frame.IpAddr
	copy(ip[:], v4)

	log.Info("resolved interface", "iface", ifName, "if_index", attrs.Index, "mac", net.HardwareAddr(mac[:]).String(), "ip", net.IP(ip[:]).String())

	return Resolved{
		IfIndex:  attrs.Index,
		LocalIP:  ip,
		LocalMAC: mac,
	}, nil
}
