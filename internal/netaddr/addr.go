// Package netaddr canonicalizes remote addresses for the candidate's
// same-origin check and the anti-amplification filter's per-address
// accounting, so that an IPv4 address observed once as a plain v4 address
// and once as an IPv4-mapped IPv6 address is recognized as the same peer.
package netaddr

import (
	"net"
	"net/netip"

	"go4.org/netipx"
)

// Canonical returns a normalized, comparable key for addr: IPv4-in-IPv6
// addresses are unmapped to plain IPv4, and the zone is dropped (QUIC
// candidates are not scoped to a link-local zone).
func Canonical(addr netip.AddrPort) netip.AddrPort {
	a := addr.Addr()
	if a.Is4In6() {
		a = a.Unmap()
	}
	a = a.WithZone("")
	return netip.AddrPortFrom(a, addr.Port())
}

// FromUDPAddr converts a *net.UDPAddr, as produced by net.ReadFromUDP, into
// a canonical netip.AddrPort.
func FromUDPAddr(addr *net.UDPAddr) (netip.AddrPort, bool) {
	ap, ok := netipx.FromStdAddr(addr.IP, addr.Port, addr.Zone)
	if !ok {
		return netip.AddrPort{}, false
	}
	return Canonical(ap), true
}

// Same reports whether two addresses are the same peer once canonicalized.
func Same(a, b netip.AddrPort) bool {
	return Canonical(a) == Canonical(b)
}
