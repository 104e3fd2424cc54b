// Package amplification tracks, per remote address, the inbound byte
// count needed to enforce RFC 9000 §8.1's anti-amplification limit: before
// a client's address is validated, a server may send at most three times
// the number of bytes it has received from that address.
package amplification

import (
	"net/netip"
	"sync"

	"github.com/xtls/quicaccept/internal/netaddr"
)

// Filter is a datagram-ingress filter. On(remote, len(datagram)) must be
// called exactly once per inbound datagram, regardless of whether the
// datagram's packets later turn out to be malformed; every byte from the
// client's claimed address counts toward the budget, valid or not.
type Filter struct {
	ratio int

	mu        sync.Mutex
	bytes     map[netip.AddrPort]uint64
	sent      map[netip.AddrPort]uint64
	validated map[netip.AddrPort]bool
}

// New returns a Filter that grants ratio bytes of outbound budget per
// validated inbound byte (RFC 9000 §8.1 specifies ratio=3).
func New(ratio int) *Filter {
	if ratio <= 0 {
		ratio = 3
	}
	return &Filter{
		ratio:     ratio,
		bytes:     make(map[netip.AddrPort]uint64),
		sent:      make(map[netip.AddrPort]uint64),
		validated: make(map[netip.AddrPort]bool),
	}
}

// On records n inbound bytes received from remote.
func (f *Filter) On(remote netip.AddrPort, n int) {
	key := netaddr.Canonical(remote)
	f.mu.Lock()
	f.bytes[key] += uint64(n)
	f.mu.Unlock()
}

// Budget returns the number of bytes the server may still send to remote
// before exceeding the anti-amplification limit. A validated address has
// no limit, reported as the maximum uint64 value.
func (f *Filter) Budget(remote netip.AddrPort) uint64 {
	key := netaddr.Canonical(remote)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.validated[key] {
		return ^uint64(0)
	}
	limit := f.bytes[key] * uint64(f.ratio)
	if f.sent[key] >= limit {
		return 0
	}
	return limit - f.sent[key]
}

// CanSend reports whether n more bytes may be sent to remote without
// exceeding the limit.
func (f *Filter) CanSend(remote netip.AddrPort, n int) bool {
	return f.Budget(remote) >= uint64(n)
}

// RecordSent charges n bytes against remote's outbound budget. Callers
// must have checked CanSend first, unless remote's address has already
// been validated.
func (f *Filter) RecordSent(remote netip.AddrPort, n int) {
	key := netaddr.Canonical(remote)
	f.mu.Lock()
	f.sent[key] += uint64(n)
	f.mu.Unlock()
}

// Validate marks remote's address as validated: once the client completes
// the handshake, or the server receives Handshake-level packets from it
// (RFC 9000 §8.1), the 3x cap no longer applies.
func (f *Filter) Validate(remote netip.AddrPort) {
	key := netaddr.Canonical(remote)
	f.mu.Lock()
	f.validated[key] = true
	f.mu.Unlock()
}

// Forget drops all accounting state for remote, e.g. once its candidate is
// promoted or evicted and no longer needs tracking under this filter.
func (f *Filter) Forget(remote netip.AddrPort) {
	key := netaddr.Canonical(remote)
	f.mu.Lock()
	delete(f.bytes, key)
	delete(f.sent, key)
	delete(f.validated, key)
	f.mu.Unlock()
}
