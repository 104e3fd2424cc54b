// Package candidate implements the pre-connection connection-candidate
// state machine: it accumulates CRYPTO bytes from one or more Initial
// packets belonging to the same (remote address, original DCID) pair
// until a complete ClientHello is available, enforces the frame-content
// and same-origin rules, and either promotes to a full connection or is
// dropped.
package candidate

import (
	"bytes"
	"net/netip"
	"sync"
	"time"

	"github.com/xtls/quicaccept/internal/clienthello"
	"github.com/xtls/quicaccept/internal/framescan"
	"github.com/xtls/quicaccept/internal/netaddr"
	"github.com/xtls/quicaccept/initial"
)

// minInitialDatagramSize is the minimum size (RFC 9000 §14.1) a datagram
// carrying a client's first Initial packet must be padded to.
const minInitialDatagramSize = 1200

// State is one point in the candidate's lifecycle.
type State int

const (
	StateEmpty State = iota
	StateBuffering
	StatePromoted
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateBuffering:
		return "BUFFERING"
	case StatePromoted:
		return "PROMOTED"
	case StateDropped:
		return "DROPPED"
	default:
		return "UNKNOWN"
	}
}

// PromotionInfo is everything a Promoter needs to construct the real
// connection object and resume processing exactly where the candidate
// left off.
type PromotionInfo struct {
	Remote         netip.AddrPort
	Version        uint32
	SCID           []byte
	DCID           []byte
	ClientHello    []byte
	InitialPackets [][]byte // raw wire bytes of every accepted Initial packet, arrival order
	Trailing       []byte   // bytes left over after the last accepted packet in the last datagram
}

// Promoter constructs (or declines to construct) a connection from a
// candidate that has reassembled a complete, validated ClientHello. It is
// injected at construction rather than the candidate reaching back into a
// shared factory, avoiding a cyclic dependency between the two.
type Promoter interface {
	Promote(info PromotionInfo) error
}

// Candidate is the per-DCID pre-connection state machine. All exported
// methods are safe for concurrent use; callers normally serialize access
// per candidate anyway (ordering guarantee), but the internal mutex makes
// that a performance choice rather than a correctness requirement.
type Candidate struct {
	mu sync.Mutex

	originalDCID []byte
	promoter     Promoter

	state State

	boundVersion bool
	version      uint32
	boundSCID    bool
	scid         []byte
	boundRemote  bool
	remote       netip.AddrPort

	acc            *cryptoAccumulator
	rawPackets     [][]byte
	sawBlocking    bool
	validatedBytes int
	trailing       []byte

	lastActivity time.Time
}

// New creates a candidate keyed on originalDCID, the destination
// connection id the client chose for its very first Initial packet.
func New(originalDCID []byte, promoter Promoter, now time.Time) *Candidate {
	return &Candidate{
		originalDCID: append([]byte(nil), originalDCID...),
		promoter:     promoter,
		state:        StateEmpty,
		acc:          newCryptoAccumulator(),
		lastActivity: now,
	}
}

// State returns the candidate's current lifecycle state.
func (c *Candidate) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastActivity returns the time of the most recent datagram this
// candidate processed (accepted or not), for the registry's idle-eviction
// sweep.
func (c *Candidate) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// IsTerminal reports whether the candidate has left the registry's active
// set (promoted or dropped).
func (c *Candidate) IsTerminal() bool {
	s := c.State()
	return s == StatePromoted || s == StateDropped
}

// OnDatagram processes one inbound UDP datagram destined for this
// candidate's DCID. Protocol-level problems never surface to the caller;
// they are silent drops per the pipeline's error-propagation policy.
func (c *Candidate) OnDatagram(datagram []byte, remote netip.AddrPort, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StatePromoted || c.state == StateDropped {
		return
	}

	if c.boundRemote && !netaddr.Same(remote, c.remote) {
		return
	}

	if c.state == StateEmpty && len(datagram) < minInitialDatagramSize {
		c.state = StateDropped
		return
	}

	c.lastActivity = now
	if !c.boundRemote {
		c.remote = remote
		c.boundRemote = true
	}

	accepted := false
	cur := datagram
	for len(cur) > 0 {
		if !initial.IsLongHeader(cur[0]) || !initial.IsInitialType(cur[0]) {
			break
		}

		header, err := initial.ParseLongHeader(cur)
		if err != nil {
			break
		}
		if !bytes.Equal(header.DCID, c.originalDCID) {
			break
		}

		payload, consumed, err := initial.Unseal(cur, c.originalDCID, header.Version)
		if err != nil {
			break
		}

		if c.boundVersion && header.Version != c.version {
			break
		}
		if c.boundSCID && !bytes.Equal(header.SCID, c.scid) {
			break
		}

		scan, err := framescan.Scan(payload)
		if err != nil {
			// A frame forbidden in an Initial packet: drop this packet
			// (and everything coalesced after it, since we can no longer
			// trust the datagram's structure) without touching state
			// accepted so far.
			break
		}

		if !c.boundVersion {
			c.version = header.Version
			c.boundVersion = true
		}
		if !c.boundSCID {
			c.scid = append([]byte(nil), header.SCID...)
			c.boundSCID = true
		}

		insertErr := false
		for _, chunk := range scan.Crypto {
			if err := c.acc.Insert(chunk.Offset, chunk.Data); err != nil {
				// Overlapping CRYPTO data that disagrees with what was
				// already buffered, or data reaching past the reassembly
				// bound: stop processing this datagram,
				// keeping whatever was already accepted.
				insertErr = true
				break
			}
		}
		if insertErr {
			cur = nil
			break
		}
		if scan.SawBlockingFrame {
			c.sawBlocking = true
		}

		c.rawPackets = append(c.rawPackets, append([]byte(nil), cur[:consumed]...))
		accepted = true
		cur = cur[consumed:]
	}

	c.trailing = append([]byte(nil), cur...)

	if accepted {
		c.validatedBytes += len(datagram)
		if c.state == StateEmpty {
			c.state = StateBuffering
		}
	}

	c.tryPromote()
}

// tryPromote attempts Step C of the admission pipeline: promote once a
// complete ClientHello is available, no accepted packet carried a
// promotion-blocking frame, and the candidate's cumulative validated
// datagram length meets the padding floor. Caller must hold c.mu.
func (c *Candidate) tryPromote() {
	if c.state != StateBuffering {
		return
	}
	prefix := c.acc.ContiguousPrefix()
	complete, _ := clienthello.Complete(prefix)
	if !complete {
		return
	}
	if c.sawBlocking {
		return
	}
	if c.validatedBytes < minInitialDatagramSize {
		return
	}

	info := PromotionInfo{
		Remote:         c.remote,
		Version:        c.version,
		SCID:           c.scid,
		DCID:           c.originalDCID,
		ClientHello:    prefix,
		InitialPackets: c.rawPackets,
		Trailing:       c.trailing,
	}

	if err := c.promoter.Promote(info); err != nil {
		c.state = StateDropped
		return
	}
	c.state = StatePromoted
}
