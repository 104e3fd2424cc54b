package transportparam

import "net/netip"

// Role identifies which side of the handshake a TransportParameters value
// was (or will be) sent by. Several parameters are legal only from a
// server; Marshal and Unmarshal both enforce this.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// PreferredAddress lets a server suggest an alternate address/port pair
// (and connection id) for the client to migrate to after the handshake.
// At least one of IPv4 or IPv6 must be present.
type PreferredAddress struct {
	IPv4                netip.AddrPort // zero value means "not present"
	IPv6                netip.AddrPort
	ConnectionID        []byte
	StatelessResetToken [16]byte
}

// HasIPv4 reports whether an IPv4 candidate address is present.
func (p PreferredAddress) HasIPv4() bool { return p.IPv4.IsValid() && p.IPv4.Addr().Is4() }

// HasIPv6 reports whether an IPv6 candidate address is present.
func (p PreferredAddress) HasIPv6() bool { return p.IPv6.IsValid() && p.IPv6.Addr().Is6() }

// VersionInformation carries the chosen QUIC version plus the set of other
// versions the sender is willing to speak (RFC 9368). This codec only
// parses and emits the field; no version-negotiation policy is attached.
type VersionInformation struct {
	Chosen uint32
	Others []uint32
}

// TransportParameters is the semantic record of one side's transport
// parameters. Every field the protocol defines a meaningful default for is
// represented as an Optional so callers can distinguish "peer said so"
// from "peer said nothing, default applies".
type TransportParameters struct {
	OriginalDestinationConnectionID []byte // server-only
	MaxIdleTimeoutMS                uint64
	StatelessResetToken             Optional[[16]byte] // server-only
	MaxUDPPayloadSize                Optional[uint64]
	InitialMaxData                   uint64
	InitialMaxStreamDataBidiLocal     uint64
	InitialMaxStreamDataBidiRemote    uint64
	InitialMaxStreamDataUni           uint64
	InitialMaxStreamsBidi             uint64
	InitialMaxStreamsUni              uint64
	AckDelayExponent                  Optional[uint64]
	MaxAckDelay                       Optional[uint64]
	DisableActiveMigration            bool
	PreferredAddress                  *PreferredAddress // server-only
	ActiveConnectionIDLimit           Optional[uint64]
	InitialSourceConnectionID         []byte
	RetrySourceConnectionID           []byte // server-only
	VersionInformation                *VersionInformation
	MaxDatagramFrameSize              Optional[uint64]

	// DiscardBytes, if non-zero, emits the GREASE-style "discard" filler
	// parameter with this many zero value bytes.
	DiscardBytes int
}

// Default values applied when the corresponding Optional is unset.
const (
	DefaultAckDelayExponent       = 3
	DefaultMaxAckDelayMS          = 25
	DefaultActiveConnectionIDLimit = 2
	DefaultMaxUDPPayloadSize      = 65527
	DefaultMaxDatagramFrameSize   = 0
)

// AckDelayExponentOrDefault returns the effective ack-delay exponent.
func (p *TransportParameters) AckDelayExponentOrDefault() uint64 {
	return p.AckDelayExponent.OrDefault(DefaultAckDelayExponent)
}

// MaxAckDelayOrDefault returns the effective max ack delay, in milliseconds.
func (p *TransportParameters) MaxAckDelayOrDefault() uint64 {
	return p.MaxAckDelay.OrDefault(DefaultMaxAckDelayMS)
}

// ActiveConnectionIDLimitOrDefault returns the effective connection-id limit.
func (p *TransportParameters) ActiveConnectionIDLimitOrDefault() uint64 {
	return p.ActiveConnectionIDLimit.OrDefault(DefaultActiveConnectionIDLimit)
}

// MaxUDPPayloadSizeOrDefault returns the effective maximum UDP payload size.
func (p *TransportParameters) MaxUDPPayloadSizeOrDefault() uint64 {
	return p.MaxUDPPayloadSize.OrDefault(DefaultMaxUDPPayloadSize)
}
