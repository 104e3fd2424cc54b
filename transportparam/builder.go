package transportparam

import "github.com/xtls/quicaccept/internal/qerr"

// Builder constructs an immutable TransportParameters value, rejecting at
// Build time any server-only field set on a client-role builder. This
// replaces a mutable setter-based record with default sentinel values: the
// zero Builder is client-role by default, and every setter returns the
// receiver for chaining.
type Builder struct {
	role Role
	p    TransportParameters
}

// NewBuilder starts building a TransportParameters for the given role.
func NewBuilder(role Role) *Builder {
	return &Builder{role: role}
}

func (b *Builder) InitialSourceConnectionID(cid []byte) *Builder {
	b.p.InitialSourceConnectionID = cid
	return b
}

func (b *Builder) MaxIdleTimeout(ms uint64) *Builder {
	b.p.MaxIdleTimeoutMS = ms
	return b
}

func (b *Builder) MaxUDPPayloadSize(v uint64) *Builder {
	b.p.MaxUDPPayloadSize = Some(v)
	return b
}

func (b *Builder) InitialMaxData(v uint64) *Builder {
	b.p.InitialMaxData = v
	return b
}

func (b *Builder) InitialMaxStreamDataBidiLocal(v uint64) *Builder {
	b.p.InitialMaxStreamDataBidiLocal = v
	return b
}

func (b *Builder) InitialMaxStreamDataBidiRemote(v uint64) *Builder {
	b.p.InitialMaxStreamDataBidiRemote = v
	return b
}

func (b *Builder) InitialMaxStreamDataUni(v uint64) *Builder {
	b.p.InitialMaxStreamDataUni = v
	return b
}

func (b *Builder) InitialMaxStreamsBidi(v uint64) *Builder {
	b.p.InitialMaxStreamsBidi = v
	return b
}

func (b *Builder) InitialMaxStreamsUni(v uint64) *Builder {
	b.p.InitialMaxStreamsUni = v
	return b
}

func (b *Builder) AckDelayExponent(v uint64) *Builder {
	b.p.AckDelayExponent = Some(v)
	return b
}

func (b *Builder) MaxAckDelay(v uint64) *Builder {
	b.p.MaxAckDelay = Some(v)
	return b
}

func (b *Builder) DisableActiveMigration() *Builder {
	b.p.DisableActiveMigration = true
	return b
}

func (b *Builder) ActiveConnectionIDLimit(v uint64) *Builder {
	b.p.ActiveConnectionIDLimit = Some(v)
	return b
}

func (b *Builder) VersionInformation(v VersionInformation) *Builder {
	b.p.VersionInformation = &v
	return b
}

func (b *Builder) MaxDatagramFrameSize(v uint64) *Builder {
	b.p.MaxDatagramFrameSize = Some(v)
	return b
}

func (b *Builder) Discard(n int) *Builder {
	b.p.DiscardBytes = n
	return b
}

// OriginalDestinationConnectionID sets a server-only parameter; Build fails
// if the builder's role is not RoleServer.
func (b *Builder) OriginalDestinationConnectionID(cid []byte) *Builder {
	b.p.OriginalDestinationConnectionID = cid
	return b
}

func (b *Builder) StatelessResetToken(tok [16]byte) *Builder {
	b.p.StatelessResetToken = Some(tok)
	return b
}

func (b *Builder) PreferredAddress(pa PreferredAddress) *Builder {
	b.p.PreferredAddress = &pa
	return b
}

func (b *Builder) RetrySourceConnectionID(cid []byte) *Builder {
	b.p.RetrySourceConnectionID = cid
	return b
}

// Build validates role constraints and returns the immutable value.
func (b *Builder) Build() (*TransportParameters, error) {
	if b.role != RoleServer {
		if b.p.OriginalDestinationConnectionID != nil {
			return nil, qerr.New(qerr.TransportParameterError, "original_destination_connection_id is server-only")
		}
		if _, ok := b.p.StatelessResetToken.Get(); ok {
			return nil, qerr.New(qerr.TransportParameterError, "stateless_reset_token is server-only")
		}
		if b.p.PreferredAddress != nil {
			return nil, qerr.New(qerr.TransportParameterError, "preferred_address is server-only")
		}
		if b.p.RetrySourceConnectionID != nil {
			return nil, qerr.New(qerr.TransportParameterError, "retry_source_connection_id is server-only")
		}
	}
	if b.p.PreferredAddress != nil {
		pa := b.p.PreferredAddress
		if !pa.HasIPv4() && !pa.HasIPv6() {
			return nil, qerr.New(qerr.TransportParameterError, "preferred_address needs at least one of IPv4/IPv6")
		}
	}
	out := b.p
	return &out, nil
}
