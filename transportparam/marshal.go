package transportparam

import (
	"encoding/binary"

	"github.com/xtls/quicaccept/internal/qerr"
	"github.com/xtls/quicaccept/varint"
)

// Marshal serialises p as the opaque payload of the quic_transport_parameters
// extension (RFC 9000 §18.2), enforcing role: a client-role Marshal refuses
// to emit server-only parameters even if the in-memory struct carries them,
// because a *TransportParameters can be shared and mutated in test code
// before a role is finally decided.
func Marshal(p *TransportParameters, role Role) ([]byte, error) {
	var buf []byte

	writeRaw := func(i id, value []byte) {
		buf = varint.Append(buf, uint64(i))
		buf = varint.Append(buf, uint64(len(value)))
		buf = append(buf, value...)
	}
	writeVarintParam := func(i id, v uint64) {
		valBuf := varint.Append(nil, v)
		writeRaw(i, valBuf)
	}
	writeEmptyParam := func(i id) {
		writeRaw(i, nil)
	}

	if role != RoleServer && p.OriginalDestinationConnectionID != nil {
		return nil, qerr.New(qerr.TransportParameterError, "client may not emit original_destination_connection_id")
	}
	if p.OriginalDestinationConnectionID != nil {
		writeRaw(idOriginalDestinationConnectionID, p.OriginalDestinationConnectionID)
	}

	if p.MaxIdleTimeoutMS != 0 {
		writeVarintParam(idMaxIdleTimeout, p.MaxIdleTimeoutMS)
	}

	if tok, ok := p.StatelessResetToken.Get(); ok {
		if role != RoleServer {
			return nil, qerr.New(qerr.TransportParameterError, "client may not emit stateless_reset_token")
		}
		writeRaw(idStatelessResetToken, tok[:])
	}

	if v, ok := p.MaxUDPPayloadSize.Get(); ok {
		writeVarintParam(idMaxUDPPayloadSize, v)
	}

	if p.InitialMaxData != 0 {
		writeVarintParam(idInitialMaxData, p.InitialMaxData)
	}
	if p.InitialMaxStreamDataBidiLocal != 0 {
		writeVarintParam(idInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal)
	}
	if p.InitialMaxStreamDataBidiRemote != 0 {
		writeVarintParam(idInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote)
	}
	if p.InitialMaxStreamDataUni != 0 {
		writeVarintParam(idInitialMaxStreamDataUni, p.InitialMaxStreamDataUni)
	}
	if p.InitialMaxStreamsBidi != 0 {
		writeVarintParam(idInitialMaxStreamsBidi, p.InitialMaxStreamsBidi)
	}
	if p.InitialMaxStreamsUni != 0 {
		writeVarintParam(idInitialMaxStreamsUni, p.InitialMaxStreamsUni)
	}
	if v, ok := p.AckDelayExponent.Get(); ok {
		writeVarintParam(idAckDelayExponent, v)
	}
	if v, ok := p.MaxAckDelay.Get(); ok {
		writeVarintParam(idMaxAckDelay, v)
	}
	if p.DisableActiveMigration {
		writeEmptyParam(idDisableActiveMigration)
	}

	if p.PreferredAddress != nil {
		if role != RoleServer {
			return nil, qerr.New(qerr.TransportParameterError, "client may not emit preferred_address")
		}
		pa := p.PreferredAddress
		if !pa.HasIPv4() && !pa.HasIPv6() {
			return nil, qerr.New(qerr.TransportParameterError, "preferred_address needs at least one of IPv4/IPv6")
		}
		value := make([]byte, 0, 4+2+16+2+1+len(pa.ConnectionID)+16)
		if pa.HasIPv4() {
			ip4 := pa.IPv4.Addr().As4()
			value = append(value, ip4[:]...)
			value = binary.BigEndian.AppendUint16(value, pa.IPv4.Port())
		} else {
			value = append(value, make([]byte, 4+2)...)
		}
		if pa.HasIPv6() {
			ip6 := pa.IPv6.Addr().As16()
			value = append(value, ip6[:]...)
			value = binary.BigEndian.AppendUint16(value, pa.IPv6.Port())
		} else {
			value = append(value, make([]byte, 16+2)...)
		}
		value = append(value, byte(len(pa.ConnectionID)))
		value = append(value, pa.ConnectionID...)
		value = append(value, pa.StatelessResetToken[:]...)
		writeRaw(idPreferredAddress, value)
	}

	if v, ok := p.ActiveConnectionIDLimit.Get(); ok {
		writeVarintParam(idActiveConnectionIDLimit, v)
	}

	writeRaw(idInitialSourceConnectionID, p.InitialSourceConnectionID)

	if p.RetrySourceConnectionID != nil {
		if role != RoleServer {
			return nil, qerr.New(qerr.TransportParameterError, "client may not emit retry_source_connection_id")
		}
		writeRaw(idRetrySourceConnectionID, p.RetrySourceConnectionID)
	}

	if p.VersionInformation != nil {
		value := binary.BigEndian.AppendUint32(nil, p.VersionInformation.Chosen)
		for _, v := range p.VersionInformation.Others {
			value = binary.BigEndian.AppendUint32(value, v)
		}
		writeRaw(idVersionInformation, value)
	}

	if v, ok := p.MaxDatagramFrameSize.Get(); ok {
		writeVarintParam(idMaxDatagramFrameSize, v)
	}

	if p.DiscardBytes > 0 {
		writeRaw(idDiscard, make([]byte, p.DiscardBytes))
	}

	return buf, nil
}
