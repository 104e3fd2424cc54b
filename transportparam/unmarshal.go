package transportparam

import (
	"encoding/binary"
	"net/netip"

	"github.com/xtls/quicaccept/internal/qerr"
	"github.com/xtls/quicaccept/varint"
)

const preferredAddressMinLen = 4 + 2 + 16 + 2 + 1 + 16

// Unmarshal parses the opaque payload of a quic_transport_parameters
// extension. senderRole identifies who produced data (a server receiving a
// ClientHello passes RoleClient): this rejects server-only parameters sent
// by a client, matching the role-aware emission rule in Marshal.
func Unmarshal(data []byte, senderRole Role) (*TransportParameters, error) {
	p := &TransportParameters{}
	seen := make(map[id]bool)

	buf := data
	for len(buf) > 0 {
		rawID, n, err := varint.Read(buf)
		if err != nil {
			return nil, qerr.Wrap(qerr.DecodeError, "transport parameter id", err)
		}
		buf = buf[n:]
		pid := id(rawID)

		length, n, err := varint.Read(buf)
		if err != nil {
			return nil, qerr.Wrap(qerr.DecodeError, "transport parameter length", err)
		}
		buf = buf[n:]

		if uint64(len(buf)) < length {
			return nil, qerr.New(qerr.DecodeError, "transport parameter value truncated")
		}
		value := buf[:length]
		buf = buf[length:]

		if seen[pid] {
			return nil, qerr.New(qerr.TransportParameterError, "duplicate transport parameter id "+pid.String())
		}
		seen[pid] = true

		if senderRole != RoleServer && pid.serverOnly() {
			return nil, qerr.New(qerr.TransportParameterError, "client sent server-only parameter "+pid.String())
		}

		if err := assignParam(p, pid, value); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func assignParam(p *TransportParameters, pid id, value []byte) error {
	readVarintValue := func() (uint64, error) {
		v, n, err := varint.Read(value)
		if err != nil || n != len(value) {
			return 0, qerr.New(qerr.DecodeError, "malformed integer transport parameter "+pid.String())
		}
		return v, nil
	}

	switch pid {
	case idOriginalDestinationConnectionID:
		p.OriginalDestinationConnectionID = append([]byte(nil), value...)
	case idMaxIdleTimeout:
		v, err := readVarintValue()
		if err != nil {
			return err
		}
		p.MaxIdleTimeoutMS = v
	case idStatelessResetToken:
		if len(value) != 16 {
			return qerr.New(qerr.DecodeError, "stateless_reset_token must be 16 bytes")
		}
		var tok [16]byte
		copy(tok[:], value)
		p.StatelessResetToken = Some(tok)
	case idMaxUDPPayloadSize:
		v, err := readVarintValue()
		if err != nil {
			return err
		}
		p.MaxUDPPayloadSize = Some(v)
	case idInitialMaxData:
		v, err := readVarintValue()
		if err != nil {
			return err
		}
		p.InitialMaxData = v
	case idInitialMaxStreamDataBidiLocal:
		v, err := readVarintValue()
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataBidiLocal = v
	case idInitialMaxStreamDataBidiRemote:
		v, err := readVarintValue()
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataBidiRemote = v
	case idInitialMaxStreamDataUni:
		v, err := readVarintValue()
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataUni = v
	case idInitialMaxStreamsBidi:
		v, err := readVarintValue()
		if err != nil {
			return err
		}
		p.InitialMaxStreamsBidi = v
	case idInitialMaxStreamsUni:
		v, err := readVarintValue()
		if err != nil {
			return err
		}
		p.InitialMaxStreamsUni = v
	case idAckDelayExponent:
		v, err := readVarintValue()
		if err != nil {
			return err
		}
		if v > 20 {
			return qerr.New(qerr.TransportParameterError, "ack_delay_exponent exceeds 20")
		}
		p.AckDelayExponent = Some(v)
	case idMaxAckDelay:
		v, err := readVarintValue()
		if err != nil {
			return err
		}
		if v >= 1<<14 {
			return qerr.New(qerr.TransportParameterError, "max_ack_delay exceeds 2^14")
		}
		p.MaxAckDelay = Some(v)
	case idDisableActiveMigration:
		if len(value) != 0 {
			return qerr.New(qerr.DecodeError, "disable_active_migration must be empty")
		}
		p.DisableActiveMigration = true
	case idPreferredAddress:
		pa, err := parsePreferredAddress(value)
		if err != nil {
			return err
		}
		p.PreferredAddress = pa
	case idActiveConnectionIDLimit:
		v, err := readVarintValue()
		if err != nil {
			return err
		}
		if v < 2 {
			return qerr.New(qerr.TransportParameterError, "active_connection_id_limit below 2")
		}
		p.ActiveConnectionIDLimit = Some(v)
	case idInitialSourceConnectionID:
		p.InitialSourceConnectionID = append([]byte(nil), value...)
	case idRetrySourceConnectionID:
		p.RetrySourceConnectionID = append([]byte(nil), value...)
	case idVersionInformation:
		if len(value) == 0 || len(value)%4 != 0 {
			return qerr.New(qerr.DecodeError, "version_information length must be a non-zero multiple of 4")
		}
		vi := &VersionInformation{Chosen: binary.BigEndian.Uint32(value[:4])}
		for i := 4; i < len(value); i += 4 {
			vi.Others = append(vi.Others, binary.BigEndian.Uint32(value[i:i+4]))
		}
		p.VersionInformation = vi
	case idMaxDatagramFrameSize:
		v, err := readVarintValue()
		if err != nil {
			return err
		}
		p.MaxDatagramFrameSize = Some(v)
	case idDiscard:
		// Intentionally ignored: a GREASE-style filler parameter.
	default:
		// Unknown id: declared length has already been consumed by the
		// caller's cursor advance; nothing further to do.
	}
	return nil
}

func parsePreferredAddress(value []byte) (*PreferredAddress, error) {
	if len(value) < preferredAddressMinLen {
		return nil, qerr.New(qerr.DecodeError, "preferred_address too short")
	}
	cur := value

	ipv4Bytes := cur[:4]
	cur = cur[4:]
	ipv4Port := binary.BigEndian.Uint16(cur[:2])
	cur = cur[2:]

	ipv6Bytes := cur[:16]
	cur = cur[16:]
	ipv6Port := binary.BigEndian.Uint16(cur[:2])
	cur = cur[2:]

	cidLen := int(cur[0])
	cur = cur[1:]
	if len(cur) < cidLen+16 {
		return nil, qerr.New(qerr.DecodeError, "preferred_address connection id/reset token truncated")
	}
	cid := append([]byte(nil), cur[:cidLen]...)
	cur = cur[cidLen:]
	var token [16]byte
	copy(token[:], cur[:16])
	cur = cur[16:]

	if len(cur) != 0 {
		return nil, qerr.New(qerr.DecodeError, "preferred_address has trailing bytes")
	}

	pa := &PreferredAddress{ConnectionID: cid, StatelessResetToken: token}

	var zero4 [4]byte
	if ipv4Bytes4 := ([4]byte)(ipv4Bytes); ipv4Bytes4 != zero4 {
		pa.IPv4 = netip.AddrPortFrom(netip.AddrFrom4(ipv4Bytes4), ipv4Port)
	}
	var zero16 [16]byte
	if ipv6Bytes16 := ([16]byte)(ipv6Bytes); ipv6Bytes16 != zero16 {
		pa.IPv6 = netip.AddrPortFrom(netip.AddrFrom16(ipv6Bytes16), ipv6Port)
	}

	if !pa.HasIPv4() && !pa.HasIPv6() {
		return nil, qerr.New(qerr.DecodeError, "preferred_address needs at least one of IPv4/IPv6")
	}

	return pa, nil
}
