package transportparam

// id is a transport-parameter identifier, carried on the wire as a varint.
type id uint64

// Standardised transport-parameter ids (RFC 9000 §18.2, RFC 9221, RFC 9368).
const (
	idOriginalDestinationConnectionID id = 0x00
	idMaxIdleTimeout                  id = 0x01
	idStatelessResetToken             id = 0x02
	idMaxUDPPayloadSize                id = 0x03
	idInitialMaxData                   id = 0x04
	idInitialMaxStreamDataBidiLocal    id = 0x05
	idInitialMaxStreamDataBidiRemote   id = 0x06
	idInitialMaxStreamDataUni          id = 0x07
	idInitialMaxStreamsBidi            id = 0x08
	idInitialMaxStreamsUni             id = 0x09
	idAckDelayExponent                 id = 0x0a
	idMaxAckDelay                      id = 0x0b
	idDisableActiveMigration           id = 0x0c
	idPreferredAddress                 id = 0x0d
	idActiveConnectionIDLimit          id = 0x0e
	idInitialSourceConnectionID        id = 0x0f
	idRetrySourceConnectionID          id = 0x10
	idVersionInformation               id = 0x11
	idMaxDatagramFrameSize             id = 0x20
	// idDiscard is a GREASE-style "quantum readiness" filler parameter:
	// either role may emit it with an arbitrarily large value. Sent by a
	// client, it inflates the ClientHello so that it spans multiple
	// Initial packets.
	idDiscard id = 0x173e
)

// Extension codepoints for the quic_transport_parameters TLS extension
// (RFC 9001 §8.2 for the final id; 0xffa5 was used by pre-RFC drafts).
// WrapExtension and UnwrapExtension do not check the codepoint, so either
// one can be emitted and parsed.
const (
	ExtensionCodepointV1    uint16 = 0x0039
	ExtensionCodepointDraft uint16 = 0xffa5
)

var idNames = map[id]string{
	idOriginalDestinationConnectionID: "original_destination_connection_id",
	idMaxIdleTimeout:                  "max_idle_timeout",
	idStatelessResetToken:             "stateless_reset_token",
	idMaxUDPPayloadSize:               "max_udp_payload_size",
	idInitialMaxData:                  "initial_max_data",
	idInitialMaxStreamDataBidiLocal:   "initial_max_stream_data_bidi_local",
	idInitialMaxStreamDataBidiRemote:  "initial_max_stream_data_bidi_remote",
	idInitialMaxStreamDataUni:         "initial_max_stream_data_uni",
	idInitialMaxStreamsBidi:           "initial_max_streams_bidi",
	idInitialMaxStreamsUni:            "initial_max_streams_uni",
	idAckDelayExponent:                "ack_delay_exponent",
	idMaxAckDelay:                     "max_ack_delay",
	idDisableActiveMigration:          "disable_active_migration",
	idPreferredAddress:                "preferred_address",
	idActiveConnectionIDLimit:         "active_connection_id_limit",
	idInitialSourceConnectionID:       "initial_source_connection_id",
	idRetrySourceConnectionID:         "retry_source_connection_id",
	idVersionInformation:              "version_information",
	idMaxDatagramFrameSize:            "max_datagram_frame_size",
	idDiscard:                         "discard",
}

func (i id) String() string {
	if name, ok := idNames[i]; ok {
		return name
	}
	return "unknown"
}

// serverOnly reports whether id may only be emitted by a server.
func (i id) serverOnly() bool {
	switch i {
	case idOriginalDestinationConnectionID, idStatelessResetToken,
		idPreferredAddress, idRetrySourceConnectionID:
		return true
	default:
		return false
	}
}
