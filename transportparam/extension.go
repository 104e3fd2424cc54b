package transportparam

import (
	"encoding/binary"

	"github.com/xtls/quicaccept/internal/qerr"
)

// WrapExtension frames a marshalled transport-parameters payload as a TLS
// extension: a 2-byte extension codepoint, a 2-byte length, then the
// payload itself (RFC 8446 §4.2 extension framing, as used by RFC 9001
// §8.2 for quic_transport_parameters).
func WrapExtension(codepoint uint16, payload []byte) ([]byte, error) {
	if len(payload) > 0xffff {
		return nil, qerr.New(qerr.DecodeError, "transport parameters payload exceeds TLS extension length field")
	}
	out := make([]byte, 0, 4+len(payload))
	out = binary.BigEndian.AppendUint16(out, codepoint)
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)))
	out = append(out, payload...)
	return out, nil
}

// UnwrapExtension strips the TLS extension framing and returns the
// codepoint plus the raw transport-parameters payload.
func UnwrapExtension(data []byte) (codepoint uint16, payload []byte, err error) {
	if len(data) < 4 {
		return 0, nil, qerr.New(qerr.DecodeError, "extension header truncated")
	}
	codepoint = binary.BigEndian.Uint16(data[:2])
	length := binary.BigEndian.Uint16(data[2:4])
	rest := data[4:]
	if int(length) > len(rest) {
		return 0, nil, qerr.New(qerr.DecodeError, "extension payload truncated")
	}
	return codepoint, rest[:length], nil
}
