// Package varint implements QUIC's variable-length integer encoding: the
// top two bits of the first byte select a 1/2/4/8-byte big-endian form
// carrying 6/14/30/62 payload bits (RFC 9000 §16).
package varint

import "github.com/xtls/quicaccept/internal/qerr"

// Max is the largest value representable by a QUIC varint (2^62 - 1).
const Max = (1 << 62) - 1

const (
	len1 = 1
	len2 = 2
	len4 = 4
	len8 = 8
)

// Len reports the number of bytes Append will write for v, or 0 if v is
// out of range.
func Len(v uint64) int {
	switch {
	case v <= 63:
		return len1
	case v <= 16383:
		return len2
	case v <= 1073741823:
		return len4
	case v <= Max:
		return len8
	default:
		return 0
	}
}

// Append encodes v and appends it to buf, returning the extended slice.
// It panics if v exceeds Max; callers must validate values originating
// from untrusted configuration before encoding; values computed
// internally by this module are always in range by construction.
func Append(buf []byte, v uint64) []byte {
	n := Len(v)
	if n == 0 {
		panic("varint: value exceeds maximum encodable value")
	}
	switch n {
	case len1:
		return append(buf, byte(v))
	case len2:
		return append(buf, byte(v>>8)|0x40, byte(v))
	case len4:
		return append(buf, byte(v>>24)|0x80, byte(v>>16), byte(v>>8), byte(v))
	default:
		return append(buf,
			byte(v>>56)|0xc0, byte(v>>48), byte(v>>40), byte(v>>32),
			byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
}

// Read decodes a varint from the front of buf, returning the value and
// the number of bytes consumed. It fails with qerr.InvalidVarint if buf is
// too short for the length its first byte declares.
func Read(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, qerr.New(qerr.InvalidVarint, "empty buffer")
	}
	n := 1 << (buf[0] >> 6)
	if len(buf) < n {
		return 0, 0, qerr.New(qerr.InvalidVarint, "buffer shorter than declared length")
	}
	v := uint64(buf[0] & 0x3f)
	for i := 1; i < n; i++ {
		v = v<<8 | uint64(buf[i])
	}
	return v, n, nil
}
