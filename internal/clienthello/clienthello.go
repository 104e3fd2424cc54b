// Package clienthello detects completeness of a TLS 1.3 ClientHello
// handshake message reassembled from CRYPTO frame bytes, standing in for
// the real TLS engine's feed_client_hello contract: feed bytes in, learn
// whether the message is complete. A full ClientHello parse belongs to the
// TLS engine this pipeline treats as an opaque collaborator; this package
// only needs the 4-byte handshake header (RFC 8446 §4: msg_type(1) +
// length(3)) to know how many bytes to wait for.
package clienthello

const (
	msgTypeClientHello = 0x01
	headerLen          = 4
)

// Complete reports whether buf, the contiguous prefix of a candidate's
// accumulated CRYPTO bytes, holds a complete ClientHello message. total is
// the full message length (header included) once known; it is 0 until at
// least the header has arrived.
func Complete(buf []byte) (complete bool, total int) {
	if len(buf) < headerLen {
		return false, 0
	}
	if buf[0] != msgTypeClientHello {
		return false, 0
	}
	length := int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
	total = headerLen + length
	return len(buf) >= total, total
}
