package candidate

import "github.com/xtls/quicaccept/internal/qerr"

// maxAccumulatorBytes bounds how far Insert will ever grow a candidate's
// reassembled CRYPTO range. offset arrives as an attacker-controlled varint
// (up to 2^62-1); without a ceiling here a single crafted frame forces a
// multi-exabyte allocation. The default max_udp_payload_size (RFC 9000
// §18.2) is a generous bound for a handshake message that in practice is a
// few KB.
const maxAccumulatorBytes = 65527

// cryptoAccumulator reassembles CRYPTO frame bytes that may arrive out of
// order and possibly overlapping across several Initial packets, tracking
// which byte positions have been filled so overlapping writes can be
// checked for consistency (RFC 9000 §19.6 requires retransmissions of
// already-acknowledged ranges to carry identical data).
type cryptoAccumulator struct {
	data    []byte
	written []bool
}

func newCryptoAccumulator() *cryptoAccumulator {
	return &cryptoAccumulator{}
}

// Insert writes data at offset, growing the backing buffer as needed. It
// fails with qerr.FrameEncodingError if offset+len(data) exceeds
// maxAccumulatorBytes, and with qerr.ProtocolViolation if a
// previously-written byte at any overlapping position holds a different
// value.
func (a *cryptoAccumulator) Insert(offset uint64, data []byte) error {
	end := offset + uint64(len(data))
	if end > maxAccumulatorBytes {
		return qerr.New(qerr.FrameEncodingError, "crypto offset+length exceeds reassembly bound")
	}
	if end > uint64(len(a.data)) {
		grown := make([]byte, end)
		copy(grown, a.data)
		a.data = grown
		grownWritten := make([]bool, end)
		copy(grownWritten, a.written)
		a.written = grownWritten
	}

	for i, b := range data {
		pos := offset + uint64(i)
		if a.written[pos] {
			if a.data[pos] != b {
				return qerr.New(qerr.ProtocolViolation, "overlapping crypto data mismatch")
			}
			continue
		}
		a.data[pos] = b
		a.written[pos] = true
	}
	return nil
}

// ContiguousPrefix returns the longest prefix of the accumulator, starting
// at offset 0, that has been fully written.
func (a *cryptoAccumulator) ContiguousPrefix() []byte {
	n := 0
	for n < len(a.written) && a.written[n] {
		n++
	}
	return a.data[:n]
}
