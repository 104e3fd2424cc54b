package initial

import (
	"github.com/xtls/quicaccept/internal/qerr"
	"github.com/xtls/quicaccept/varint"
)

const (
	formBit       = 0x80
	fixedBit      = 0x40
	longTypeMask  = 0x30
	longTypeShift = 4
	initialType   = 0x00
)

// Header is a parsed (but still header-protected) Initial-packet long
// header. PacketNumberOffset is the offset, within the datagram, of the
// first potentially-protected packet-number byte; the packet-number
// length itself is not known until header protection is removed.
type Header struct {
	Version uint32
	DCID    []byte
	SCID    []byte
	Token   []byte

	FirstByteOffset    int
	PacketNumberOffset int
	PayloadLength      int // value of the Length field: packet number + payload
	HeaderLen          int // bytes from FirstByteOffset to PacketNumberOffset
}

// PacketEnd returns the offset, within the datagram, of the first byte
// after this packet, i.e. where a coalesced packet would begin.
func (h *Header) PacketEnd() int {
	return h.PacketNumberOffset + h.PayloadLength
}

// ParseLongHeader parses a long-header packet starting at the front of
// data. It does not require the packet to be an Initial; callers check
// IsInitialType and the version before proceeding, since a non-Initial
// long-header packet (e.g. 0-RTT) cannot be processed by this package.
func ParseLongHeader(data []byte) (*Header, error) {
	if len(data) < 7 {
		return nil, qerr.New(qerr.DecodeError, "datagram too short for a long header")
	}
	if data[0]&formBit == 0 {
		return nil, qerr.New(qerr.DecodeError, "not a long-header packet")
	}
	if data[0]&fixedBit == 0 {
		return nil, qerr.New(qerr.DecodeError, "fixed bit not set")
	}

	version := uint32(data[1])<<24 | uint32(data[2])<<16 | uint32(data[3])<<8 | uint32(data[4])
	cur := data[5:]
	offset := 5

	if len(cur) < 1 {
		return nil, qerr.New(qerr.DecodeError, "truncated before DCID length")
	}
	dcidLen := int(cur[0])
	cur = cur[1:]
	offset++
	if len(cur) < dcidLen {
		return nil, qerr.New(qerr.DecodeError, "truncated DCID")
	}
	dcid := cur[:dcidLen]
	cur = cur[dcidLen:]
	offset += dcidLen

	if len(cur) < 1 {
		return nil, qerr.New(qerr.DecodeError, "truncated before SCID length")
	}
	scidLen := int(cur[0])
	cur = cur[1:]
	offset++
	if len(cur) < scidLen {
		return nil, qerr.New(qerr.DecodeError, "truncated SCID")
	}
	scid := cur[:scidLen]
	cur = cur[scidLen:]
	offset += scidLen

	h := &Header{Version: version, DCID: dcid, SCID: scid}

	if IsInitialType(data[0]) {
		tokenLen, n, err := varint.Read(cur)
		if err != nil {
			return nil, qerr.Wrap(qerr.DecodeError, "token length", err)
		}
		cur = cur[n:]
		offset += n
		if uint64(len(cur)) < tokenLen {
			return nil, qerr.New(qerr.DecodeError, "truncated token")
		}
		h.Token = cur[:tokenLen]
		cur = cur[tokenLen:]
		offset += int(tokenLen)
	}

	payloadLen, n, err := varint.Read(cur)
	if err != nil {
		return nil, qerr.Wrap(qerr.DecodeError, "length field", err)
	}
	cur = cur[n:]
	offset += n

	if uint64(len(cur)) < payloadLen {
		return nil, qerr.New(qerr.DecodeError, "declared length exceeds datagram")
	}

	h.PayloadLength = int(payloadLen)
	h.PacketNumberOffset = offset
	h.HeaderLen = offset
	return h, nil
}

// IsInitialType reports whether the first byte of a long header marks an
// Initial packet (long-header type bits 00).
func IsInitialType(firstByte byte) bool {
	return (firstByte & longTypeMask) >> longTypeShift == initialType
}

// IsLongHeader reports whether firstByte marks a long-header QUIC packet.
func IsLongHeader(firstByte byte) bool {
	return firstByte&formBit != 0 && firstByte&fixedBit != 0
}
