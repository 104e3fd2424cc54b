// Package ackframe encodes and decodes QUIC ACK frames (RFC 9000 §19.3).
// Frame bodies are VarInt fields read and written through an explicit
// (bytes, cursor) slice, never a shared mutable buffer, matching this
// module's general wire-codec idiom.
package ackframe

import (
	"github.com/xtls/quicaccept/internal/qerr"
	"github.com/xtls/quicaccept/varint"
)

// FrameType values that carry ACK information.
const (
	TypeACK    uint64 = 0x02
	TypeACKECN uint64 = 0x03
)

// DefaultAckDelayExponent is the value assumed for a peer that never sent
// ack_delay_exponent in its transport parameters (RFC 9000 §18.2).
const DefaultAckDelayExponent = 3

// ReadFrameType reads the leading frame-type varint from a buffer that may
// contain an ACK or ACK_ECN frame (or any other frame type; the caller
// dispatches on the returned value before deciding whether to call Decode).
func ReadFrameType(buf []byte) (frameType uint64, consumed int, err error) {
	v, n, err := varint.Read(buf)
	if err != nil {
		return 0, 0, qerr.Wrap(qerr.FrameEncodingError, "frame type", err)
	}
	return v, n, nil
}

// Range is one contiguous inclusive range of acknowledged packet numbers,
// Smallest <= Largest.
type Range struct {
	Smallest uint64
	Largest  uint64
}

// ECNCounts carries the three ECN marking counters present only on an
// ACK_ECN frame.
type ECNCounts struct {
	ECT0 uint64
	ECT1 uint64
	CE   uint64
}

// Frame is a decoded or to-be-encoded ACK frame.
type Frame struct {
	// AckDelayExponent is the exponent that applies to AckDelayRaw. Decode
	// sets it to the *peer's* declared exponent. Encode does not read it:
	// it writes AckDelayRaw to the wire unchanged and performs no scaling,
	// so AckDelayRaw must already hold the scaled-down value.
	AckDelayExponent uint64
	AckDelayRaw      uint64 // wire value, scaled by 2^AckDelayExponent microseconds
	Ranges           []Range // descending, as decoded; Ranges[0] contains Largest
	ECN              *ECNCounts
}

// Encode serialises f as an ACK or ACK_ECN frame (selected by f.ECN != nil).
// Ranges must be supplied in descending order and already merged/sorted by
// the caller; Encode does not validate range ordering beyond what is
// needed to compute gaps, since this module only ever encodes
// self-generated ACKs.
func Encode(f *Frame) []byte {
	frameType := TypeACK
	if f.ECN != nil {
		frameType = TypeACKECN
	}

	var buf []byte
	buf = varint.Append(buf, frameType)
	buf = varint.Append(buf, f.Ranges[0].Largest)
	buf = varint.Append(buf, f.AckDelayRaw)
	buf = varint.Append(buf, uint64(len(f.Ranges)-1))
	buf = varint.Append(buf, f.Ranges[0].Largest-f.Ranges[0].Smallest)

	for i := 1; i < len(f.Ranges); i++ {
		gap := f.Ranges[i-1].Smallest - f.Ranges[i].Largest - 2
		buf = varint.Append(buf, gap)
		buf = varint.Append(buf, f.Ranges[i].Largest-f.Ranges[i].Smallest)
	}

	if f.ECN != nil {
		buf = varint.Append(buf, f.ECN.ECT0)
		buf = varint.Append(buf, f.ECN.ECT1)
		buf = varint.Append(buf, f.ECN.CE)
	}

	return buf
}

// Decode parses an ACK or ACK_ECN frame body (the frame-type varint must
// already have been consumed by the caller and passed in as frameType).
// peerAckDelayExponent is the ack_delay_exponent transport parameter the
// sender of this frame advertised (default 3 if it was never sent).
//
// Decode fails with qerr.FrameEncodingError if any computed packet number
// in a range would be negative, an impossible ACK that a well-behaved
// peer never sends.
func Decode(frameType uint64, body []byte, peerAckDelayExponent uint64) (*Frame, int, error) {
	cur := body
	consumed := 0

	readVarint := func(what string) (uint64, error) {
		v, n, err := varint.Read(cur)
		if err != nil {
			return 0, qerr.Wrap(qerr.FrameEncodingError, what, err)
		}
		cur = cur[n:]
		consumed += n
		return v, nil
	}

	largest, err := readVarint("largest_acked")
	if err != nil {
		return nil, 0, err
	}
	ackDelayRaw, err := readVarint("ack_delay")
	if err != nil {
		return nil, 0, err
	}
	rangeCount, err := readVarint("ack_range_count")
	if err != nil {
		return nil, 0, err
	}
	firstRange, err := readVarint("first_ack_range")
	if err != nil {
		return nil, 0, err
	}
	if firstRange > largest {
		return nil, 0, qerr.New(qerr.FrameEncodingError, "negative packet number in first ack range")
	}

	f := &Frame{
		AckDelayExponent: peerAckDelayExponent,
		AckDelayRaw:      ackDelayRaw,
		Ranges:           []Range{{Smallest: largest - firstRange, Largest: largest}},
	}

	smallestSoFar := f.Ranges[0].Smallest
	for i := uint64(0); i < rangeCount; i++ {
		gap, err := readVarint("gap")
		if err != nil {
			return nil, 0, err
		}
		rangeLen, err := readVarint("ack_range_length")
		if err != nil {
			return nil, 0, err
		}
		// The next range's largest packet number is smallestSoFar - gap - 2.
		if gap+2 > smallestSoFar {
			return nil, 0, qerr.New(qerr.FrameEncodingError, "negative packet number in ack range")
		}
		nextLargest := smallestSoFar - gap - 2
		if rangeLen > nextLargest {
			return nil, 0, qerr.New(qerr.FrameEncodingError, "negative packet number in ack range")
		}
		nextSmallest := nextLargest - rangeLen
		f.Ranges = append(f.Ranges, Range{Smallest: nextSmallest, Largest: nextLargest})
		smallestSoFar = nextSmallest
	}

	if frameType == TypeACKECN {
		ect0, err := readVarint("ect0_count")
		if err != nil {
			return nil, 0, err
		}
		ect1, err := readVarint("ect1_count")
		if err != nil {
			return nil, 0, err
		}
		ce, err := readVarint("ecn_ce_count")
		if err != nil {
			return nil, 0, err
		}
		f.ECN = &ECNCounts{ECT0: ect0, ECT1: ect1, CE: ce}
	}

	return f, consumed, nil
}
