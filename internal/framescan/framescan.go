// Package framescan walks the frame sequence of a decrypted Initial
// packet payload, classifying each frame as neutral, promotion-blocking,
// or forbidden, and extracting CRYPTO frame chunks along the way. It does
// not interpret frame contents beyond what is needed to determine their
// length and classification; that is the job of the post-handshake
// connection this pipeline eventually hands off to.
package framescan

import (
	"github.com/xtls/quicaccept/ackframe"
	"github.com/xtls/quicaccept/internal/qerr"
	"github.com/xtls/quicaccept/varint"
)

// Frame type values relevant to Initial packets (RFC 9000 §19, Table 3).
const (
	typePadding         = 0x00
	typePing            = 0x01
	typeACK             = 0x02
	typeACKECN          = 0x03
	typeCrypto          = 0x06
	typePathChallenge   = 0x1a
	typeConnectionClose = 0x1c
)

// CryptoChunk is one CRYPTO frame's contribution to the handshake byte
// stream.
type CryptoChunk struct {
	Offset uint64
	Data   []byte
}

// Result summarises a scan of one Initial packet's decrypted payload.
type Result struct {
	Crypto          []CryptoChunk
	SawBlockingFrame bool // ACK, ACK_ECN, CONNECTION_CLOSE, or PATH_CHALLENGE
}

// Scan walks payload frame by frame. It stops and returns PROTOCOL_VIOLATION
// on the first frame type not permitted in an Initial packet context
// (e.g. STREAM, NEW_CONNECTION_ID); such a packet is entirely discarded by
// the caller, matching the "any forbidden-in-Initial frame ⇒
// PROTOCOL_VIOLATION ⇒ drop" rule.
func Scan(payload []byte) (*Result, error) {
	res := &Result{}
	cur := payload

	for len(cur) > 0 {
		frameType, n, err := varint.Read(cur)
		if err != nil {
			return nil, qerr.Wrap(qerr.FrameEncodingError, "frame type", err)
		}
		cur = cur[n:]

		switch frameType {
		case typePadding, typePing:
			// single-byte frames, no body

		case typeACK, typeACKECN:
			_, consumed, err := ackframe.Decode(frameType, cur, ackframe.DefaultAckDelayExponent)
			if err != nil {
				return nil, err
			}
			cur = cur[consumed:]
			res.SawBlockingFrame = true

		case typeCrypto:
			offset, on, err := varint.Read(cur)
			if err != nil {
				return nil, qerr.Wrap(qerr.FrameEncodingError, "crypto offset", err)
			}
			cur = cur[on:]
			length, ln, err := varint.Read(cur)
			if err != nil {
				return nil, qerr.Wrap(qerr.FrameEncodingError, "crypto length", err)
			}
			cur = cur[ln:]
			if uint64(len(cur)) < length {
				return nil, qerr.New(qerr.FrameEncodingError, "crypto frame data truncated")
			}
			res.Crypto = append(res.Crypto, CryptoChunk{Offset: offset, Data: cur[:length]})
			cur = cur[length:]

		case typePathChallenge:
			if len(cur) < 8 {
				return nil, qerr.New(qerr.FrameEncodingError, "path_challenge truncated")
			}
			cur = cur[8:]
			res.SawBlockingFrame = true

		case typeConnectionClose:
			_, n1, err := varint.Read(cur) // error code
			if err != nil {
				return nil, qerr.Wrap(qerr.FrameEncodingError, "connection_close error code", err)
			}
			cur = cur[n1:]
			_, n2, err := varint.Read(cur) // triggering frame type
			if err != nil {
				return nil, qerr.Wrap(qerr.FrameEncodingError, "connection_close frame type", err)
			}
			cur = cur[n2:]
			reasonLen, n3, err := varint.Read(cur)
			if err != nil {
				return nil, qerr.Wrap(qerr.FrameEncodingError, "connection_close reason length", err)
			}
			cur = cur[n3:]
			if uint64(len(cur)) < reasonLen {
				return nil, qerr.New(qerr.FrameEncodingError, "connection_close reason truncated")
			}
			cur = cur[reasonLen:]
			res.SawBlockingFrame = true

		default:
			return nil, qerr.New(qerr.ProtocolViolation, "frame type not permitted in an Initial packet")
		}
	}

	return res, nil
}
