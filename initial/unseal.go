package initial

import (
	"github.com/xtls/quicaccept/internal/qerr"
)

const sampleLen = 16

// maskBitsLongHeader protects only the reserved bits and the
// packet-number-length bits of a long-header first byte (RFC 9001 §5.4.1).
const maskBitsLongHeader = 0x0f

// removeHeaderProtection unmasks the first byte and packet-number bytes of
// a long-header packet in place on a private copy of the relevant bytes,
// returning the packet-number length and decoded packet number. sample is
// the 16-byte header-protection sample, taken 4 bytes after the start of
// the (still-protected) packet-number field per RFC 9001 §5.4.2.
func removeHeaderProtection(keys Keys, datagram []byte, h *Header) (pnLen int, packetNumber uint64, unprotectedFirstByte byte, err error) {
	sampleOffset := h.PacketNumberOffset + 4
	if sampleOffset+sampleLen > len(datagram) {
		return 0, 0, 0, qerr.New(qerr.DecodeError, "datagram too short for header protection sample")
	}
	sample := datagram[sampleOffset : sampleOffset+sampleLen]

	mask := make([]byte, sampleLen)
	keys.hpBlock.Encrypt(mask, sample)

	unprotectedFirstByte = datagram[h.FirstByteOffset] ^ (mask[0] & maskBitsLongHeader)
	pnLen = int(unprotectedFirstByte&0x03) + 1

	if h.PacketNumberOffset+pnLen > len(datagram) {
		return 0, 0, 0, qerr.New(qerr.DecodeError, "datagram too short for packet number")
	}

	var pnBytes [4]byte
	for i := 0; i < pnLen; i++ {
		pnBytes[i] = datagram[h.PacketNumberOffset+i] ^ mask[1+i]
	}
	for i := 0; i < pnLen; i++ {
		packetNumber = packetNumber<<8 | uint64(pnBytes[i])
	}

	return pnLen, packetNumber, unprotectedFirstByte, nil
}

// Unseal validates, header-protection-removes, and AEAD-decrypts the
// Initial packet at the front of datagram. dcid is the destination
// connection id the client chose for its first Initial (the key used to
// derive initial secrets); the caller is responsible for matching it
// against the header's own DCID field before calling Unseal for any
// packet after the first on a given candidate.
//
// On success it returns the decrypted frame payload and the number of
// datagram bytes this packet occupied, so the caller can locate any
// coalesced packet that follows.
func Unseal(datagram []byte, dcid []byte, version uint32) (payload []byte, consumed int, err error) {
	h, err := ParseLongHeader(datagram)
	if err != nil {
		return nil, 0, err
	}
	if !IsInitialType(datagram[0]) {
		return nil, 0, qerr.New(qerr.DecodeError, "not an Initial packet")
	}

	clientSecret, _, err := DeriveInitialSecrets(dcid, version)
	if err != nil {
		return nil, 0, err
	}
	keys, err := DeriveKeys(clientSecret)
	if err != nil {
		return nil, 0, err
	}

	pnLen, packetNumber, unprotectedFirstByte, err := removeHeaderProtection(keys, datagram, h)
	if err != nil {
		return nil, 0, err
	}

	headerBytes := make([]byte, h.PacketNumberOffset+pnLen)
	copy(headerBytes, datagram[:h.PacketNumberOffset])
	headerBytes[h.FirstByteOffset] = unprotectedFirstByte
	// The associated data carries the *unmasked* packet number bytes;
	// rebuild them directly from the already-decoded packetNumber rather
	// than re-deriving the header-protection mask a second time.
	for i := 0; i < pnLen; i++ {
		shift := uint((pnLen - 1 - i) * 8)
		headerBytes[h.PacketNumberOffset+i] = byte(packetNumber >> shift)
	}

	ciphertextEnd := h.PacketNumberOffset + h.PayloadLength
	if ciphertextEnd > len(datagram) {
		return nil, 0, qerr.New(qerr.DecodeError, "declared length exceeds datagram")
	}
	ciphertext := datagram[h.PacketNumberOffset+pnLen : ciphertextEnd]

	nonce := make([]byte, len(keys.IV))
	copy(nonce, keys.IV)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(packetNumber >> (8 * i))
	}

	plaintext, err := keys.aead.Open(nil, nonce, ciphertext, headerBytes)
	if err != nil {
		return nil, 0, qerr.Wrap(qerr.DecryptFailed, "aead open", err)
	}

	return plaintext, h.PacketEnd(), nil
}
