package initial

import (
	"github.com/xtls/quicaccept/internal/qerr"
	"github.com/xtls/quicaccept/varint"
)

// Seal builds a protected Initial packet from a plaintext frame payload.
// It exists to support testing the unsealer (and any local tooling that
// needs to synthesize Initial packets) with an exact inverse of Unseal;
// this package's supported production path is entirely receive-side, per
// this pipeline's scope.
func Seal(dcid, scid, token []byte, version uint32, payload []byte, packetNumber uint64) ([]byte, error) {
	pnLen := pnLenFor(packetNumber)

	header := []byte{0xc0 | byte(pnLen-1)} // form=1, fixed=1, type=Initial(00), reserved=00
	header = append(header, byte(version>>24), byte(version>>16), byte(version>>8), byte(version))
	header = append(header, byte(len(dcid)))
	header = append(header, dcid...)
	header = append(header, byte(len(scid)))
	header = append(header, scid...)
	header = varint.Append(header, uint64(len(token)))
	header = append(header, token...)

	// A client's Initial packets are protected with keys derived from the
	// client secret; Unseal (server-side) decrypts with the same secret,
	// so the packets this helper builds must use it too.
	clientSecret, _, err := DeriveInitialSecrets(dcid, version)
	if err != nil {
		return nil, err
	}
	keys, err := DeriveKeys(clientSecret)
	if err != nil {
		return nil, err
	}

	pnBytes := make([]byte, pnLen)
	for i := 0; i < pnLen; i++ {
		pnBytes[pnLen-1-i] = byte(packetNumber >> (8 * i))
	}

	lengthFieldValue := uint64(pnLen + len(payload) + keys.overhead())
	lengthField := varint.Append(nil, lengthFieldValue)

	unprotectedHeader := append(append([]byte(nil), header...), lengthField...)
	unprotectedHeader = append(unprotectedHeader, pnBytes...)

	nonce := make([]byte, len(keys.IV))
	copy(nonce, keys.IV)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(packetNumber >> (8 * i))
	}

	ciphertext := keys.aead.Seal(nil, nonce, payload, unprotectedHeader)

	pnOffset := len(unprotectedHeader) - pnLen
	sampleOffset := pnOffset + 4
	protectedBody := append(append([]byte(nil), pnBytes...), ciphertext...)
	full := append(append([]byte(nil), unprotectedHeader[:pnOffset]...), protectedBody...)

	if sampleOffset+16 > len(full) {
		return nil, qerr.New(qerr.DecryptFailed, "payload too short to sample for header protection")
	}
	sample := full[sampleOffset : sampleOffset+16]
	mask := make([]byte, 16)
	keys.hpBlock.Encrypt(mask, sample)

	full[0] ^= mask[0] & maskBitsLongHeader
	for i := 0; i < pnLen; i++ {
		full[pnOffset+i] ^= mask[1+i]
	}

	return full, nil
}

func pnLenFor(pn uint64) int {
	switch {
	case pn < 1<<8:
		return 1
	case pn < 1<<16:
		return 2
	case pn < 1<<24:
		return 3
	default:
		return 4
	}
}

// overhead reports the AEAD's authentication tag size.
func (k Keys) overhead() int { return k.aead.Overhead() }
