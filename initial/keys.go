// Package initial implements RFC 9001 §5.2 Initial-packet key derivation
// and RFC 9000 long-header parsing, header-protection removal, and
// AEAD_AES_128_GCM unsealing for Initial packets specifically, the only
// packet type the connection-candidate admission pipeline ever needs to
// read before a connection object exists.
package initial

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"

	"golang.org/x/crypto/hkdf"

	"github.com/xtls/quicaccept/internal/qerr"
	"github.com/xtls/quicaccept/quicversion"
)

// Initial salts, one per QUIC version, used as the HKDF-Extract salt when
// deriving the initial secret from a connection id (RFC 9001 §5.2, RFC
// 9369 §3.3.1 for v2).
var (
	saltV1 = []byte{
		0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3,
		0x4d, 0x17, 0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad,
		0xcc, 0xbb, 0x7f, 0x0a,
	}
	saltV2 = []byte{
		0x0d, 0xed, 0xe3, 0xde, 0xf7, 0x00, 0xa6, 0xdb,
		0x81, 0x93, 0x81, 0xbe, 0x6e, 0x26, 0x9d, 0xcb,
		0xf9, 0xbd, 0x2e, 0xd9,
	}
)

func saltFor(version uint32) ([]byte, error) {
	switch version {
	case quicversion.V1:
		return saltV1, nil
	case quicversion.V2:
		return saltV2, nil
	default:
		return nil, qerr.New(qerr.UnknownVersion, "no initial salt for this version")
	}
}

// Keys holds the per-direction AEAD key material derived for Initial
// packet protection: a 16-byte AES-128 key, a 12-byte GCM IV, and a
// 16-byte header-protection key.
type Keys struct {
	Key []byte
	IV  []byte
	HP  []byte
	aead cipher.AEAD
	hpBlock cipher.Block
}

// DeriveInitialSecrets computes the client and server initial secrets from
// a connection id, following RFC 9001 §5.2: HKDF-Extract with the
// version-specific salt, then per-direction HKDF-Expand-Label.
func DeriveInitialSecrets(connID []byte, version uint32) (clientSecret, serverSecret []byte, err error) {
	salt, err := saltFor(version)
	if err != nil {
		return nil, nil, err
	}
	initialSecret := hkdf.Extract(sha256.New, connID, salt)
	clientSecret = expandLabel(initialSecret, "client in", 32)
	serverSecret = expandLabel(initialSecret, "server in", 32)
	return clientSecret, serverSecret, nil
}

// DeriveKeys derives the AEAD key, IV, and header-protection key for one
// direction from that direction's initial secret (RFC 9001 §5.4).
func DeriveKeys(secret []byte) (Keys, error) {
	key := expandLabel(secret, "quic key", 16)
	iv := expandLabel(secret, "quic iv", 12)
	hp := expandLabel(secret, "quic hp", 16)

	block, err := aes.NewCipher(key)
	if err != nil {
		return Keys{}, qerr.Wrap(qerr.DecryptFailed, "aes cipher for aead", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return Keys{}, qerr.Wrap(qerr.DecryptFailed, "gcm wrap", err)
	}
	hpBlock, err := aes.NewCipher(hp)
	if err != nil {
		return Keys{}, qerr.Wrap(qerr.DecryptFailed, "aes cipher for header protection", err)
	}
	return Keys{Key: key, IV: iv, HP: hp, aead: aead, hpBlock: hpBlock}, nil
}

// expandLabel implements TLS 1.3's HKDF-Expand-Label (RFC 8446 §7.1) with
// an empty Context, which is all RFC 9001's key schedule ever uses.
func expandLabel(secret []byte, label string, length int) []byte {
	full := "tls13 " + label
	hkdfLabel := make([]byte, 0, 2+1+len(full)+1)
	hkdfLabel = binary.BigEndian.AppendUint16(hkdfLabel, uint16(length))
	hkdfLabel = append(hkdfLabel, byte(len(full)))
	hkdfLabel = append(hkdfLabel, full...)
	hkdfLabel = append(hkdfLabel, 0) // empty Context

	out := make([]byte, length)
	r := hkdf.Expand(sha256.New, secret, hkdfLabel)
	if _, err := r.Read(out); err != nil {
		// hkdf.Expand's Reader only fails when more output is requested
		// than HKDF can produce (255*HashLen); every label here requests
		// at most 32 bytes, far below that ceiling.
		panic("initial: hkdf expand: " + err.Error())
	}
	return out
}
