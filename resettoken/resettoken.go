// Package resettoken derives stateless reset tokens deterministically from
// a server-wide secret and a connection id, per RFC 9000 §10.3.2's
// recommendation: "An endpoint MAY ... generate stateless reset tokens for
// multiple connections using a single static key." This avoids having to
// store one random token per connection.
package resettoken

import "lukechampine.com/blake3"

// Size is the length of a stateless reset token in bytes (RFC 9000 §10.3).
const Size = 16

// Derive computes the stateless reset token for connID under serverSecret
// using a keyed BLAKE3 hash truncated to Size bytes. The same
// (serverSecret, connID) pair always yields the same token, and a peer
// must be unable to guess it without knowing serverSecret.
//
// BLAKE3's keyed mode requires an exactly 32-byte key; serverSecret may be
// any length, so it is first collapsed to 32 bytes with an unkeyed hash.
func Derive(serverSecret []byte, connID []byte) [Size]byte {
	key := blake3.Sum256(serverSecret)
	h := blake3.New(Size, key[:])
	h.Write(connID)
	var out [Size]byte
	copy(out[:], h.Sum(nil))
	return out
}
