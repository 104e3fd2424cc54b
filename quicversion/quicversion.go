// Package quicversion holds the small set of QUIC long-header version
// numbers this server accepts.
package quicversion

// Known long-header version numbers.
const (
	V1 uint32 = 0x00000001
	V2 uint32 = 0x6b3343cf
)

// Supported reports whether version is a long-header version this server
// will attempt to process, as opposed to responding with a version
// negotiation packet (out of scope for the admission pipeline itself).
func Supported(version uint32) bool {
	switch version {
	case V1, V2:
		return true
	default:
		return false
	}
}
