// Package serverconfig holds the knobs the connection-candidate admission
// pipeline needs. Its shape follows the transport package's own
// convention: a flat struct, a DefaultConfig constructor, and a Validate
// method that clamps out-of-range fields to sane defaults rather than
// rejecting the whole config outright.
package serverconfig

import "time"

const (
	minUDPPayloadSize = 1200
	maxUDPPayloadSize = 65527

	defaultMaxCandidates          = 4096
	defaultCandidateIdleTimeout   = 3 * time.Second
	defaultAntiAmplificationRatio = 3
	defaultMaxUDPPayloadSize      = 1452
)

// Config holds the admission pipeline's tunables.
type Config struct {
	// MaxCandidates bounds the number of concurrently buffering candidates
	// a single registry will hold before refusing new ones.
	MaxCandidates int

	// CandidateIdleTimeout is how long a candidate may sit without
	// receiving a new datagram before the eviction sweep drops it.
	CandidateIdleTimeout time.Duration

	// AntiAmplificationRatio is the multiplier applied to validated
	// inbound bytes to compute the outbound send budget (RFC 9000 §8.1
	// specifies 3).
	AntiAmplificationRatio int

	// MaxUDPPayloadSize is the maximum UDP payload size; Validate keeps it
	// within [1200, 65527]. No component of this module reads it: the
	// candidate's Initial datagram size floor is its own 1200-byte
	// constant, and no transport parameters are built from this Config.
	MaxUDPPayloadSize int
}

// DefaultConfig returns a Config with the suggested defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxCandidates:          defaultMaxCandidates,
		CandidateIdleTimeout:   defaultCandidateIdleTimeout,
		AntiAmplificationRatio: defaultAntiAmplificationRatio,
		MaxUDPPayloadSize:      defaultMaxUDPPayloadSize,
	}
}

// Validate clamps out-of-range fields to defaults in place; it never
// returns an error.
func (c *Config) Validate() {
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = defaultMaxCandidates
	}
	if c.CandidateIdleTimeout <= 0 {
		c.CandidateIdleTimeout = defaultCandidateIdleTimeout
	}
	if c.AntiAmplificationRatio <= 0 {
		c.AntiAmplificationRatio = defaultAntiAmplificationRatio
	}
	if c.MaxUDPPayloadSize < minUDPPayloadSize || c.MaxUDPPayloadSize > maxUDPPayloadSize {
		c.MaxUDPPayloadSize = defaultMaxUDPPayloadSize
	}
}
