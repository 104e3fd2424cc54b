package candidate

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xtls/quicaccept/internal/xlog"
)

// Registry maps original DCIDs to their in-flight candidates. Insertion of
// the first datagram for a DCID is exclusive: concurrent first arrivals
// for the same DCID collapse into the construction of a single candidate,
// courtesy of golang.org/x/sync/singleflight, while lookups of an
// already-registered candidate are a plain shared map read under the read
// lock of a sync.RWMutex.
type Registry struct {
	maxCandidates int
	idleTimeout   time.Duration
	log           *xlog.Logger

	mu     sync.RWMutex
	byDCID map[string]*Candidate

	group singleflight.Group
}

// NewRegistry returns an empty Registry. maxCandidates bounds how many
// concurrently-buffering candidates may exist before new first-datagrams
// are refused; idleTimeout governs the eviction sweep run by Sweep.
func NewRegistry(maxCandidates int, idleTimeout time.Duration, log *xlog.Logger) *Registry {
	return &Registry{
		maxCandidates: maxCandidates,
		idleTimeout:   idleTimeout,
		log:           log,
		byDCID:        make(map[string]*Candidate),
	}
}

func dcidKey(dcid []byte) string { return hex.EncodeToString(dcid) }

// Lookup returns the candidate registered for dcid, if any.
func (r *Registry) Lookup(dcid []byte) (*Candidate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byDCID[dcidKey(dcid)]
	return c, ok
}

// GetOrCreate returns the existing candidate for dcid, constructing one
// via newCandidate if none exists yet. Concurrent calls for the same dcid
// are coalesced by golang.org/x/sync/singleflight so only one newCandidate
// call actually runs; every caller observes the same *Candidate. It
// returns nil if the registry is at maxCandidates and dcid is not already
// registered.
func (r *Registry) GetOrCreate(dcid []byte, newCandidate func() *Candidate) *Candidate {
	key := dcidKey(dcid)

	if c, ok := r.Lookup(dcid); ok {
		return c
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if existing, ok := r.byDCID[key]; ok {
			return existing, nil
		}
		if len(r.byDCID) >= r.maxCandidates {
			r.log.Warnf("registry full, refusing new candidate for dcid %s", key)
			return (*Candidate)(nil), nil
		}
		c := newCandidate()
		r.byDCID[key] = c
		return c, nil
	})

	c, _ := v.(*Candidate)
	return c
}

// Remove drops dcid's entry, e.g. once its candidate has been promoted
// (the caller installs a route to the live connection elsewhere) or
// evicted.
func (r *Registry) Remove(dcid []byte) {
	r.mu.Lock()
	delete(r.byDCID, dcidKey(dcid))
	r.mu.Unlock()
}

// Sweep evicts every candidate that is terminal (promoted or dropped, and
// so no longer needs to occupy a registry slot) or has been idle longer
// than idleTimeout. It fans the per-candidate idle check out across an
// errgroup so a registry holding many candidates doesn't serialize the
// sweep behind a single goroutine.
func (r *Registry) Sweep(ctx context.Context, now time.Time) error {
	r.mu.RLock()
	keys := make([]string, 0, len(r.byDCID))
	candidates := make([]*Candidate, 0, len(r.byDCID))
	for k, c := range r.byDCID {
		keys = append(keys, k)
		candidates = append(candidates, c)
	}
	r.mu.RUnlock()

	toEvict := make([]bool, len(keys))
	g, _ := errgroup.WithContext(ctx)
	for i := range candidates {
		i := i
		g.Go(func() error {
			c := candidates[i]
			if c.IsTerminal() || now.Sub(c.LastActivity()) > r.idleTimeout {
				toEvict[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.mu.Lock()
	evicted := 0
	for i, evict := range toEvict {
		if evict {
			delete(r.byDCID, keys[i])
			evicted++
		}
	}
	r.mu.Unlock()

	if evicted > 0 {
		r.log.Infof("swept %d candidates", evicted)
	}

	return nil
}

// Len reports the number of candidates currently tracked.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byDCID)
}
