// Package copycatch implements iterative lockstep detection over a
// bipartite actor/repo star graph.
//
// A campaign is a group of actors that all starred a shared, dense set
// of repos inside a bounded time window. Detection alternates between
// tightening the actor set (per-actor sliding-window density) and
// re-selecting the repo set (per-repo coverage by member windows) until
// a fixed point or an iteration cap.
package copycatch

import (
	"fmt"
	"math"
)

// DefaultActorOverlap is the Jaccard threshold above which two campaigns
// found from different seeds are considered the same group.
const DefaultActorOverlap = 0.8

// Params configures one detection run.
type Params struct {
	DeltaT int64   // window length in seconds
	N      int     // minimum actors per campaign
	M      int     // repo set size (and minimum repos per campaign)
	Rho    float64 // minimum per-actor density in (0, 1]
	Beta   float64 // iteration cap multiplier
	Jobs   int     // worker pool size for RunAll
	Seed   int64   // optional rng seed to shuffle seed order; 0 = ascending repo ID
}

// Validate checks parameter invariants.
func (p Params) Validate() error {
	if p.DeltaT <= 0 {
		return fmt.Errorf("delta_t must be positive, got %d", p.DeltaT)
	}
	if p.N < 1 {
		return fmt.Errorf("n must be >= 1, got %d", p.N)
	}
	if p.M < 1 {
		return fmt.Errorf("m must be >= 1, got %d", p.M)
	}
	if p.Rho <= 0 || p.Rho > 1 {
		return fmt.Errorf("rho must be in (0, 1], got %g", p.Rho)
	}
	if p.Beta <= 0 {
		return fmt.Errorf("beta must be positive, got %g", p.Beta)
	}
	if p.Jobs < 1 {
		return fmt.Errorf("jobs must be >= 1, got %d", p.Jobs)
	}
	return nil
}

// MaxIterations returns the refinement iteration cap, ceil(beta * max(n, m)).
func (p Params) MaxIterations() int {
	most := p.N
	if p.M > most {
		most = p.M
	}
	limit := int(math.Ceil(p.Beta * float64(most)))
	if limit < 1 {
		limit = 1
	}
	return limit
}

// Window is a half-open timestamp interval [Start, End) of length DeltaT.
type Window struct {
	Start int64
	End   int64
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts int64) bool {
	return ts >= w.Start && ts < w.End
}
