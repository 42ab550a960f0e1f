package copycatch

import (
	"slices"

	"github.com/stargraph/copycatch/internal/graph"
)

// Dedup collapses campaigns that describe the same lockstep group found
// from different seeds. Two campaigns merge when their (actors, repos)
// signatures are identical or their actor-set Jaccard overlap exceeds
// the threshold; the first-seen campaign (seed order) is kept. Running
// Dedup on its own output is a fixed point.
func Dedup(in []*Campaign, actorOverlap float64) []*Campaign {
	if actorOverlap <= 0 {
		actorOverlap = DefaultActorOverlap
	}

	out := make([]*Campaign, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		duplicate := false
		for _, kept := range out {
			if sameSignature(c, kept) || jaccard(c.Actors, kept.Actors) > actorOverlap {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, c)
		}
	}
	return out
}

func sameSignature(a, b *Campaign) bool {
	return slices.Equal(a.Actors, b.Actors) && slices.Equal(a.Repos, b.Repos)
}

// jaccard computes |a∩b| / |a∪b| over two sorted ID slices.
func jaccard(a, b []graph.ActorID) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
