package copycatch

import "github.com/stargraph/copycatch/internal/graph"

// bestWindow finds the fixed-length window over the actor's edges,
// restricted to repos where inSet returns true, that covers the most
// distinct repos. hits must be sorted by timestamp ascending (the
// graph index guarantees this), so a single two-pointer pass suffices.
//
// Returns the window and the distinct-repo count; count is 0 when no
// edge lands in the set.
func bestWindow(hits []graph.Hit, inSet func(graph.RepoID) bool, deltaT int64) (Window, int) {
	filtered := make([]graph.Hit, 0, len(hits))
	for _, h := range hits {
		if inSet(h.Repo) {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) == 0 {
		return Window{}, 0
	}

	counts := make(map[graph.RepoID]int)
	distinct := 0
	best := 0
	bestStart := filtered[0].At

	left := 0
	for right := 0; right < len(filtered); right++ {
		if counts[filtered[right].Repo] == 0 {
			distinct++
		}
		counts[filtered[right].Repo]++

		// Evict edges that cannot share a length-deltaT window with
		// the newest one: [start, start+deltaT) holds both ends only
		// when their timestamps differ by less than deltaT.
		for filtered[right].At-filtered[left].At >= deltaT {
			counts[filtered[left].Repo]--
			if counts[filtered[left].Repo] == 0 {
				distinct--
			}
			left++
		}

		if distinct > best {
			best = distinct
			bestStart = filtered[left].At
		}
	}

	return Window{Start: bestStart, End: bestStart + deltaT}, best
}

// windowCoverage returns the distinct repos the actor reaches inside w.
func windowCoverage(hits []graph.Hit, w Window) []graph.RepoID {
	seen := make(map[graph.RepoID]struct{})
	out := make([]graph.RepoID, 0, 8)
	for _, h := range hits {
		if h.At >= w.End {
			break
		}
		if !w.Contains(h.At) {
			continue
		}
		if _, ok := seen[h.Repo]; ok {
			continue
		}
		seen[h.Repo] = struct{}{}
		out = append(out, h.Repo)
	}
	return out
}
