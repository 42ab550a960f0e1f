package copycatch

import (
	"sort"

	"github.com/stargraph/copycatch/internal/graph"
)

// ClosestRepos bootstraps a candidate repo set for one seed: the seed
// itself plus the m-1 repos most co-visited by the seed's actors,
// ranked by distinct shared actors, ties broken by ascending repo ID.
// When fewer than m repos are reachable, the smaller set is returned;
// downstream refinement will usually reject it.
func (d *Detector) ClosestRepos(seed graph.RepoID, m int) []graph.RepoID {
	if m < 1 {
		m = 1
	}

	seedActors := make(map[graph.ActorID]struct{})
	for _, hit := range d.g.RepoNeighbors(seed) {
		seedActors[hit.Actor] = struct{}{}
	}

	// Distinct shared actors per co-visited repo. Each actor's repo
	// list is deduplicated so a double-star counts once.
	cooccur := make(map[graph.RepoID]int)
	for actor := range seedActors {
		visited := make(map[graph.RepoID]struct{})
		for _, hit := range d.g.ActorNeighbors(actor) {
			if hit.Repo == seed {
				continue
			}
			if _, ok := visited[hit.Repo]; ok {
				continue
			}
			visited[hit.Repo] = struct{}{}
			cooccur[hit.Repo]++
		}
	}

	ranked := make([]graph.RepoID, 0, len(cooccur))
	for repo := range cooccur {
		ranked = append(ranked, repo)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if cooccur[ranked[i]] != cooccur[ranked[j]] {
			return cooccur[ranked[i]] > cooccur[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > m-1 {
		ranked = ranked[:m-1]
	}

	out := append([]graph.RepoID{seed}, ranked...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
