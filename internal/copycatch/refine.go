package copycatch

import (
	"slices"
	"sort"

	"github.com/stargraph/copycatch/internal/graph"
)

// RunOnce refines one seed's candidate repo set into a campaign, or
// returns nil when no group meeting the thresholds exists. The loop
// alternates actor assignment and repo re-selection until both sets
// stop changing or the iteration cap is reached; a capped run reports
// its last state rather than spinning.
func (d *Detector) RunOnce(initialRepos []graph.RepoID) *Campaign {
	repos := slices.Clone(initialRepos)
	slices.Sort(repos)
	repos = slices.Compact(repos)
	if len(repos) == 0 {
		return nil
	}

	var (
		actors    []graph.ActorID
		windows   map[graph.ActorID]Window
		converged bool
	)

	maxIter := d.params.MaxIterations()
	for it := 1; ; it++ {
		newActors, newWindows := d.assignActors(repos)

		newRepos, ok := d.reselectRepos(newActors, newWindows)
		if !ok {
			return nil
		}

		same := slices.Equal(newActors, actors) && slices.Equal(newRepos, repos)
		actors, windows, repos = newActors, newWindows, newRepos
		if same {
			converged = true
			break
		}
		if it >= maxIter {
			d.logger.Debug("refinement hit iteration cap",
				"iterations", it, "actors", len(actors), "repos", len(repos))
			break
		}
	}

	if len(actors) < d.params.N || len(repos) < d.params.M {
		return nil
	}

	c := &Campaign{
		Actors:    actors,
		Repos:     repos,
		Windows:   windows,
		Converged: converged,
	}
	c.Window = representativeWindow(actors, windows)
	return c
}

// assignActors runs the actor step: every actor with an edge into the
// repo set joins when its best fixed-length window covers at least
// rho * |repos| distinct set members. Actors are visited in ascending
// ID order so results are deterministic.
func (d *Detector) assignActors(repos []graph.RepoID) ([]graph.ActorID, map[graph.ActorID]Window) {
	repoSet := make(map[graph.RepoID]struct{}, len(repos))
	for _, r := range repos {
		repoSet[r] = struct{}{}
	}
	inSet := func(r graph.RepoID) bool {
		_, ok := repoSet[r]
		return ok
	}

	candidates := make(map[graph.ActorID]struct{})
	for _, r := range repos {
		for _, hit := range d.g.RepoNeighbors(r) {
			candidates[hit.Actor] = struct{}{}
		}
	}
	ordered := make([]graph.ActorID, 0, len(candidates))
	for a := range candidates {
		ordered = append(ordered, a)
	}
	slices.Sort(ordered)

	actors := make([]graph.ActorID, 0, len(ordered))
	windows := make(map[graph.ActorID]Window, len(ordered))
	for _, a := range ordered {
		w, hits := bestWindow(d.g.ActorNeighbors(a), inSet, d.params.DeltaT)
		if hits == 0 {
			continue
		}
		if float64(hits)/float64(len(repos)) >= d.params.Rho {
			actors = append(actors, a)
			windows[a] = w
		}
	}
	return actors, windows
}

// reselectRepos runs the repo step: count, per repo, how many member
// actors cover it inside their own best window, then keep the top m by
// count with ties broken by ascending repo ID. Fewer than m repos with
// nonzero count rejects the candidate.
func (d *Detector) reselectRepos(actors []graph.ActorID, windows map[graph.ActorID]Window) ([]graph.RepoID, bool) {
	counts := make(map[graph.RepoID]int)
	for _, a := range actors {
		for _, repo := range windowCoverage(d.g.ActorNeighbors(a), windows[a]) {
			counts[repo]++
		}
	}
	if len(counts) < d.params.M {
		return nil, false
	}

	ranked := make([]graph.RepoID, 0, len(counts))
	for repo := range counts {
		ranked = append(ranked, repo)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	ranked = ranked[:d.params.M]
	slices.Sort(ranked)
	return ranked, true
}

// representativeWindow picks the earliest member window as the
// campaign-level interval.
func representativeWindow(actors []graph.ActorID, windows map[graph.ActorID]Window) Window {
	var w Window
	first := true
	for _, a := range actors {
		aw, ok := windows[a]
		if !ok {
			continue
		}
		if first || aw.Start < w.Start {
			w = aw
			first = false
		}
	}
	return w
}
