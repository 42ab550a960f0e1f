package copycatch

import (
	"slices"
	"testing"

	"github.com/stargraph/copycatch/internal/graph"
)

func newTestDetector(t *testing.T, p Params, edges []graph.Edge) *Detector {
	t.Helper()
	d, err := FromEdges(p, edges)
	if err != nil {
		t.Fatalf("building detector: %v", err)
	}
	return d
}

func repoIDs(t *testing.T, g *graph.Index, names ...string) []graph.RepoID {
	t.Helper()
	out := make([]graph.RepoID, 0, len(names))
	for _, name := range names {
		id, ok := g.RepoID(name)
		if !ok {
			t.Fatalf("repo %q not in index", name)
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func TestClosestReposIncludesSeedAndRanksBySharedActors(t *testing.T) {
	// Two actors co-visit "hot" with the seed, one co-visits "cold".
	edges := []graph.Edge{
		{Actor: "a1", Repo: "seed", At: 10},
		{Actor: "a2", Repo: "seed", At: 20},
		{Actor: "a3", Repo: "seed", At: 30},
		{Actor: "a1", Repo: "hot", At: 40},
		{Actor: "a2", Repo: "hot", At: 50},
		{Actor: "a3", Repo: "cold", At: 60},
	}
	d := newTestDetector(t, validParams(), edges)
	seed, _ := d.Graph().RepoID("seed")

	got := d.ClosestRepos(seed, 2)
	want := repoIDs(t, d.Graph(), "seed", "hot")
	if !slices.Equal(got, want) {
		t.Fatalf("ClosestRepos = %v, want %v", got, want)
	}
}

func TestClosestReposTieBreaksByAscendingID(t *testing.T) {
	// "first" and "second" both share one actor with the seed;
	// "first" appears earlier so it has the lower ID.
	edges := []graph.Edge{
		{Actor: "a1", Repo: "seed", At: 10},
		{Actor: "a1", Repo: "first", At: 20},
		{Actor: "a2", Repo: "seed", At: 30},
		{Actor: "a2", Repo: "second", At: 40},
	}
	d := newTestDetector(t, validParams(), edges)
	seed, _ := d.Graph().RepoID("seed")

	got := d.ClosestRepos(seed, 2)
	want := repoIDs(t, d.Graph(), "seed", "first")
	if !slices.Equal(got, want) {
		t.Fatalf("ClosestRepos = %v, want %v", got, want)
	}
}

func TestClosestReposSingletonWhenNoCoVisitors(t *testing.T) {
	edges := []graph.Edge{
		{Actor: "loner", Repo: "seed", At: 10},
	}
	d := newTestDetector(t, validParams(), edges)
	seed, _ := d.Graph().RepoID("seed")

	got := d.ClosestRepos(seed, 4)
	if len(got) != 1 || got[0] != seed {
		t.Fatalf("expected singleton {seed}, got %v", got)
	}
}

func TestClosestReposNeverExceedsM(t *testing.T) {
	edges := []graph.Edge{
		{Actor: "a1", Repo: "seed", At: 1},
		{Actor: "a1", Repo: "r1", At: 2},
		{Actor: "a1", Repo: "r2", At: 3},
		{Actor: "a1", Repo: "r3", At: 4},
		{Actor: "a1", Repo: "r4", At: 5},
	}
	d := newTestDetector(t, validParams(), edges)
	seed, _ := d.Graph().RepoID("seed")

	for m := 1; m <= 6; m++ {
		got := d.ClosestRepos(seed, m)
		if len(got) > m {
			t.Fatalf("m=%d: got %d repos", m, len(got))
		}
		if !slices.Contains(got, seed) {
			t.Fatalf("m=%d: result %v missing seed", m, got)
		}
	}
}

func TestClosestReposCountsActorsNotStars(t *testing.T) {
	// One actor double-stars "noisy"; two actors each star "steady".
	edges := []graph.Edge{
		{Actor: "a1", Repo: "seed", At: 1},
		{Actor: "a2", Repo: "seed", At: 2},
		{Actor: "a1", Repo: "noisy", At: 3},
		{Actor: "a1", Repo: "noisy", At: 4},
		{Actor: "a1", Repo: "steady", At: 5},
		{Actor: "a2", Repo: "steady", At: 6},
	}
	d := newTestDetector(t, validParams(), edges)
	seed, _ := d.Graph().RepoID("seed")

	got := d.ClosestRepos(seed, 2)
	want := repoIDs(t, d.Graph(), "seed", "steady")
	if !slices.Equal(got, want) {
		t.Fatalf("ClosestRepos = %v, want %v (distinct actors beat repeat stars)", got, want)
	}
}
