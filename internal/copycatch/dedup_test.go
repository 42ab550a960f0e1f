package copycatch

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stargraph/copycatch/internal/graph"
)

func campaign(seed graph.RepoID, actors []graph.ActorID, repos []graph.RepoID) *Campaign {
	return &Campaign{Seed: seed, Actors: actors, Repos: repos, Windows: map[graph.ActorID]Window{}}
}

func TestDedupIdenticalSignatures(t *testing.T) {
	a := campaign(0, []graph.ActorID{1, 2, 3}, []graph.RepoID{0, 1})
	b := campaign(1, []graph.ActorID{1, 2, 3}, []graph.RepoID{0, 1})

	out := Dedup([]*Campaign{a, b}, DefaultActorOverlap)
	if len(out) != 1 {
		t.Fatalf("expected 1 campaign after dedup, got %d", len(out))
	}
	if out[0].Seed != 0 {
		t.Fatalf("expected first-seen campaign kept, got seed %d", out[0].Seed)
	}
}

func TestDedupHighActorOverlap(t *testing.T) {
	// 9 of 10 actors shared: Jaccard 9/11 ≈ 0.818 > 0.8.
	base := []graph.ActorID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	other := []graph.ActorID{1, 2, 3, 4, 5, 6, 7, 8, 9, 11}

	a := campaign(0, base, []graph.RepoID{0, 1})
	b := campaign(1, other, []graph.RepoID{2, 3})

	out := Dedup([]*Campaign{a, b}, DefaultActorOverlap)
	if len(out) != 1 {
		t.Fatalf("expected overlap merge, got %d campaigns", len(out))
	}
}

func TestDedupKeepsDistinctGroups(t *testing.T) {
	a := campaign(0, []graph.ActorID{1, 2, 3}, []graph.RepoID{0, 1})
	b := campaign(1, []graph.ActorID{7, 8, 9}, []graph.RepoID{0, 1})

	out := Dedup([]*Campaign{a, b}, DefaultActorOverlap)
	if len(out) != 2 {
		t.Fatalf("expected 2 distinct campaigns, got %d", len(out))
	}
}

func TestDedupSkipsNilEntries(t *testing.T) {
	a := campaign(0, []graph.ActorID{1, 2}, []graph.RepoID{0})
	out := Dedup([]*Campaign{nil, a, nil}, DefaultActorOverlap)
	if len(out) != 1 {
		t.Fatalf("expected nils dropped, got %d campaigns", len(out))
	}
}

func TestDedupIdempotent(t *testing.T) {
	in := []*Campaign{
		campaign(0, []graph.ActorID{1, 2, 3}, []graph.RepoID{0, 1}),
		campaign(1, []graph.ActorID{1, 2, 3}, []graph.RepoID{0, 1}),
		campaign(2, []graph.ActorID{7, 8, 9}, []graph.RepoID{2, 3}),
	}

	once := Dedup(in, DefaultActorOverlap)
	twice := Dedup(once, DefaultActorOverlap)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("dedup not a fixed point (-once +twice):\n%s", diff)
	}
}

func TestJaccard(t *testing.T) {
	cases := []struct {
		a, b []graph.ActorID
		want float64
	}{
		{[]graph.ActorID{1, 2, 3}, []graph.ActorID{1, 2, 3}, 1.0},
		{[]graph.ActorID{1, 2}, []graph.ActorID{3, 4}, 0.0},
		{[]graph.ActorID{1, 2, 3}, []graph.ActorID{2, 3, 4}, 0.5},
		{nil, nil, 0.0},
		{[]graph.ActorID{1}, nil, 0.0},
	}
	for _, tc := range cases {
		if got := jaccard(tc.a, tc.b); got != tc.want {
			t.Fatalf("jaccard(%v, %v) = %g, want %g", tc.a, tc.b, got, tc.want)
		}
	}
}
