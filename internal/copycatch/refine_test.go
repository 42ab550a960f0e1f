package copycatch

import (
	"slices"
	"testing"

	"github.com/stargraph/copycatch/internal/graph"
)

// lockstepEdges is the canonical fixture: three actors star repos A and
// B within a ten-day span, plus one organic bystander.
func lockstepEdges() []graph.Edge {
	return []graph.Edge{
		{Actor: "bot1", Repo: "A", At: 1 * day},
		{Actor: "bot1", Repo: "B", At: 2 * day},
		{Actor: "bot2", Repo: "A", At: 3 * day},
		{Actor: "bot2", Repo: "B", At: 9 * day},
		{Actor: "bot3", Repo: "A", At: 5 * day},
		{Actor: "bot3", Repo: "B", At: 10 * day},
		{Actor: "organic", Repo: "A", At: 200 * day},
	}
}

func lockstepParams() Params {
	return Params{DeltaT: 30 * day, N: 3, M: 2, Rho: 1.0, Beta: 2, Jobs: 1}
}

func TestRunOnceFindsLockstepGroup(t *testing.T) {
	d := newTestDetector(t, lockstepParams(), lockstepEdges())
	g := d.Graph()
	seedA, _ := g.RepoID("A")

	c := d.RunOnce(d.ClosestRepos(seedA, 2))
	if c == nil {
		t.Fatal("expected a campaign, got nil")
	}
	if !c.Converged {
		t.Fatal("expected convergence on the lockstep fixture")
	}

	wantActors := actorIDs(t, g, "bot1", "bot2", "bot3")
	if !slices.Equal(c.Actors, wantActors) {
		t.Fatalf("actors = %v, want %v", c.Actors, wantActors)
	}
	wantRepos := repoIDs(t, g, "A", "B")
	if !slices.Equal(c.Repos, wantRepos) {
		t.Fatalf("repos = %v, want %v", c.Repos, wantRepos)
	}
}

func TestRunOnceWindowLengthIsExactlyDeltaT(t *testing.T) {
	p := lockstepParams()
	d := newTestDetector(t, p, lockstepEdges())
	seedA, _ := d.Graph().RepoID("A")

	c := d.RunOnce(d.ClosestRepos(seedA, 2))
	if c == nil {
		t.Fatal("expected a campaign")
	}
	if got := c.Window.End - c.Window.Start; got != p.DeltaT {
		t.Fatalf("campaign window length %d, want %d", got, p.DeltaT)
	}
	for actor, w := range c.Windows {
		if w.End-w.Start != p.DeltaT {
			t.Fatalf("actor %d window length %d, want %d", actor, w.End-w.Start, p.DeltaT)
		}
	}
}

func TestRunOnceMemberDensityMeetsRho(t *testing.T) {
	p := lockstepParams()
	d := newTestDetector(t, p, lockstepEdges())
	g := d.Graph()
	seedA, _ := g.RepoID("A")

	c := d.RunOnce(d.ClosestRepos(seedA, 2))
	if c == nil {
		t.Fatal("expected a campaign")
	}

	repoSet := make(map[graph.RepoID]struct{}, len(c.Repos))
	for _, r := range c.Repos {
		repoSet[r] = struct{}{}
	}
	for _, actor := range c.Actors {
		covered := 0
		seen := make(map[graph.RepoID]struct{})
		for _, hit := range g.ActorNeighbors(actor) {
			if _, inSet := repoSet[hit.Repo]; !inSet {
				continue
			}
			if !c.Windows[actor].Contains(hit.At) {
				continue
			}
			if _, dup := seen[hit.Repo]; dup {
				continue
			}
			seen[hit.Repo] = struct{}{}
			covered++
		}
		density := float64(covered) / float64(len(c.Repos))
		if density < p.Rho {
			t.Fatalf("actor %d density %.2f below rho %.2f", actor, density, p.Rho)
		}
	}
}

func TestRunOnceRejectsBelowMinActors(t *testing.T) {
	edges := []graph.Edge{
		{Actor: "loner", Repo: "C", At: 42},
	}
	p := Params{DeltaT: 30 * day, N: 2, M: 1, Rho: 0.5, Beta: 2, Jobs: 1}
	d := newTestDetector(t, p, edges)
	seedC, _ := d.Graph().RepoID("C")

	if c := d.RunOnce(d.ClosestRepos(seedC, p.M)); c != nil {
		t.Fatalf("expected nil for a single-actor seed, got %+v", c)
	}
}

func TestRunOnceRejectsWhenTooFewReposCovered(t *testing.T) {
	// Only one repo exists but M demands two.
	edges := []graph.Edge{
		{Actor: "a1", Repo: "only", At: 10},
		{Actor: "a2", Repo: "only", At: 20},
		{Actor: "a3", Repo: "only", At: 30},
	}
	p := Params{DeltaT: 30 * day, N: 3, M: 2, Rho: 0.5, Beta: 2, Jobs: 1}
	d := newTestDetector(t, p, edges)
	seed, _ := d.Graph().RepoID("only")

	if c := d.RunOnce(d.ClosestRepos(seed, p.M)); c != nil {
		t.Fatalf("expected rejection with fewer than m covered repos, got %+v", c)
	}
}

func TestRunOnceEmptyInitialSet(t *testing.T) {
	d := newTestDetector(t, lockstepParams(), lockstepEdges())
	if c := d.RunOnce(nil); c != nil {
		t.Fatalf("expected nil for empty initial set, got %+v", c)
	}
}

func TestRunOnceRhoExcludesSlowActors(t *testing.T) {
	// bot4 stars A and B but 60 days apart; with deltaT of 30 days and
	// rho 1.0 it can never cover both in one window.
	edges := append(lockstepEdges(),
		graph.Edge{Actor: "bot4", Repo: "A", At: 20 * day},
		graph.Edge{Actor: "bot4", Repo: "B", At: 80 * day},
	)
	d := newTestDetector(t, lockstepParams(), edges)
	g := d.Graph()
	seedA, _ := g.RepoID("A")

	c := d.RunOnce(d.ClosestRepos(seedA, 2))
	if c == nil {
		t.Fatal("expected a campaign")
	}
	bot4, _ := g.ActorID("bot4")
	if slices.Contains(c.Actors, bot4) {
		t.Fatalf("bot4 spans %d days and must not join a %d-day window", 60, 30)
	}
}

func TestRunOnceDeterministic(t *testing.T) {
	d := newTestDetector(t, lockstepParams(), lockstepEdges())
	seedA, _ := d.Graph().RepoID("A")
	initial := d.ClosestRepos(seedA, 2)

	first := d.RunOnce(initial)
	second := d.RunOnce(initial)
	if first == nil || second == nil {
		t.Fatal("expected campaigns from both runs")
	}
	if !slices.Equal(first.Actors, second.Actors) || !slices.Equal(first.Repos, second.Repos) {
		t.Fatalf("RunOnce not deterministic: %+v vs %+v", first, second)
	}
}

func actorIDs(t *testing.T, g *graph.Index, names ...string) []graph.ActorID {
	t.Helper()
	out := make([]graph.ActorID, 0, len(names))
	for _, name := range names {
		id, ok := g.ActorID(name)
		if !ok {
			t.Fatalf("actor %q not in index", name)
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
