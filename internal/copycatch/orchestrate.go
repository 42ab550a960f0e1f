package copycatch

import (
	"context"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/stargraph/copycatch/internal/graph"
)

// RunAll drives RunOnce over every distinct repo as a seed, using a
// bounded pool of Jobs workers over the shared read-only index, and
// returns the deduplicated campaigns in seed order. Seeds are taken in
// ascending repo ID order unless Params.Seed requests a shuffle.
//
// Cancelling ctx stops dispatching further seeds; in-flight seeds run
// to completion, so no partial campaign is ever emitted. A panicking
// worker is logged and contributes nothing.
func (d *Detector) RunAll(ctx context.Context) []*Campaign {
	seeds := make([]graph.RepoID, d.g.RepoCount())
	for i := range seeds {
		seeds[i] = graph.RepoID(i)
	}
	if d.params.Seed != 0 {
		rng := rand.New(rand.NewSource(d.params.Seed))
		rng.Shuffle(len(seeds), func(i, j int) {
			seeds[i], seeds[j] = seeds[j], seeds[i]
		})
	}

	// Results land in per-seed slots; the collector below is the only
	// reader after Wait, so no locking is needed beyond the group.
	results := make([]*Campaign, len(seeds))

	var pool errgroup.Group
	pool.SetLimit(d.params.Jobs)
	dispatched := 0
	for i, seed := range seeds {
		if ctx.Err() != nil {
			d.logger.Info("stopping seed dispatch", "dispatched", dispatched, "total", len(seeds))
			break
		}
		dispatched++
		i, seed := i, seed
		pool.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("seed worker panicked", "seed", d.g.RepoName(seed), "panic", r)
					results[i] = nil
				}
			}()
			if c := d.RunOnce(d.ClosestRepos(seed, d.params.M)); c != nil {
				c.Seed = seed
				results[i] = c
			}
			return nil
		})
	}
	_ = pool.Wait()

	found := 0
	for _, c := range results {
		if c != nil {
			found++
		}
	}
	deduped := Dedup(results, DefaultActorOverlap)
	d.logger.Info("detection finished",
		"seeds", dispatched, "raw_campaigns", found, "campaigns", len(deduped))
	return deduped
}
