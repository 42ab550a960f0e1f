package copycatch

import (
	"log/slog"

	"github.com/stargraph/copycatch/internal/graph"
	"github.com/stargraph/copycatch/internal/logging"
)

// Detector runs lockstep detection against one immutable graph index.
// The index is shared read-only across all workers; a Detector is safe
// for concurrent use.
type Detector struct {
	g      *graph.Index
	params Params
	logger *slog.Logger
}

// Campaign is one detected lockstep group.
type Campaign struct {
	Seed    graph.RepoID
	Actors  []graph.ActorID // sorted ascending
	Repos   []graph.RepoID  // sorted ascending
	Windows map[graph.ActorID]Window

	// Window is the representative interval (earliest member window);
	// its length is always exactly DeltaT.
	Window Window

	// Converged is false when the refinement loop hit its iteration
	// cap and the last state was accepted best-effort.
	Converged bool
}

// New creates a Detector for a prebuilt index.
func New(g *graph.Index, p Params) (*Detector, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		g:      g,
		params: p,
		logger: logging.New("copycatch"),
	}, nil
}

// FromEdges builds the graph index from an edge table and wraps it in a
// Detector. Malformed edges are dropped during the build.
func FromEdges(p Params, edges []graph.Edge) (*Detector, error) {
	return New(graph.Build(edges), p)
}

// Graph exposes the underlying index for callers that need name lookups.
func (d *Detector) Graph() *graph.Index { return d.g }

// Params returns the detection parameters.
func (d *Detector) Params() Params { return d.params }
