// Package graph builds the immutable bipartite actor/repo index the
// detection engine runs on.
//
// Actors (users) and repos get dense zero-based IDs in first-appearance
// order, so repeated runs over the same edge table produce the same IDs.
// Adjacency is stored timestamp-sorted in both directions. An Index is
// never mutated after Build returns and is safe for concurrent reads.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stargraph/copycatch/internal/logging"
)

// ActorID is a dense zero-based user identifier.
type ActorID int32

// RepoID is a dense zero-based repository identifier.
type RepoID int32

// Edge is one star event from the input table.
type Edge struct {
	Actor string
	Repo  string
	At    int64 // unix seconds
}

// Hit is a repo endpoint of an actor's edge.
type Hit struct {
	Repo RepoID
	At   int64
}

// ActorHit is an actor endpoint of a repo's edge.
type ActorHit struct {
	Actor ActorID
	At    int64
}

// MalformedEdgeError describes a rejected input row. Rejected rows are
// dropped and logged; they never abort index construction.
type MalformedEdgeError struct {
	Row    int
	Reason string
}

func (e *MalformedEdgeError) Error() string {
	return fmt.Sprintf("malformed edge at row %d: %s", e.Row, e.Reason)
}

// Index is the read-only bipartite graph.
type Index struct {
	actorIDs map[string]ActorID
	repoIDs  map[string]RepoID

	actorNames []string
	repoNames  []string

	byActor [][]Hit
	byRepo  [][]ActorHit

	dropped int
}

// Build constructs an Index from an edge sequence. Malformed edges
// (blank actor or repo, negative timestamp) are dropped and counted.
func Build(edges []Edge) *Index {
	logger := logging.New("graph")

	idx := &Index{
		actorIDs: make(map[string]ActorID),
		repoIDs:  make(map[string]RepoID),
	}

	for i, e := range edges {
		if err := validateEdge(i, e); err != nil {
			idx.dropped++
			logger.Warn("dropping edge", "error", err)
			continue
		}

		actor := idx.internActor(strings.TrimSpace(e.Actor))
		repo := idx.internRepo(strings.TrimSpace(e.Repo))

		idx.byActor[actor] = append(idx.byActor[actor], Hit{Repo: repo, At: e.At})
		idx.byRepo[repo] = append(idx.byRepo[repo], ActorHit{Actor: actor, At: e.At})
	}

	for _, hits := range idx.byActor {
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].At != hits[j].At {
				return hits[i].At < hits[j].At
			}
			return hits[i].Repo < hits[j].Repo
		})
	}
	for _, hits := range idx.byRepo {
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].At != hits[j].At {
				return hits[i].At < hits[j].At
			}
			return hits[i].Actor < hits[j].Actor
		})
	}

	if idx.dropped > 0 {
		logger.Warn("index built with dropped edges",
			"actors", len(idx.actorNames), "repos", len(idx.repoNames), "dropped", idx.dropped)
	}
	return idx
}

func validateEdge(row int, e Edge) error {
	if strings.TrimSpace(e.Actor) == "" {
		return &MalformedEdgeError{Row: row, Reason: "missing actor"}
	}
	if strings.TrimSpace(e.Repo) == "" {
		return &MalformedEdgeError{Row: row, Reason: "missing repo"}
	}
	if e.At < 0 {
		return &MalformedEdgeError{Row: row, Reason: fmt.Sprintf("negative timestamp %d", e.At)}
	}
	return nil
}

func (idx *Index) internActor(name string) ActorID {
	if id, ok := idx.actorIDs[name]; ok {
		return id
	}
	id := ActorID(len(idx.actorNames))
	idx.actorIDs[name] = id
	idx.actorNames = append(idx.actorNames, name)
	idx.byActor = append(idx.byActor, nil)
	return id
}

func (idx *Index) internRepo(name string) RepoID {
	if id, ok := idx.repoIDs[name]; ok {
		return id
	}
	id := RepoID(len(idx.repoNames))
	idx.repoIDs[name] = id
	idx.repoNames = append(idx.repoNames, name)
	idx.byRepo = append(idx.byRepo, nil)
	return id
}

// ActorNeighbors returns the actor's edges sorted by timestamp ascending.
// The returned slice is shared; callers must not modify it.
func (idx *Index) ActorNeighbors(id ActorID) []Hit {
	if id < 0 || int(id) >= len(idx.byActor) {
		return nil
	}
	return idx.byActor[id]
}

// RepoNeighbors returns the repo's edges sorted by timestamp ascending.
// The returned slice is shared; callers must not modify it.
func (idx *Index) RepoNeighbors(id RepoID) []ActorHit {
	if id < 0 || int(id) >= len(idx.byRepo) {
		return nil
	}
	return idx.byRepo[id]
}

// ActorCount returns the number of distinct actors.
func (idx *Index) ActorCount() int { return len(idx.actorNames) }

// RepoCount returns the number of distinct repos.
func (idx *Index) RepoCount() int { return len(idx.repoNames) }

// Dropped returns the number of malformed edges rejected during Build.
func (idx *Index) Dropped() int { return idx.dropped }

// ActorID resolves an actor name to its dense ID.
func (idx *Index) ActorID(name string) (ActorID, bool) {
	id, ok := idx.actorIDs[strings.TrimSpace(name)]
	return id, ok
}

// RepoID resolves a repo name to its dense ID.
func (idx *Index) RepoID(name string) (RepoID, bool) {
	id, ok := idx.repoIDs[strings.TrimSpace(name)]
	return id, ok
}

// ActorName returns the original name for a dense actor ID.
func (idx *Index) ActorName(id ActorID) string {
	if id < 0 || int(id) >= len(idx.actorNames) {
		return ""
	}
	return idx.actorNames[id]
}

// RepoName returns the original name for a dense repo ID.
func (idx *Index) RepoName(id RepoID) string {
	if id < 0 || int(id) >= len(idx.repoNames) {
		return ""
	}
	return idx.repoNames[id]
}
