// Package mcp provides a Model Context Protocol server for CopyCatch.
//
// It exposes lockstep detection (detect, closest, campaigns, stats) as
// MCP tools and store statistics as an MCP resource, over stdio
// transport for Claude Desktop, Cursor, and similar clients.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stargraph/copycatch/internal/copycatch"
	"github.com/stargraph/copycatch/internal/graph"
	"github.com/stargraph/copycatch/internal/ingest"
	"github.com/stargraph/copycatch/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Params  copycatch.Params
	Version string
}

// dbMu serializes MCP tool calls that touch the database. The mcp-go
// library dispatches handlers concurrently via goroutines, and SQLite
// supports only one writer at a time.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all CopyCatch tools
// and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"CopyCatch",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerDetectTool(s, cfg)
	registerClosestTool(s, cfg)
	registerCampaignsTool(s, cfg.Store)
	registerStatsTool(s, cfg.Store)

	registerStatsResource(s, cfg.Store)

	return s
}

// Serve runs the server on stdio until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// --- Tools ---

func registerDetectTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("copycatch_detect",
		mcp.WithDescription("Run lockstep detection over a star-event edge table. Finds groups of actors that starred a shared set of repos within a bounded time window. Reads edges from a CSV file, or from previously imported edges when no file is given."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("csv",
			mcp.Description("Path to a CSV edge table (actor, repo_name, starred_at). Empty = use stored edges."),
		),
		mcp.WithNumber("delta_days",
			mcp.Description(fmt.Sprintf("Time window size in days (default: %d)", defaultDeltaDays(cfg.Params))),
		),
		mcp.WithNumber("n",
			mcp.Description("Minimum actors per campaign"),
		),
		mcp.WithNumber("m",
			mcp.Description("Repo set size per campaign"),
		),
		mcp.WithNumber("rho",
			mcp.Description("Minimum fraction of campaign repos an actor must hit inside one window (0-1]"),
		),
		mcp.WithNumber("jobs",
			mcp.Description("Parallel seed workers (default: 1)"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Report campaigns without persisting the run (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		params := cfg.Params
		if v, err := req.RequireFloat("delta_days"); err == nil && v > 0 {
			params.DeltaT = int64(v) * 24 * 60 * 60
		}
		if v, err := req.RequireFloat("n"); err == nil && v > 0 {
			params.N = int(v)
		}
		if v, err := req.RequireFloat("m"); err == nil && v > 0 {
			params.M = int(v)
		}
		if v, err := req.RequireFloat("rho"); err == nil && v > 0 {
			params.Rho = v
		}
		if v, err := req.RequireFloat("jobs"); err == nil && v > 0 {
			params.Jobs = int(v)
		}
		if err := params.Validate(); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
		}

		source := "stored-edges"
		var edges []graph.Edge
		var dropped int
		if path, err := req.RequireString("csv"); err == nil && path != "" {
			res, err := ingest.ReadFile(path)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("reading edge table: %v", err)), nil
			}
			edges = res.Edges
			dropped = res.Dropped
			source = path
		} else {
			stored, err := cfg.Store.LoadEdges(ctx)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("loading stored edges: %v", err)), nil
			}
			for _, e := range stored {
				edges = append(edges, graph.Edge{Actor: e.Actor, Repo: e.Repo, At: e.StarredAt})
			}
		}
		if len(edges) == 0 {
			return mcp.NewToolResultError("no edges to analyze; pass a csv path or import edges first"), nil
		}

		detector, err := copycatch.FromEdges(params, edges)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("building detector: %v", err)), nil
		}
		campaigns := detector.RunAll(ctx)
		records := toCampaignRecords(detector.Graph(), campaigns)

		dryRun := false
		if v, err := req.RequireBool("dry_run"); err == nil {
			dryRun = v
		}

		var runID int64
		if !dryRun {
			runID, err = cfg.Store.SaveRun(ctx, &store.Run{
				Source:    source,
				DeltaT:    params.DeltaT,
				MinActors: params.N,
				MinRepos:  params.M,
				Rho:       params.Rho,
				Beta:      params.Beta,
				Edges:     len(edges),
				Dropped:   dropped,
			})
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("saving run: %v", err)), nil
			}
			if err := cfg.Store.SaveCampaigns(ctx, runID, records); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("saving campaigns: %v", err)), nil
			}
		}

		result := map[string]interface{}{
			"run_id":    runID,
			"edges":     len(edges),
			"dropped":   dropped,
			"campaigns": records,
			"dry_run":   dryRun,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerClosestTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("copycatch_closest",
		mcp.WithDescription("Find the repos most co-starred with a seed repo, ranked by the number of distinct shared actors. This is the seed set lockstep detection starts from."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("repo",
			mcp.Required(),
			mcp.Description("Seed repo name (e.g. 'org/repo')"),
		),
		mcp.WithString("csv",
			mcp.Description("Path to a CSV edge table. Empty = use stored edges."),
		),
		mcp.WithNumber("m",
			mcp.Description("Result set size including the seed"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		repoName, err := req.RequireString("repo")
		if err != nil {
			return mcp.NewToolResultError("repo is required"), nil
		}

		params := cfg.Params
		if v, err := req.RequireFloat("m"); err == nil && v > 0 {
			params.M = int(v)
		}

		var edges []graph.Edge
		if path, err := req.RequireString("csv"); err == nil && path != "" {
			res, err := ingest.ReadFile(path)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("reading edge table: %v", err)), nil
			}
			edges = res.Edges
		} else {
			stored, err := cfg.Store.LoadEdges(ctx)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("loading stored edges: %v", err)), nil
			}
			for _, e := range stored {
				edges = append(edges, graph.Edge{Actor: e.Actor, Repo: e.Repo, At: e.StarredAt})
			}
		}

		detector, err := copycatch.FromEdges(params, edges)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("building detector: %v", err)), nil
		}

		g := detector.Graph()
		seed, ok := g.RepoID(repoName)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown repo %q", repoName)), nil
		}

		closest := detector.ClosestRepos(seed, params.M)
		names := make([]string, 0, len(closest))
		for _, id := range closest {
			names = append(names, g.RepoName(id))
		}

		result := map[string]interface{}{
			"seed":  repoName,
			"repos": names,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerCampaignsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("copycatch_campaigns",
		mcp.WithDescription("List stored campaigns from past detection runs, largest first. Optionally scope to a single run."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("run_id",
			mcp.Description("Restrict to one run. Empty = latest campaigns across runs."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum campaigns to return (default: 50, max: 200)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		limit := 50
		if v, err := req.RequireFloat("limit"); err == nil {
			limit = int(v)
			if limit > 200 {
				limit = 200
			}
		}

		var campaigns []*store.CampaignRecord
		var err error
		if v, reqErr := req.RequireFloat("run_id"); reqErr == nil && v > 0 {
			campaigns, err = st.ListCampaigns(ctx, int64(v))
		} else {
			campaigns, err = st.LatestCampaigns(ctx, limit)
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing campaigns: %v", err)), nil
		}

		data, _ := json.MarshalIndent(campaigns, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("copycatch_stats",
		mcp.WithDescription("Get CopyCatch store statistics: runs, campaigns, imported edges, and database size."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(stats, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerStatsResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"copycatch://stats",
		"Store Statistics",
		mcp.WithResourceDescription("Counts of detection runs, stored campaigns, and imported edges."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting stats: %w", err)
		}

		data, _ := json.MarshalIndent(stats, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

// toCampaignRecords resolves dense ids back to names for persistence
// and display.
func toCampaignRecords(g *graph.Index, campaigns []*copycatch.Campaign) []*store.CampaignRecord {
	records := make([]*store.CampaignRecord, 0, len(campaigns))
	for _, c := range campaigns {
		rec := &store.CampaignRecord{
			SeedRepo:    g.RepoName(c.Seed),
			WindowStart: c.Window.Start,
			WindowEnd:   c.Window.End,
			Converged:   c.Converged,
		}
		for _, a := range c.Actors {
			rec.Actors = append(rec.Actors, g.ActorName(a))
		}
		for _, r := range c.Repos {
			rec.Repos = append(rec.Repos, g.RepoName(r))
		}
		records = append(records, rec)
	}
	return records
}

func defaultDeltaDays(p copycatch.Params) int {
	return int(p.DeltaT / (24 * 60 * 60))
}
