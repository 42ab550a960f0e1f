package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/stargraph/copycatch/internal/config"
	"github.com/stargraph/copycatch/internal/copycatch"
	"github.com/stargraph/copycatch/internal/graph"
	"github.com/stargraph/copycatch/internal/ingest"
	"github.com/stargraph/copycatch/internal/logging"
	"github.com/stargraph/copycatch/internal/mcp"
	"github.com/stargraph/copycatch/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "detect":
		err = runDetect(os.Args[2:])
	case "closest":
		err = runClosest(os.Args[2:])
	case "campaigns":
		err = runCampaigns(os.Args[2:])
	case "import":
		err = runImportEdges(os.Args[2:])
	case "runs":
		err = runRuns(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("copycatch %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// detectFlags holds parsed CLI state shared by detect and closest.
type detectFlags struct {
	opts   config.ResolveOptions
	seed   string
	dryRun bool
	paths  []string
}

func parseDetectFlags(args []string) (*detectFlags, error) {
	f := &detectFlags{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		takesValue := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", arg)
			}
			i++
			return args[i], nil
		}

		var err error
		switch {
		case arg == "--dry-run" || arg == "-n":
			f.dryRun = true
		case arg == "--db":
			f.opts.CLIDBPath, err = takesValue()
		case arg == "--config":
			f.opts.ConfigPath, err = takesValue()
		case arg == "--delta-days":
			f.opts.CLIDeltaDays, err = takesValue()
		case arg == "--actors" || arg == "--min-actors":
			f.opts.CLIMinActors, err = takesValue()
		case arg == "--repos" || arg == "--min-repos":
			f.opts.CLIMinRepos, err = takesValue()
		case arg == "--rho":
			f.opts.CLIRho, err = takesValue()
		case arg == "--beta":
			f.opts.CLIBeta, err = takesValue()
		case arg == "--jobs" || arg == "-j":
			f.opts.CLIJobs, err = takesValue()
		case arg == "--seed":
			f.seed, err = takesValue()
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			f.paths = append(f.paths, arg)
		}
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

func setup(opts config.ResolveOptions) (config.ResolvedConfig, copycatch.Params, error) {
	cfg, err := config.ResolveConfig(opts)
	if err != nil {
		return cfg, copycatch.Params{}, err
	}

	level := logging.ParseLevel(cfg.LogLevel.Value)
	format := cfg.LogFormat.Value
	if format == "" {
		format = "text"
	}
	logging.Init(level, format)

	params, err := cfg.DetectionParams()
	if err != nil {
		return cfg, copycatch.Params{}, err
	}
	return cfg, params, nil
}

func openStore(cfg config.ResolvedConfig) (store.Store, error) {
	return store.Open(store.Config{DBPath: cfg.DBPath.Value})
}

func runDetect(args []string) error {
	f, err := parseDetectFlags(args)
	if err != nil {
		return err
	}
	if len(f.paths) != 1 {
		return fmt.Errorf("usage: copycatch detect <edges.csv> [flags]")
	}

	cfg, params, err := setup(f.opts)
	if err != nil {
		return err
	}
	if f.seed != "" {
		seed, err := strconv.ParseInt(f.seed, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid --seed %q", f.seed)
		}
		params.Seed = seed
	}

	res, err := ingest.ReadFile(f.paths[0])
	if err != nil {
		return err
	}
	if len(res.Edges) == 0 {
		return fmt.Errorf("no usable edges in %s", f.paths[0])
	}

	detector, err := copycatch.FromEdges(params, res.Edges)
	if err != nil {
		return err
	}

	ctx := context.Background()
	campaigns := detector.RunAll(ctx)
	g := detector.Graph()

	fmt.Printf("Analyzed %d edges (%d dropped): %d campaign(s)\n\n",
		len(res.Edges), res.Dropped, len(campaigns))
	for i, c := range campaigns {
		printCampaign(i+1, g, c)
	}

	if f.dryRun {
		fmt.Println("Dry run — nothing persisted")
		return nil
	}

	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	runID, err := s.SaveRun(ctx, &store.Run{
		Source:    f.paths[0],
		DeltaT:    params.DeltaT,
		MinActors: params.N,
		MinRepos:  params.M,
		Rho:       params.Rho,
		Beta:      params.Beta,
		Edges:     len(res.Edges),
		Dropped:   res.Dropped,
	})
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	if err := s.SaveCampaigns(ctx, runID, toRecords(g, campaigns)); err != nil {
		return fmt.Errorf("saving campaigns: %w", err)
	}
	fmt.Printf("Saved as run %d\n", runID)
	return nil
}

func runClosest(args []string) error {
	f, err := parseDetectFlags(args)
	if err != nil {
		return err
	}
	if len(f.paths) != 2 {
		return fmt.Errorf("usage: copycatch closest <edges.csv> <repo> [--repos m]")
	}

	_, params, err := setup(f.opts)
	if err != nil {
		return err
	}

	res, err := ingest.ReadFile(f.paths[0])
	if err != nil {
		return err
	}
	detector, err := copycatch.FromEdges(params, res.Edges)
	if err != nil {
		return err
	}

	g := detector.Graph()
	seed, ok := g.RepoID(f.paths[1])
	if !ok {
		return fmt.Errorf("unknown repo %q", f.paths[1])
	}

	for _, id := range detector.ClosestRepos(seed, params.M) {
		fmt.Println(g.RepoName(id))
	}
	return nil
}

func runCampaigns(args []string) error {
	f, err := parseDetectFlags(args)
	if err != nil {
		return err
	}

	cfg, _, err := setup(f.opts)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	ctx := context.Background()
	var campaigns []*store.CampaignRecord
	if len(f.paths) == 1 {
		runID, err := strconv.ParseInt(f.paths[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run id %q", f.paths[0])
		}
		campaigns, err = s.ListCampaigns(ctx, runID)
		if err != nil {
			return err
		}
	} else {
		campaigns, err = s.LatestCampaigns(ctx, 100)
		if err != nil {
			return err
		}
	}

	if len(campaigns) == 0 {
		fmt.Println("No campaigns stored")
		return nil
	}
	for _, c := range campaigns {
		fmt.Printf("#%d run=%d seed=%s actors=%d repos=%d window=[%d,%d) converged=%v\n",
			c.ID, c.RunID, c.SeedRepo, len(c.Actors), len(c.Repos),
			c.WindowStart, c.WindowEnd, c.Converged)
	}
	return nil
}

func runImportEdges(args []string) error {
	f, err := parseDetectFlags(args)
	if err != nil {
		return err
	}
	if len(f.paths) != 1 {
		return fmt.Errorf("usage: copycatch import <edges.csv>")
	}

	cfg, _, err := setup(f.opts)
	if err != nil {
		return err
	}

	res, err := ingest.ReadFile(f.paths[0])
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	records := make([]store.EdgeRecord, 0, len(res.Edges))
	for _, e := range res.Edges {
		records = append(records, store.EdgeRecord{Actor: e.Actor, Repo: e.Repo, StarredAt: e.At})
	}
	if err := s.ReplaceEdges(context.Background(), f.paths[0], records); err != nil {
		return fmt.Errorf("importing edges: %w", err)
	}
	fmt.Printf("Imported %d edges (%d dropped)\n", len(records), res.Dropped)
	return nil
}

func runRuns(args []string) error {
	f, err := parseDetectFlags(args)
	if err != nil {
		return err
	}
	cfg, _, err := setup(f.opts)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	runs, err := s.ListRuns(context.Background(), 50)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs stored")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("run %d: %s edges=%d dropped=%d campaigns=%d (delta=%dd n=%d m=%d rho=%.2f) %s\n",
			r.ID, r.Source, r.Edges, r.Dropped, r.Campaigns,
			r.DeltaT/(24*60*60), r.MinActors, r.MinRepos, r.Rho,
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runStats(args []string) error {
	f, err := parseDetectFlags(args)
	if err != nil {
		return err
	}
	cfg, _, err := setup(f.opts)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	stats, err := s.Stats(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Runs:      %d\n", stats.RunCount)
	fmt.Printf("Campaigns: %d\n", stats.CampaignCount)
	fmt.Printf("Edges:     %d\n", stats.EdgeCount)
	fmt.Printf("DB size:   %d bytes\n", stats.DBSizeBytes)
	return nil
}

func runServe(args []string) error {
	f, err := parseDetectFlags(args)
	if err != nil {
		return err
	}
	cfg, params, err := setup(f.opts)
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	srv := mcp.NewServer(mcp.ServerConfig{
		Store:   s,
		Params:  params,
		Version: version,
	})
	return mcp.Serve(srv)
}

func runConfig(args []string) error {
	f, err := parseDetectFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.ResolveConfig(f.opts)
	if err != nil {
		return err
	}

	fmt.Printf("Config file: %s\n\n", cfg.ConfigPath)
	printValue := func(name string, v config.ResolvedValue) {
		if v.Value == "" {
			fmt.Printf("  %-12s (default)\n", name)
			return
		}
		fmt.Printf("  %-12s %s  [%s: %s]\n", name, v.Value, v.Source, v.From)
	}
	printValue("db_path", cfg.DBPath)
	printValue("log_level", cfg.LogLevel)
	printValue("log_format", cfg.LogFormat)
	printValue("delta_days", cfg.DeltaDays)
	printValue("min_actors", cfg.MinActors)
	printValue("min_repos", cfg.MinRepos)
	printValue("rho", cfg.Rho)
	printValue("beta", cfg.Beta)
	printValue("jobs", cfg.Jobs)
	return nil
}

func printCampaign(n int, g *graph.Index, c *copycatch.Campaign) {
	fmt.Printf("Campaign %d (seed %s, converged=%v)\n", n, g.RepoName(c.Seed), c.Converged)
	fmt.Printf("  window: [%d, %d)\n", c.Window.Start, c.Window.End)

	repos := make([]string, 0, len(c.Repos))
	for _, id := range c.Repos {
		repos = append(repos, g.RepoName(id))
	}
	fmt.Printf("  repos (%d): %s\n", len(repos), strings.Join(repos, ", "))

	actors := make([]string, 0, len(c.Actors))
	for _, id := range c.Actors {
		actors = append(actors, g.ActorName(id))
	}
	const maxShown = 10
	if len(actors) > maxShown {
		fmt.Printf("  actors (%d): %s, ...\n", len(actors), strings.Join(actors[:maxShown], ", "))
	} else {
		fmt.Printf("  actors (%d): %s\n", len(actors), strings.Join(actors, ", "))
	}
	fmt.Println()
}

func toRecords(g *graph.Index, campaigns []*copycatch.Campaign) []*store.CampaignRecord {
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

func printUsage() {
	fmt.Printf(`copycatch %s — Lockstep detection for coordinated fake-star campaigns

Usage:
  copycatch <command> [arguments]

Commands:
  detect <edges.csv>          Run detection over a star-event edge table
  closest <edges.csv> <repo>  Show repos most co-starred with a seed repo
  campaigns [run-id]          List stored campaigns
  import <edges.csv>          Import edges into the database for later runs
  runs                        List stored detection runs
  stats                       Show store statistics
  serve                       Run the MCP server on stdio
  config                      Show effective configuration and sources
  version                     Print version

Detection Flags:
  --delta-days <d>    Time window size in days (default: %d)
  --actors <n>        Minimum actors per campaign (default: %d)
  --repos <m>         Repo set size per campaign (default: %d)
  --rho <r>           Minimum per-actor repo coverage in (0,1] (default: %g)
  --beta <b>          Iteration cap multiplier (default: %g)
  -j, --jobs <j>      Parallel seed workers (default: %d)
  --seed <s>          Shuffle seed order with this PRNG seed
  -n, --dry-run       Report campaigns without persisting

Flags:
  --config <path>     Config file (default: ~/.copycatch/config.yaml)
  --db <path>         Database file (default: ~/.copycatch/copycatch.db)
  -h, --help          Show this help message
  -v, --version       Print version
`, version,
		config.DefaultDeltaDays, config.DefaultMinActors, config.DefaultMinRepos,
		config.DefaultRho, config.DefaultBeta, config.DefaultJobs)
}
