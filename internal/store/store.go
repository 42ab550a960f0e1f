// Package store persists detection runs and campaigns in SQLite.
//
// All data lives in a single database file: imported star edges,
// detection runs with their parameters, and the campaigns each run
// produced. Campaign member lists are stored as JSON arrays of actor
// and repo names so rows stay readable with plain sqlite3.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.copycatch/copycatch.db"

// DefaultBatchSize is the insert batch size for bulk edge imports.
const DefaultBatchSize = 500

// Run records one detection sweep and the parameters it used.
type Run struct {
	ID        int64
	Source    string
	DeltaT    int64
	MinActors int
	MinRepos  int
	Rho       float64
	Beta      float64
	Edges     int
	Dropped   int
	Campaigns int
	CreatedAt time.Time
}

// CampaignRecord is a persisted campaign with member names resolved.
type CampaignRecord struct {
	ID          int64
	RunID       int64
	SeedRepo    string
	Actors      []string
	Repos       []string
	WindowStart int64
	WindowEnd   int64
	Converged   bool
	CreatedAt   time.Time
}

// EdgeRecord is one persisted star event.
type EdgeRecord struct {
	Actor     string
	Repo      string
	StarredAt int64
}

// Stats holds observability counters for the store.
type Stats struct {
	RunCount      int64
	CampaignCount int64
	EdgeCount     int64
	DBSizeBytes   int64
}

// Config holds configuration for Open.
type Config struct {
	DBPath    string
	BatchSize int
}

// Store defines the persistence interface.
type Store interface {
	SaveRun(ctx context.Context, r *Run) (int64, error)
	GetRun(ctx context.Context, id int64) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	SaveCampaigns(ctx context.Context, runID int64, campaigns []*CampaignRecord) error
	ListCampaigns(ctx context.Context, runID int64) ([]*CampaignRecord, error)
	LatestCampaigns(ctx context.Context, limit int) ([]*CampaignRecord, error)

	ReplaceEdges(ctx context.Context, source string, edges []EdgeRecord) error
	LoadEdges(ctx context.Context) ([]EdgeRecord, error)

	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db        *sql.DB
	dbPath    string
	batchSize int
}

// Open creates a SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func Open(cfg Config) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath, batchSize: cfg.BatchSize}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			source      TEXT NOT NULL,
			delta_t     INTEGER NOT NULL,
			min_actors  INTEGER NOT NULL,
			min_repos   INTEGER NOT NULL,
			rho         REAL NOT NULL,
			beta        REAL NOT NULL,
			edges       INTEGER NOT NULL DEFAULT 0,
			dropped     INTEGER NOT NULL DEFAULT 0,
			campaigns   INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS campaigns (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id        INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seed_repo     TEXT NOT NULL,
			actors        TEXT NOT NULL,
			repos         TEXT NOT NULL,
			window_start  INTEGER NOT NULL,
			window_end    INTEGER NOT NULL,
			converged     INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS edges (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			source      TEXT NOT NULL,
			actor       TEXT NOT NULL,
			repo        TEXT NOT NULL,
			starred_at  INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_campaigns_run ON campaigns(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_repo ON edges(repo)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run row and returns its id.
func (s *SQLiteStore) SaveRun(ctx context.Context, r *Run) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (source, delta_t, min_actors, min_repos, rho, beta, edges, dropped, campaigns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Source, r.DeltaT, r.MinActors, r.MinRepos, r.Rho, r.Beta, r.Edges, r.Dropped, r.Campaigns,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run insert id: %w", err)
	}
	return id, nil
}

// GetRun returns a run by id, or nil when not found.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*Run, error) {
	r := &Run{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, delta_t, min_actors, min_repos, rho, beta, edges, dropped, campaigns, created_at
		 FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Source, &r.DeltaT, &r.MinActors, &r.MinRepos, &r.Rho, &r.Beta,
		&r.Edges, &r.Dropped, &r.Campaigns, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %d: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, delta_t, min_actors, min_repos, rho, beta, edges, dropped, campaigns, created_at
		 FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*Run, 0, limit)
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(&r.ID, &r.Source, &r.DeltaT, &r.MinActors, &r.MinRepos, &r.Rho, &r.Beta,
			&r.Edges, &r.Dropped, &r.Campaigns, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// SaveCampaigns inserts all campaigns for a run in one transaction and
// updates the run's campaign count.
func (s *SQLiteStore) SaveCampaigns(ctx context.Context, runID int64, campaigns []*CampaignRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin campaign transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range campaigns {
		actorsJSON, err := json.Marshal(c.Actors)
		if err != nil {
			return fmt.Errorf("encoding campaign actors: %w", err)
		}
		reposJSON, err := json.Marshal(c.Repos)
		if err != nil {
			return fmt.Errorf("encoding campaign repos: %w", err)
		}
		converged := 0
		if c.Converged {
			converged = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO campaigns (run_id, seed_repo, actors, repos, window_start, window_end, converged)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, c.SeedRepo, string(actorsJSON), string(reposJSON),
			c.WindowStart, c.WindowEnd, converged,
		); err != nil {
			return fmt.Errorf("inserting campaign for seed %q: %w", c.SeedRepo, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET campaigns = ? WHERE id = ?`, len(campaigns), runID,
	); err != nil {
		return fmt.Errorf("updating run campaign count: %w", err)
	}
	return tx.Commit()
}

// ListCampaigns returns all campaigns for one run, largest first.
func (s *SQLiteStore) ListCampaigns(ctx context.Context, runID int64) ([]*CampaignRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, seed_repo, actors, repos, window_start, window_end, converged, created_at
		 FROM campaigns WHERE run_id = ?
		 ORDER BY json_array_length(actors) DESC, id ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing campaigns for run %d: %w", runID, err)
	}
	defer rows.Close()
	return scanCampaigns(rows)
}

// LatestCampaigns returns the most recently stored campaigns across runs.
func (s *SQLiteStore) LatestCampaigns(ctx context.Context, limit int) ([]*CampaignRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, seed_repo, actors, repos, window_start, window_end, converged, created_at
		 FROM campaigns ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing latest campaigns: %w", err)
	}
	defer rows.Close()
	return scanCampaigns(rows)
}

func scanCampaigns(rows *sql.Rows) ([]*CampaignRecord, error) {
	campaigns := make([]*CampaignRecord, 0, 64)
	for rows.Next() {
		c := &CampaignRecord{}
		var actorsRaw, reposRaw string
		var converged int
		if err := rows.Scan(&c.ID, &c.RunID, &c.SeedRepo, &actorsRaw, &reposRaw,
			&c.WindowStart, &c.WindowEnd, &converged, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning campaign row: %w", err)
		}
		if err := json.Unmarshal([]byte(actorsRaw), &c.Actors); err != nil {
			return nil, fmt.Errorf("decoding campaign %d actors: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(reposRaw), &c.Repos); err != nil {
			return nil, fmt.Errorf("decoding campaign %d repos: %w", c.ID, err)
		}
		c.Converged = converged != 0
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating campaigns: %w", err)
	}
	return campaigns, nil
}

// ReplaceEdges drops any previously imported edge table and inserts the
// new one in batches. The source tag records where the edges came from.
func (s *SQLiteStore) ReplaceEdges(ctx context.Context, source string, edges []EdgeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin edge import transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges`); err != nil {
		return fmt.Errorf("clearing edges: %w", err)
	}

	for start := 0; start < len(edges); start += s.batchSize {
		end := start + s.batchSize
		if end > len(edges) {
			end = len(edges)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO edges (source, actor, repo, starred_at) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing edge insert: %w", err)
		}
		for _, e := range edges[start:end] {
			if _, err := stmt.ExecContext(ctx, source, e.Actor, e.Repo, e.StarredAt); err != nil {
				stmt.Close()
				return fmt.Errorf("inserting edge %s -> %s: %w", e.Actor, e.Repo, err)
			}
		}
		stmt.Close()
	}
	return tx.Commit()
}

// LoadEdges returns all imported edges ordered by star time.
func (s *SQLiteStore) LoadEdges(ctx context.Context) ([]EdgeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT actor, repo, starred_at FROM edges ORDER BY starred_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("loading edges: %w", err)
	}
	defer rows.Close()

	edges := make([]EdgeRecord, 0, 1024)
	for rows.Next() {
		var e EdgeRecord
		if err := rows.Scan(&e.Actor, &e.Repo, &e.StarredAt); err != nil {
			return nil, fmt.Errorf("scanning edge row: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating edges: %w", err)
	}
	return edges, nil
}

// Stats returns row counts and database size.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	counts := []struct {
		query string
		dst   *int64
	}{
		{`SELECT COUNT(*) FROM runs`, &st.RunCount},
		{`SELECT COUNT(*) FROM campaigns`, &st.CampaignCount},
		{`SELECT COUNT(*) FROM edges`, &st.EdgeCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting rows: %w", err)
		}
	}

	if s.dbPath != ":memory:" {
		if info, err := os.Stat(s.dbPath); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}
	return st, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
