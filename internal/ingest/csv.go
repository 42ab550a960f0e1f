// Package ingest loads star-event edge tables from CSV files.
//
// The expected shape is header-driven: an actor column, a repo column,
// and a star-time column. Timestamps may be integer epoch seconds,
// RFC3339, or date/datetime strings. Rows that cannot be parsed are
// dropped and logged; ingestion never fails on a bad row.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stargraph/copycatch/internal/graph"
	"github.com/stargraph/copycatch/internal/logging"
)

var actorColumns = []string{"actor", "actor_login", "user", "login"}
var repoColumns = []string{"repo_name", "repo", "repository", "github"}
var timeColumns = []string{"starred_at", "created_at", "timestamp", "time"}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Result summarizes one CSV load.
type Result struct {
	Edges   []graph.Edge
	Dropped int
}

// ReadFile loads an edge table from a CSV file on disk.
func ReadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening edge table: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read loads an edge table from CSV content. The first row must be a
// header naming the actor, repo, and star-time columns.
func Read(r io.Reader) (*Result, error) {
	logger := logging.New("ingest")

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("edge table is empty")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	actorCol, err := findColumn(header, actorColumns)
	if err != nil {
		return nil, err
	}
	repoCol, err := findColumn(header, repoColumns)
	if err != nil {
		return nil, err
	}
	timeCol, err := findColumn(header, timeColumns)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Dropped++
			logger.Warn("dropping unreadable row", "row", row, "error", err)
			continue
		}

		edge, err := parseRow(record, row, actorCol, repoCol, timeCol)
		if err != nil {
			res.Dropped++
			logger.Warn("dropping malformed row", "row", row, "error", err)
			continue
		}
		res.Edges = append(res.Edges, edge)
	}

	if res.Dropped > 0 {
		logger.Warn("edge table loaded with dropped rows", "edges", len(res.Edges), "dropped", res.Dropped)
	}
	return res, nil
}

func parseRow(record []string, row, actorCol, repoCol, timeCol int) (graph.Edge, error) {
	if actorCol >= len(record) || repoCol >= len(record) || timeCol >= len(record) {
		return graph.Edge{}, &graph.MalformedEdgeError{Row: row, Reason: "short record"}
	}

	actor := strings.TrimSpace(record[actorCol])
	repo := strings.TrimSpace(record[repoCol])
	if actor == "" {
		return graph.Edge{}, &graph.MalformedEdgeError{Row: row, Reason: "missing actor"}
	}
	if repo == "" {
		return graph.Edge{}, &graph.MalformedEdgeError{Row: row, Reason: "missing repo"}
	}

	ts, err := parseTimestamp(record[timeCol])
	if err != nil {
		return graph.Edge{}, &graph.MalformedEdgeError{Row: row, Reason: err.Error()}
	}
	return graph.Edge{Actor: actor, Repo: repo, At: ts}, nil
}

// parseTimestamp accepts epoch seconds or a handful of date layouts.
func parseTimestamp(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("missing timestamp")
	}

	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative timestamp %d", secs)
		}
		return secs, nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("unparsable timestamp %q", raw)
}

func findColumn(header []string, names []string) (int, error) {
	for _, name := range names {
		for i, col := range header {
			if strings.EqualFold(strings.TrimSpace(col), name) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("no %s column in header %v", names[0], header)
}
