package ingest

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stargraph/copycatch/internal/graph"
)

func TestReadEpochTimestamps(t *testing.T) {
	csv := `actor,repo_name,starred_at
alice,org/one,1700000000
bob,org/two,1700000100
`
	res, err := Read(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	want := []graph.Edge{
		{Actor: "alice", Repo: "org/one", At: 1700000000},
		{Actor: "bob", Repo: "org/two", At: 1700000100},
	}
	if diff := cmp.Diff(want, res.Edges); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}
	if res.Dropped != 0 {
		t.Fatalf("expected no drops, got %d", res.Dropped)
	}
}

func TestReadRFC3339AndDateTimestamps(t *testing.T) {
	csv := `actor,repo_name,starred_at
alice,org/one,2023-11-14T22:13:20Z
bob,org/two,2023-11-14 22:15:00 UTC
carol,org/three,2023-11-15
`
	res, err := Read(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(res.Edges) != 3 {
		t.Fatalf("expected 3 edges, got %d (dropped %d)", len(res.Edges), res.Dropped)
	}
	if res.Edges[0].At != 1700000000 {
		t.Fatalf("RFC3339 parse: got %d, want 1700000000", res.Edges[0].At)
	}
}

func TestReadAlternateColumnNames(t *testing.T) {
	csv := `created_at,actor_login,repo
1700000000,alice,org/one
`
	res, err := Read(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(res.Edges) != 1 || res.Edges[0].Actor != "alice" || res.Edges[0].Repo != "org/one" {
		t.Fatalf("unexpected edges: %+v", res.Edges)
	}
}

func TestReadDropsMalformedRows(t *testing.T) {
	csv := `actor,repo_name,starred_at
alice,org/one,1700000000
,org/one,1700000000
bob,,1700000000
carol,org/two,not-a-time
dave,org/three,-5
eve,org/four,1700000400
`
	res, err := Read(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(res.Edges) != 2 {
		t.Fatalf("expected 2 surviving edges, got %d", len(res.Edges))
	}
	if res.Dropped != 4 {
		t.Fatalf("expected 4 dropped rows, got %d", res.Dropped)
	}
}

func TestReadShortRecordsDropped(t *testing.T) {
	csv := `actor,repo_name,starred_at
alice,org/one,1700000000
bob
`
	res, err := Read(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(res.Edges) != 1 || res.Dropped != 1 {
		t.Fatalf("expected 1 edge + 1 drop, got %d edges %d drops", len(res.Edges), res.Dropped)
	}
}

func TestReadMissingColumnFails(t *testing.T) {
	csv := `actor,stars
alice,12
`
	if _, err := Read(strings.NewReader(csv)); err == nil {
		t.Fatal("expected error for missing repo column")
	}
}

func TestReadEmptyInputFails(t *testing.T) {
	if _, err := Read(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "1700000000", want: 1700000000},
		{raw: "0", want: 0},
		{raw: "-1", wantErr: true},
		{raw: "2023-11-14T22:13:20Z", want: 1700000000},
		{raw: "", wantErr: true},
		{raw: "soon", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseTimestamp(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseTimestamp(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseTimestamp(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("parseTimestamp(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
