// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// --- test helpers ---

func testSetup(t *testing.T) (*Store, string) {
	t.Helper()
	tmpDir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(tmpDir, "knowledge", corpusDir), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := types.KnowledgeBaseConfig{
		KnowledgeDir: filepath.Join(tmpDir, "knowledge"),
		MaxResults:   20,
	}
	store, err := NewStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return store, tmpDir
}

func writeDocument(t *testing.T, tmpDir string, doc types.Document) string {
	t.Helper()
	data, err := yaml.Marshal(&doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(tmpDir, "knowledge", corpusDir, doc.SourceID+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sampleDocument(sourceID string) types.Document {
	return types.Document{
		SourceID: sourceID,
		Title:    "PICALM and amyloid clearance",
		Authors:  []string{"Smith, J.", "Doe, A."},
		Year:     2020,
		Venue:    "Neuron",
		Passages: []types.Passage{
			{Page: 1, Text: "PICALM mediates clathrin-dependent endocytosis in neurons."},
			{Page: 2, Text: "PICALM expression increases amyloid-beta clearance across the blood-brain barrier."},
			{Page: 3, Text: "Microglial TREM2 signalling was unaffected by PICALM knockdown."},
			{Page: 4, Text: "These results suggest a protective role in late-onset disease."},
		},
	}
}

func ingestHelper(t *testing.T, store *Store, tmpDir string, docs ...types.Document) {
	t.Helper()
	for _, d := range docs {
		writeDocument(t, tmpDir, d)
	}
	var buf strings.Builder
	if _, err := store.Ingest(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
}

// --- schema tests ---

func TestNewStoreCreatesSchema(t *testing.T) {
	store, _ := testSetup(t)

	tables := []string{"documents", "passages", "passages_fts", "indexing_status"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestNewStoreCreatesDBFile(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "knowledge", indexDir, dbFile)

	store, err := NewStore(types.KnowledgeBaseConfig{KnowledgeDir: filepath.Join(tmpDir, "knowledge")})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}
	if store.maxResults != DefaultMaxResults {
		t.Errorf("maxResults = %d, want %d", store.maxResults, DefaultMaxResults)
	}
}

// --- ingest tests ---

func TestIngest(t *testing.T) {
	tests := []struct {
		name        string
		docs        int
		wantIndexed int
	}{
		{"single document", 1, 1},
		{"multiple documents", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, tmpDir := testSetup(t)

			for i := 0; i < tt.docs; i++ {
				writeDocument(t, tmpDir, sampleDocument(fmt.Sprintf("doc-%d", i)))
			}

			var buf strings.Builder
			summary, err := store.Ingest(context.Background(), &buf)
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if summary.Indexed != tt.wantIndexed {
				t.Errorf("Indexed = %d, want %d", summary.Indexed, tt.wantIndexed)
			}
			if summary.Failed != 0 {
				t.Errorf("Failed = %d, want 0; output: %s", summary.Failed, buf.String())
			}

			docs, passages, err := store.Counts(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if docs != tt.docs || passages != 4*tt.docs {
				t.Errorf("Counts = (%d, %d), want (%d, %d)", docs, passages, tt.docs, 4*tt.docs)
			}
		})
	}
}

func TestIngestStoresAllFields(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir, sampleDocument("smith2020"))

	results, err := store.Search(context.Background(), QueryOptions{Query: `"clathrin"`})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	r := results[0]
	if r.ID != types.EvidenceID("smith2020", 0) {
		t.Errorf("ID = %q, want EvidenceID(smith2020, 0)", r.ID)
	}
	if r.SourceID != "smith2020" {
		t.Errorf("SourceID = %q", r.SourceID)
	}
	if r.Page == nil || *r.Page != 1 {
		t.Errorf("Page = %v, want 1", r.Page)
	}
	if r.Year == nil || *r.Year != 2020 {
		t.Errorf("Year = %v, want 2020", r.Year)
	}
	if r.Venue == nil || *r.Venue != "Neuron" {
		t.Errorf("Venue = %v, want Neuron", r.Venue)
	}
	if r.Citation != "Smith, J. et al. (2020). PICALM and amyloid clearance. Neuron" {
		t.Errorf("Citation = %q", r.Citation)
	}
	if r.Score <= 0 {
		t.Errorf("Score = %f, want > 0", r.Score)
	}
}

func TestIngestUsesFileNameWhenSourceIDMissing(t *testing.T) {
	store, tmpDir := testSetup(t)

	doc := sampleDocument("")
	data, _ := yaml.Marshal(&doc)
	path := filepath.Join(tmpDir, "knowledge", corpusDir, "lee2022.yml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	var buf strings.Builder
	if _, err := store.Ingest(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	results, err := store.Search(context.Background(), QueryOptions{SourceID: "lee2022"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Errorf("got %d passages for lee2022, want 4", len(results))
	}
}

func TestIngestWritesExportYAML(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir, sampleDocument("doc-export"))

	path := filepath.Join(tmpDir, "knowledge", indexDir, "export.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("export.yaml not written after ingestion")
	}
}

func TestIngestBadFileCountsAsFailed(t *testing.T) {
	store, tmpDir := testSetup(t)
	path := filepath.Join(tmpDir, "knowledge", corpusDir, "broken.yaml")
	if err := os.WriteFile(path, []byte("passages: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf strings.Builder
	summary, err := store.Ingest(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	if !strings.Contains(buf.String(), "failed  broken") {
		t.Errorf("output should report failure: %s", buf.String())
	}
}

// --- incremental update tests ---

func TestIngestSkipsUnchanged(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir, sampleDocument("doc-skip"))

	var buf strings.Builder
	summary, err := store.Ingest(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", summary.Skipped)
	}
	if summary.Indexed != 0 {
		t.Errorf("Indexed = %d, want 0", summary.Indexed)
	}
	if !strings.Contains(buf.String(), "skipped") {
		t.Errorf("output should contain 'skipped': %s", buf.String())
	}
}

func TestIngestUpdatesChanged(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir, sampleDocument("doc-update"))

	updated := sampleDocument("doc-update")
	updated.Passages = []types.Passage{{Page: 9, Text: "Revised passage about BIN1 and tau propagation."}}
	path := writeDocument(t, tmpDir, updated)

	future := time.Now().Add(time.Second)
	os.Chtimes(path, future, future)

	var buf strings.Builder
	summary, err := store.Ingest(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Updated != 1 {
		t.Errorf("Updated = %d, want 1", summary.Updated)
	}

	old, err := store.Search(context.Background(), QueryOptions{Query: `"clathrin"`})
	if err != nil {
		t.Fatal(err)
	}
	if len(old) != 0 {
		t.Errorf("old passages still indexed: %v", old)
	}
	fresh, err := store.Search(context.Background(), QueryOptions{Query: `"propagation"`})
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh) != 1 {
		t.Errorf("got %d results for new passage, want 1", len(fresh))
	}
}

func TestIngestCancelled(t *testing.T) {
	store, tmpDir := testSetup(t)
	writeDocument(t, tmpDir, sampleDocument("doc-cancel"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf strings.Builder
	if _, err := store.Ingest(ctx, &buf); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// --- retrieval tests ---

func TestRetrieveRanksByRelevance(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir, sampleDocument("smith2020"))

	results, err := store.Retrieve(context.Background(), types.RewriteResult{Rewritten: "PICALM amyloid clearance"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) < 2 {
		t.Fatalf("got %d results, want at least 2", len(results))
	}
	if !strings.Contains(results[0].Text, "amyloid-beta clearance") {
		t.Errorf("top result = %q, want the amyloid clearance passage", results[0].Text)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending score order at %d", i)
		}
	}
}

func TestRetrieveRespectsLimit(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir, sampleDocument("a"), sampleDocument("b"), sampleDocument("c"))

	results, err := store.Retrieve(context.Background(), types.RewriteResult{Rewritten: "PICALM"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestRetrieveFilters(t *testing.T) {
	store, tmpDir := testSetup(t)

	old := sampleDocument("old2012")
	old.Year = 2012
	old.Venue = "Cell"
	recent := sampleDocument("new2021")
	recent.Year = 2021
	undated := sampleDocument("undated")
	undated.Year = 0
	ingestHelper(t, store, tmpDir, old, recent, undated)

	tests := []struct {
		name    string
		filters types.FilterSet
		want    []string
	}{
		{"years", types.FilterSet{Years: &types.YearRange{Min: 2020, Max: 2024}}, []string{"new2021"}},
		{"venue case-insensitive", types.FilterSet{Venues: []string{"cell"}}, []string{"old2012"}},
		{"venue and years", types.FilterSet{Venues: []string{"Neuron"}, Years: &types.YearRange{Min: 2000, Max: 2030}}, []string{"new2021"}},
		{"none", types.FilterSet{}, []string{"new2021", "old2012", "undated"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.Retrieve(context.Background(),
				types.RewriteResult{Rewritten: "clathrin", Filters: tt.filters}, 10)
			if err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, r := range results {
				got = append(got, r.SourceID)
			}
			sort.Strings(got)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("sources = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetrievePunctuationIsSafe(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir, sampleDocument("smith2020"))

	_, err := store.Retrieve(context.Background(),
		types.RewriteResult{Rewritten: `PICALM "AND (tau* OR -NEAR` + "`"}, 5)
	if err != nil {
		t.Errorf("Retrieve with FTS5 syntax in query: %v", err)
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	store, _ := testSetup(t)
	results, err := store.Retrieve(context.Background(), types.RewriteResult{Rewritten: "?!"}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestSearchStructuredOrder(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir, sampleDocument("smith2020"))

	results, err := store.Search(context.Background(), QueryOptions{SourceID: "smith2020"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	for i, r := range results {
		if *r.Page != i+1 {
			t.Errorf("result %d page = %d, want %d", i, *r.Page, i+1)
		}
		if r.Score != 0 {
			t.Errorf("structured result score = %f, want 0", r.Score)
		}
	}
}

func TestMatchExpression(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"PICALM amyloid", `"picalm" OR "amyloid"`},
		{"APOE-ε4, apoe", `"apoe" OR "ε4"`},
		{`tau* "AND"`, `"tau" OR "and"`},
		{"  ", ""},
	}
	for _, tt := range tests {
		if got := MatchExpression(tt.in); got != tt.want {
			t.Errorf("MatchExpression(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- trace tests ---

func TestTrace(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir, sampleDocument("smith2020"))

	results, err := store.Search(context.Background(), QueryOptions{Query: `"endocytosis"`})
	if err != nil || len(results) != 1 {
		t.Fatalf("setup search: %v (%d results)", err, len(results))
	}
	second, err := store.Search(context.Background(), QueryOptions{Query: `"barrier"`})
	if err != nil || len(second) != 1 {
		t.Fatalf("setup search: %v (%d results)", err, len(second))
	}

	got, err := store.Trace(context.Background(), second[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	parts := strings.Split(got, "\n\n")
	if len(parts) != 3 {
		t.Fatalf("got %d context passages, want 3: %q", len(parts), got)
	}
	if parts[0] != results[0].Text {
		t.Errorf("first context passage = %q", parts[0])
	}
}

func TestTracePassageNotFound(t *testing.T) {
	store, _ := testSetup(t)
	_, err := store.Trace(context.Background(), "nope")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want not found", err)
	}
}

// --- export tests ---

func TestExportYAML(t *testing.T) {
	store, tmpDir := testSetup(t)
	ingestHelper(t, store, tmpDir, sampleDocument("smith2020"))

	if err := store.ExportYAML(context.Background(), QueryOptions{}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "knowledge", indexDir, "export.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var entries []types.EvidenceItem
	if err := yaml.Unmarshal(data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Errorf("got %d entries, want 4", len(entries))
	}
}

func TestExportJSONFiltered(t *testing.T) {
	store, tmpDir := testSetup(t)
	other := sampleDocument("lee2022")
	other.Year = 2022
	ingestHelper(t, store, tmpDir, sampleDocument("smith2020"), other)

	opts := QueryOptions{Years: &types.YearRange{Min: 2021, Max: 2023}}
	if err := store.ExportJSON(context.Background(), opts); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "knowledge", indexDir, "export.json"))
	if err != nil {
		t.Fatal(err)
	}
	var entries []types.EvidenceItem
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	for _, e := range entries {
		if e.SourceID != "lee2022" {
			t.Errorf("unexpected source %s in filtered export", e.SourceID)
		}
	}
}

func TestIngestSummaryTotal(t *testing.T) {
	s := IngestSummary{Indexed: 2, Updated: 1, Skipped: 3, Failed: 1}
	if s.Total() != 7 {
		t.Errorf("Total = %d, want 7", s.Total())
	}
}
