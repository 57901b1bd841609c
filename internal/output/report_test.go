package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trendscout/internal/records"
)

func writeReport(t *testing.T, minScore int, values ...any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.md")
	s, err := NewReportSink(path, minScore)
	if err != nil {
		t.Fatalf("NewReportSink failed: %v", err)
	}
	for _, v := range values {
		if err := s.Write(v); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	return string(b)
}

func TestMarkdownReport(t *testing.T) {
	low := scoredRecord("acme", "low", 3)
	high := scoredRecord("acme", "high", 20).WithSummary("Runs LLM agents | at scale.")
	mid := scoredRecord("acme", "mid", 8)
	mid.ReadmeStatus = records.EnrichRateLimited
	stats := records.RunStats{Input: 25, Filtered: 5, Analyzed: 3, Summarized: 1, Degraded: 1, RateLimited: 1, Batches: 2, FailedBatches: 1}

	out := writeReport(t, 5,
		Event{Type: EventRunStarted, RunID: "run-123", Time: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)},
		Event{Type: EventBatchFailed, Batch: 2, Size: 2, Error: "batch 2 panicked: boom"},
		ScoredEvent("run-123", low),
		low, mid, high,
		Event{Type: EventRunFinished, Stats: &stats, ExitCode: 2},
	)

	for _, want := range []string{
		"# Trending Repository Report",
		"Run `run-123` started 2025-06-01T08:00:00Z.",
		"| Trending input | 25 |",
		"| Failed batches | 1 |",
		"2 filtered records are missing from this report",
		"Exit code: 2 (partial: some batches failed)",
		"- batch 2 (2 records): batch 2 panicked: boom",
		"## Matches (score ≥ 5)",
		"### 1. [acme/high](https://github.com/acme/high) · score 20",
		"> Runs LLM agents \\| at scale.",
		"★ 45,678 (+1,234)",
		"pushed 2 days ago",
		"- Topics: llm, agents",
		"### 2. [acme/mid]",
		"_README skipped (rate limited)_",
		"## Below threshold",
		"1 repositories scored below 5: acme/low",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "### 3.") {
		t.Fatalf("below-threshold records must not get a section:\n%s", out)
	}
}

func TestMarkdownReport_Empty(t *testing.T) {
	out := writeReport(t, 1)
	if !strings.Contains(out, "No repositories reached the threshold.") {
		t.Fatalf("unexpected empty report:\n%s", out)
	}
	if !strings.Contains(out, "Run did not finish; 0 records received.") {
		t.Fatalf("missing unfinished-run note:\n%s", out)
	}
	if strings.Contains(out, "## Below threshold") {
		t.Fatalf("unexpected below-threshold section:\n%s", out)
	}
}

func TestMarkdownReport_ZeroThresholdIncludesEverything(t *testing.T) {
	out := writeReport(t, 0, scoredRecord("a", "zero", 0), scoredRecord("a", "one", 1))
	if !strings.Contains(out, "### 1. [a/one]") || !strings.Contains(out, "### 2. [a/zero]") {
		t.Fatalf("expected both records ranked:\n%s", out)
	}
}

func TestFormatRepoList(t *testing.T) {
	var recs []records.ScoredRecord
	for _, n := range []string{"a", "b", "c", "d"} {
		recs = append(recs, scoredRecord("o", n, 0))
	}
	if got := formatRepoList(recs, 2); got != "o/a, o/b, +2 more" {
		t.Fatalf("unexpected list: %q", got)
	}
	if got := formatRepoList(recs[:1], 2); got != "o/a" {
		t.Fatalf("unexpected list: %q", got)
	}
}

func TestEnrichmentNote(t *testing.T) {
	e := records.EnrichedRecord{ReadmeStatus: records.EnrichNotFound, MetadataStatus: records.EnrichFailed}
	if got := enrichmentNote(e); got != "no README; metadata unavailable" {
		t.Fatalf("unexpected note: %q", got)
	}
	if got := enrichmentNote(records.EnrichedRecord{ReadmeStatus: records.EnrichOK, MetadataStatus: records.EnrichSkipped}); got != "" {
		t.Fatalf("expected empty note, got %q", got)
	}
}
