package output

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"trendscout/internal/records"
)

// ReportSink renders a Markdown report on Close. Records scoring below
// minScore are listed by name only.
type ReportSink struct {
	path     string
	file     *os.File
	minScore int
	mu       sync.Mutex

	records      []records.ScoredRecord
	failed       []Event
	runID        string
	started      time.Time
	stats        *records.RunStats
	exitCode     int
	haveExitCode bool
}

func NewReportSink(path string, minScore int) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return &ReportSink{path: path, file: f, minScore: minScore}, nil
}

func (s *ReportSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch t := v.(type) {
	case records.ScoredRecord:
		s.records = append(s.records, t)
	case Event:
		switch t.Type {
		case EventRunStarted:
			s.runID = t.RunID
			s.started = t.Time
		case EventBatchFailed:
			s.failed = append(s.failed, t)
		case EventRunFinished:
			s.stats = t.Stats
			s.exitCode = t.ExitCode
			s.haveExitCode = true
		}
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ranked := slices.Clone(s.records)
	slices.SortStableFunc(ranked, func(a, b records.ScoredRecord) int {
		return cmp.Compare(b.Score, a.Score)
	})
	var above, below []records.ScoredRecord
	for _, r := range ranked {
		if r.Score >= s.minScore {
			above = append(above, r)
		} else {
			below = append(below, r)
		}
	}

	var b strings.Builder
	b.WriteString("# Trending Repository Report\n\n")
	if s.runID != "" {
		fmt.Fprintf(&b, "Run `%s`", s.runID)
		if !s.started.IsZero() {
			fmt.Fprintf(&b, " started %s", s.started.UTC().Format(time.RFC3339))
		}
		b.WriteString(".\n\n")
	}

	b.WriteString("## Run statistics\n\n")
	writeStatsTable(&b, s.stats, len(s.records))
	if s.haveExitCode && s.exitCode != 0 {
		fmt.Fprintf(&b, "\nExit code: %d (%s)\n", s.exitCode, exitCodeMeaning(s.exitCode))
	}
	if len(s.failed) > 0 {
		b.WriteString("\n**Failed batches** (records omitted from this report):\n\n")
		for _, e := range s.failed {
			fmt.Fprintf(&b, "- batch %d (%d records): %s\n", e.Batch, e.Size, e.Error)
		}
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Matches (score ≥ %d)\n\n", s.minScore)
	if len(above) == 0 {
		b.WriteString("No repositories reached the threshold.\n\n")
	}
	for i, r := range above {
		writeRecordSection(&b, i+1, r)
	}

	if len(below) > 0 {
		fmt.Fprintf(&b, "## Below threshold\n\n%d repositories scored below %d: %s\n",
			len(below), s.minScore, formatRepoList(below, 10))
	}

	if _, err := s.file.WriteString(b.String()); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}

func writeRecordSection(b *strings.Builder, rank int, r records.ScoredRecord) {
	fmt.Fprintf(b, "### %d. [%s](%s) · score %d\n\n", rank, r.FullName(), r.URL, r.Score)
	if r.Description != "" {
		fmt.Fprintf(b, "%s\n\n", escapeMarkdown(r.Description))
	}
	if r.Summary != nil {
		fmt.Fprintf(b, "> %s\n\n", escapeMarkdown(*r.Summary))
	}

	var facts []string
	if r.Language != "" {
		facts = append(facts, r.Language)
	}
	facts = append(facts, fmt.Sprintf("★ %s (+%s)", humanize.Comma(int64(r.Stars)), humanize.Comma(int64(r.StarsGained))))
	facts = append(facts, fmt.Sprintf("%s forks", humanize.Comma(int64(r.Forks))))
	if md := r.Metadata; md != nil {
		facts = append(facts, fmt.Sprintf("%s open issues", humanize.Comma(int64(md.OpenIssues))))
		if !md.PushedAt.IsZero() {
			facts = append(facts, "pushed "+humanize.Time(md.PushedAt))
		}
	}
	fmt.Fprintf(b, "- %s\n", strings.Join(facts, " · "))
	if len(r.MatchedKeywords) > 0 {
		fmt.Fprintf(b, "- Matched: %s\n", strings.Join(r.MatchedKeywords, ", "))
	}
	if topics := r.TopicText(); topics != "" {
		fmt.Fprintf(b, "- Topics: %s\n", strings.ReplaceAll(topics, " ", ", "))
	}
	if note := enrichmentNote(r.EnrichedRecord); note != "" {
		fmt.Fprintf(b, "- _%s_\n", note)
	}
	b.WriteString("\n")
}
