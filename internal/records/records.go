// Package records defines the values that flow through one analysis run.
//
// Each stage layers fields onto the previous stage's value and returns a new
// value; nothing here is mutated after being handed downstream.
package records

import (
	"strings"
	"time"
)

// RepositoryRecord is one entry of the trending list as produced by the extractor.
type RepositoryRecord struct {
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Language    string `json:"language,omitempty"`
	Description string `json:"description,omitempty"`
	// StarsGained is the popularity delta over the trending period.
	StarsGained int `json:"stars_gained"`
	Stars       int `json:"stars"`
	Forks       int `json:"forks"`
}

// FullName returns OWNER/NAME.
func (r RepositoryRecord) FullName() string {
	return r.Owner + "/" + r.Name
}

// EnrichStatus records what happened to one enrichment part of a record.
type EnrichStatus string

const (
	EnrichSkipped     EnrichStatus = "skipped"
	EnrichOK          EnrichStatus = "ok"
	EnrichNotFound    EnrichStatus = "not_found"
	EnrichRateLimited EnrichStatus = "rate_limited"
	EnrichFailed      EnrichStatus = "failed"
)

// Metadata holds repository metadata fetched during enrichment.
type Metadata struct {
	Topics     []string  `json:"topics"`
	OpenIssues int       `json:"open_issues"`
	Forks      int       `json:"forks"`
	Watchers   int       `json:"watchers"`
	PushedAt   time.Time `json:"pushed_at,omitzero"`
}

// EnrichedRecord is a RepositoryRecord plus optional supplementary content.
//
// Readme and Metadata are nil when absent. The status fields distinguish
// "fetched and found nothing" from "not fetched" and "fetch failed".
type EnrichedRecord struct {
	RepositoryRecord
	Readme         *string      `json:"readme,omitempty"`
	Metadata       *Metadata    `json:"metadata,omitempty"`
	ReadmeStatus   EnrichStatus `json:"readme_status"`
	MetadataStatus EnrichStatus `json:"metadata_status"`
}

// Unenriched wraps a record with every enrichment part marked skipped.
func Unenriched(r RepositoryRecord) EnrichedRecord {
	return EnrichedRecord{
		RepositoryRecord: r,
		ReadmeStatus:     EnrichSkipped,
		MetadataStatus:   EnrichSkipped,
	}
}

// Degraded reports whether any enrichment part failed or was rate limited.
func (e EnrichedRecord) Degraded() bool {
	return isFailure(e.ReadmeStatus) || isFailure(e.MetadataStatus)
}

// RateLimited reports whether any enrichment part hit a rate limit.
func (e EnrichedRecord) RateLimited() bool {
	return e.ReadmeStatus == EnrichRateLimited || e.MetadataStatus == EnrichRateLimited
}

func isFailure(s EnrichStatus) bool {
	return s == EnrichFailed || s == EnrichRateLimited
}

// ReadmeText returns the README text or "" when absent.
func (e EnrichedRecord) ReadmeText() string {
	if e.Readme == nil {
		return ""
	}
	return *e.Readme
}

// TopicText returns the topic tags joined into a single field, or "" when absent.
func (e EnrichedRecord) TopicText() string {
	if e.Metadata == nil {
		return ""
	}
	return strings.Join(e.Metadata.Topics, " ")
}

// ScoredRecord is an EnrichedRecord plus its relevance result.
type ScoredRecord struct {
	EnrichedRecord
	Score           int      `json:"score"`
	MatchedKeywords []string `json:"matched_keywords"`
	Summary         *string  `json:"summary,omitempty"`
}

// WithSummary returns a copy of s carrying the given summary.
func (s ScoredRecord) WithSummary(summary string) ScoredRecord {
	out := s
	out.MatchedKeywords = append([]string(nil), s.MatchedKeywords...)
	out.Summary = &summary
	return out
}

// RunStats summarizes one pipeline run for diagnostics and reporting.
//
// Analyzed < Filtered means at least one batch was dropped.
type RunStats struct {
	Input         int `json:"input"`
	Filtered      int `json:"filtered"`
	Analyzed      int `json:"analyzed"`
	Summarized    int `json:"summarized"`
	Degraded      int `json:"degraded"`
	RateLimited   int `json:"rate_limited"`
	Batches       int `json:"batches"`
	FailedBatches int `json:"failed_batches"`
}

// Omitted returns how many filtered records are missing from the output.
func (s RunStats) Omitted() int {
	return s.Filtered - s.Analyzed
}
