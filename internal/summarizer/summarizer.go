// Package summarizer produces short rationales for high-scoring repositories
// under a per-run quota.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"trendscout/internal/records"
)

const DefaultQuota = 10

// Generator turns a scored record into a one-sentence summary.
type Generator interface {
	Generate(ctx context.Context, rec records.ScoredRecord, matched []string) (string, error)
}

type Summarizer struct {
	gen   Generator
	quota int
	log   zerolog.Logger

	mu     sync.Mutex
	issued int
}

func New(gen Generator, quota int, log zerolog.Logger) *Summarizer {
	if quota < 0 {
		quota = 0
	}
	return &Summarizer{gen: gen, quota: quota, log: log}
}

// Reset starts a new run.
func (s *Summarizer) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.issued = 0
	s.mu.Unlock()
}

// Issued reports how many summaries this run has produced.
func (s *Summarizer) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

func (s *Summarizer) Quota() int {
	return s.quota
}

// Summarize returns rec with a summary attached, or rec unchanged when it is
// ineligible, the quota is spent or generation fails.
func (s *Summarizer) Summarize(ctx context.Context, rec records.ScoredRecord) records.ScoredRecord {
	if s == nil || s.gen == nil || rec.Score <= 0 {
		return rec
	}
	if !s.reserve() {
		s.log.Debug().Str("repo", rec.FullName()).Msg("summary quota exhausted")
		return rec
	}

	text, err := s.gen.Generate(ctx, rec, append([]string(nil), rec.MatchedKeywords...))
	if err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			err = errors.New("empty summary")
		}
	}
	if err != nil {
		s.release()
		s.log.Warn().Str("repo", rec.FullName()).Err(err).Msg("summary generation failed")
		return rec
	}
	return rec.WithSummary(text)
}

func (s *Summarizer) reserve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issued >= s.quota {
		return false
	}
	s.issued++
	return true
}

func (s *Summarizer) release() {
	s.mu.Lock()
	if s.issued > 0 {
		s.issued--
	}
	s.mu.Unlock()
}

// Prompt renders the user prompt sent to the generation service.
func Prompt(rec records.ScoredRecord, matched []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", rec.FullName())
	if rec.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", rec.Language)
	}
	fmt.Fprintf(&b, "Description: %s\n", rec.Description)
	if topics := rec.TopicText(); topics != "" {
		fmt.Fprintf(&b, "Topics: %s\n", topics)
	}
	fmt.Fprintf(&b, "Matched interests: %s\n", strings.Join(matched, ", "))
	if readme := rec.ReadmeText(); readme != "" {
		b.WriteString("---\n")
		b.WriteString(readme)
	}
	return b.String()
}
