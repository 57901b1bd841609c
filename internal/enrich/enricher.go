// Package enrich layers README text and repository metadata onto trending
// records. Failures degrade a single record and are never returned.
package enrich

import (
	"context"

	"github.com/rs/zerolog"

	"trendscout/internal/data"
	"trendscout/internal/fetcher"
	"trendscout/internal/records"
)

// DefaultReadmeCap bounds README text handed to scoring and summarization.
const DefaultReadmeCap = 5000

// Source is the enrichment transport. *fetcher.Fetcher backs it in production.
type Source interface {
	Readme(ctx context.Context, owner, name string) fetcher.Outcome[string]
	Metadata(ctx context.Context, owner, name string) fetcher.Outcome[*records.Metadata]
}

// GitHubSource adapts a Fetcher to Source.
type GitHubSource struct {
	F *fetcher.Fetcher
}

func (s GitHubSource) Readme(ctx context.Context, owner, name string) fetcher.Outcome[string] {
	return fetcher.Get[string](ctx, s.F, owner, name, data.DepRepoReadme)
}

func (s GitHubSource) Metadata(ctx context.Context, owner, name string) fetcher.Outcome[*records.Metadata] {
	return fetcher.Get[*records.Metadata](ctx, s.F, owner, name, data.DepRepoMetadata)
}

type Enricher struct {
	source    Source
	readmeCap int
	verbose   bool
	log       zerolog.Logger
}

type Option func(*Enricher)

func WithReadmeCap(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.readmeCap = n
		}
	}
}

func WithLogger(log zerolog.Logger, verbose bool) Option {
	return func(e *Enricher) {
		e.log = log
		e.verbose = verbose
	}
}

func New(source Source, opts ...Option) *Enricher {
	e := &Enricher{source: source, readmeCap: DefaultReadmeCap, log: zerolog.Nop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Enrich fetches README text and metadata for r. It always returns a record.
func (e *Enricher) Enrich(ctx context.Context, r records.RepositoryRecord) records.EnrichedRecord {
	out := records.Unenriched(r)
	if e == nil || e.source == nil || r.Owner == "" || r.Name == "" {
		return out
	}

	readme := e.source.Readme(ctx, r.Owner, r.Name)
	out.ReadmeStatus = e.status(r, "readme", readme.Failure, readme.Err)
	if readme.OK() {
		text := Truncate(readme.Value, e.readmeCap)
		out.Readme = &text
	}

	md := e.source.Metadata(ctx, r.Owner, r.Name)
	out.MetadataStatus = e.status(r, "metadata", md.Failure, md.Err)
	if md.OK() && md.Value != nil {
		cp := *md.Value
		cp.Topics = append([]string{}, md.Value.Topics...)
		out.Metadata = &cp
	}
	return out
}

func (e *Enricher) status(r records.RepositoryRecord, part string, f fetcher.Failure, err error) records.EnrichStatus {
	switch f {
	case fetcher.FailureNone:
		return records.EnrichOK
	case fetcher.FailureNotFound:
		e.log.Debug().Str("repo", r.FullName()).Str("part", part).Msg("enrichment not found")
		return records.EnrichNotFound
	case fetcher.FailureRateLimited:
		e.log.Warn().Str("repo", r.FullName()).Str("part", part).Msg("enrichment rate limited")
		return records.EnrichRateLimited
	default:
		e.log.Warn().Str("repo", r.FullName()).Str("part", part).Str("error", fetcher.Describe(err, e.verbose)).Msg("enrichment failed")
		return records.EnrichFailed
	}
}

// Truncate keeps the first n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
