package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"trendscout/internal/records"
)

// State is the pipeline's lifecycle position.
type State string

const (
	StateIdle      State = "idle"
	StateFiltering State = "filtering"
	StateAnalyzing State = "analyzing"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

const (
	DefaultBatchSize        = 5
	DefaultBatchDelay       = 2 * time.Second
	DefaultRateLimitBackoff = 60 * time.Second
	DefaultConcurrency      = 5
)

type Enricher interface {
	Enrich(ctx context.Context, r records.RepositoryRecord) records.EnrichedRecord
}

type Scorer interface {
	ScoreRecord(e records.EnrichedRecord) records.ScoredRecord
}

type Summarizer interface {
	Summarize(ctx context.Context, rec records.ScoredRecord) records.ScoredRecord
	Reset()
}

// PipelineOptions configures one Pipeline. Zero durations disable the
// corresponding wait.
type PipelineOptions struct {
	Languages        []string
	Exclude          []string
	BatchSize        int
	BatchDelay       time.Duration
	RateLimitBackoff time.Duration
	Concurrency      int
}

func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		BatchSize:        DefaultBatchSize,
		BatchDelay:       DefaultBatchDelay,
		RateLimitBackoff: DefaultRateLimitBackoff,
		Concurrency:      DefaultConcurrency,
	}
}

func (o PipelineOptions) validate() error {
	if o.BatchSize < 1 {
		return fmt.Errorf("batch size must be >= 1, got %d", o.BatchSize)
	}
	if o.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", o.Concurrency)
	}
	if o.BatchDelay < 0 || o.RateLimitBackoff < 0 {
		return errors.New("batch delay and rate-limit backoff must not be negative")
	}
	return nil
}

// Hooks receive pipeline progress. Nil hooks are skipped.
type Hooks struct {
	BatchStarted func(index, size int)
	BatchFailed  func(index, size int, err error)
	Scored       func(rec records.ScoredRecord)
}

// Result is the ranked output of one run.
type Result struct {
	Records []records.ScoredRecord
	Stats   records.RunStats
}

// Pipeline runs Filter, then per batch Enrich, Score and Summarize.
type Pipeline struct {
	opts       PipelineOptions
	enricher   Enricher
	scorer     Scorer
	summarizer Summarizer
	hooks      Hooks
	log        zerolog.Logger

	// resumeAt reports when GitHub accepts requests again; zero means now.
	resumeAt func() time.Time

	// sleep and now are test seams for the inter-batch delay.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu    sync.Mutex
	state State
}

type PipelineOption func(*Pipeline)

func WithSummarizer(s Summarizer) PipelineOption {
	return func(p *Pipeline) { p.summarizer = s }
}

func WithHooks(h Hooks) PipelineOption {
	return func(p *Pipeline) { p.hooks = h }
}

func WithPipelineLogger(log zerolog.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = log }
}

// WithResumeAt lets the rate-limit backoff stretch to the moment the request
// budget refills.
func WithResumeAt(fn func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.resumeAt = fn }
}

func NewPipeline(opts PipelineOptions, enricher Enricher, scorer Scorer, options ...PipelineOption) *Pipeline {
	p := &Pipeline{
		opts:     opts,
		enricher: enricher,
		scorer:   scorer,
		log:      zerolog.Nop(),
		sleep:    sleepContext,
		now:      time.Now,
		state:    StateIdle,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	p.log.Debug().Str("state", string(s)).Msg("pipeline state")
}

// Run analyzes input and returns every analyzed record ranked by score.
//
// A configuration error fails the run before any batch work. Context
// cancellation stops before the next batch; the partial result is returned
// together with the context error. Batch failures are reported through the
// statistics, never as an error.
func (p *Pipeline) Run(ctx context.Context, input []records.RepositoryRecord) (Result, error) {
	var res Result
	res.Stats.Input = len(input)

	if err := p.checkConfig(); err != nil {
		p.setState(StateFailed)
		return res, err
	}
	if p.summarizer != nil {
		p.summarizer.Reset()
	}

	p.setState(StateFiltering)
	filtered := FilterRecords(input, p.opts.Languages, p.opts.Exclude)
	res.Stats.Filtered = len(filtered)
	p.log.Info().Int("input", len(input)).Int("filtered", len(filtered)).Msg("records filtered")

	p.setState(StateAnalyzing)
	total := BatchCount(len(filtered), p.opts.BatchSize)
	var runErr error
	delay := p.opts.BatchDelay

	for idx, batch := range Batches(filtered, p.opts.BatchSize) {
		if idx > 0 {
			if err := p.sleep(ctx, delay); err != nil {
				runErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		res.Stats.Batches++
		if p.hooks.BatchStarted != nil {
			p.hooks.BatchStarted(idx, len(batch))
		}
		p.log.Debug().Int("batch", idx+1).Int("of", total).Int("size", len(batch)).Msg("batch started")

		out, err := p.runBatch(ctx, idx, batch)
		if err != nil {
			res.Stats.FailedBatches++
			p.log.Error().Err(err).Int("batch", idx+1).Int("records", len(batch)).Msg("batch failed; records omitted")
			if p.hooks.BatchFailed != nil {
				p.hooks.BatchFailed(idx, len(batch), err)
			}
			delay = p.opts.BatchDelay
			continue
		}

		rateLimited := false
		for _, rec := range out {
			res.Stats.Analyzed++
			if rec.Summary != nil {
				res.Stats.Summarized++
			}
			if rec.Degraded() {
				res.Stats.Degraded++
			}
			if rec.RateLimited() {
				res.Stats.RateLimited++
				rateLimited = true
			}
			if p.hooks.Scored != nil {
				p.hooks.Scored(rec)
			}
		}
		res.Records = append(res.Records, out...)

		delay = p.opts.BatchDelay
		if rateLimited {
			if backoff := p.rateLimitBackoff(ctx); backoff > delay {
				delay = backoff
				p.log.Warn().Dur("backoff", delay).Msg("rate limited; backing off before next batch")
			}
		}
	}

	slices.SortStableFunc(res.Records, func(a, b records.ScoredRecord) int {
		return cmp.Compare(b.Score, a.Score)
	})

	p.setState(StateDone)
	p.log.Info().
		Int("analyzed", res.Stats.Analyzed).
		Int("summarized", res.Stats.Summarized).
		Int("failed_batches", res.Stats.FailedBatches).
		Msg("analysis finished")
	return res, runErr
}

// rateLimitBackoff waits until the budget refills when that happens before
// the run deadline. Otherwise it waits the configured backoff and the
// remaining batches are enriched as far as the budget allows.
func (p *Pipeline) rateLimitBackoff(ctx context.Context) time.Duration {
	backoff := p.opts.RateLimitBackoff
	if p.resumeAt == nil {
		return backoff
	}
	at := p.resumeAt()
	if at.IsZero() {
		return backoff
	}
	now := p.now()
	wait := at.Sub(now)
	if wait <= backoff {
		return backoff
	}
	if deadline, ok := ctx.Deadline(); ok && at.After(deadline) {
		p.log.Warn().Time("resume_at", at).Msg("rate limit resets after the run deadline; continuing with degraded records")
		return backoff
	}
	return wait
}

func (p *Pipeline) checkConfig() error {
	if p.scorer == nil {
		return errors.New("pipeline: scorer is required")
	}
	if err := p.opts.validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// runBatch enriches and scores the batch concurrently, then summarizes in
// batch order. Any panic or error fails the whole batch.
func (p *Pipeline) runBatch(ctx context.Context, idx int, batch []records.RepositoryRecord) (out []records.ScoredRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("batch %d panicked: %v", idx+1, r)
		}
	}()

	scored := make([]records.ScoredRecord, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, rec := range batch {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s: panicked: %v", rec.FullName(), r)
				}
			}()
			scored[i] = p.scorer.ScoreRecord(p.enrich(gctx, rec))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if p.summarizer != nil {
		for i := range scored {
			scored[i] = p.summarizer.Summarize(ctx, scored[i])
		}
	}
	return scored, nil
}

func (p *Pipeline) enrich(ctx context.Context, r records.RepositoryRecord) records.EnrichedRecord {
	if p.enricher == nil {
		return records.Unenriched(r)
	}
	return p.enricher.Enrich(ctx, r)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
