package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trendscout/internal/config"
	"trendscout/internal/enrich"
	"trendscout/internal/fetcher"
	gh "trendscout/internal/github"
	"trendscout/internal/output"
	"trendscout/internal/records"
	"trendscout/internal/scoring"
	"trendscout/internal/summarizer"
	"trendscout/internal/trending"
)

func exitCodeForRun(fatal, partial bool) int {
	// 0 = clean run
	// 2 = partial (failed batches or interrupted)
	// 3 = fatal error (analysis did not run)
	if fatal {
		return 3
	}
	if partial {
		return 2
	}
	return 0
}

func setupOutputManager(cfg *config.Config, runID string, stdout io.Writer) (*output.Manager, error) {
	outMgr := output.NewManager(runID)
	add := func(s output.Sink, err error) error {
		if err == nil {
			err = outMgr.AddSink(s)
		}
		if err != nil {
			outMgr.Close()
		}
		return err
	}

	if !cfg.Output.NoConsole {
		if err := add(output.NewConsoleSink(stdout, cfg.Output.ConsoleFormat), nil); err != nil {
			return nil, err
		}
	}

	// Additional structured streams share stdout with the console.
	for _, emit := range cfg.Output.Emit {
		if err := add(output.NewEmitSink(stdout, emit)); err != nil {
			return nil, err
		}
	}

	if cfg.Output.Out != "" {
		if err := add(output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)); err != nil {
			return nil, err
		}
	}

	if cfg.Output.Report != "" {
		if err := add(output.NewReportSink(cfg.Output.Report, cfg.Interests.MinScore)); err != nil {
			return nil, err
		}
	}

	return outMgr, nil
}

type Engine struct {
	Client *gh.Client
	Log    zerolog.Logger

	stdout io.Writer
	stderr io.Writer

	// Test seams. When nil, Engine uses the trending scraper, the GitHub
	// enricher and the Gemini generator.
	loadInput    func(ctx context.Context, cfg *config.Config) ([]records.RepositoryRecord, error)
	newEnricher  func(cfg *config.Config) Enricher
	newGenerator func(ctx context.Context, cfg *config.Config) (summarizer.Generator, error)
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

// NewEngine returns an engine that enriches through client. A nil client
// leaves every record unenriched.
func NewEngine(client *gh.Client, log zerolog.Logger) *Engine {
	return &Engine{
		Client: client,
		Log:    log,
		stdout: os.Stdout,
		stderr: os.Stderr,
		now:    time.Now,
	}
}

// SetOutput redirects console and emit output (stdout) and progress messages
// (stderr). Nil writers are ignored.
func (e *Engine) SetOutput(stdout, stderr io.Writer) {
	if stdout != nil {
		e.stdout = stdout
	}
	if stderr != nil {
		e.stderr = stderr
	}
}

func (e *Engine) progress(cfg *config.Config, format string, args ...any) {
	if cfg.Output.NoConsole {
		return
	}
	fmt.Fprintf(e.stderr, format+"\n", args...)
}

func (e *Engine) input(ctx context.Context, cfg *config.Config) ([]records.RepositoryRecord, error) {
	if e.loadInput != nil {
		return e.loadInput(ctx, cfg)
	}
	if cfg.Source.Input != "" {
		e.progress(cfg, "Reading repositories from %s...", cfg.Source.Input)
		return trending.LoadFile(cfg.Source.Input)
	}
	scraper := trending.NewScraper(trending.WithBaseURL(cfg.Source.BaseURL), trending.WithLogger(e.Log))
	e.progress(cfg, "Fetching %s...", scraper.PageURL(cfg.Source.Language, cfg.Source.Since))
	return scraper.Fetch(ctx, cfg.Source.Language, cfg.Source.Since)
}

// enricher also returns the request budget it draws from, nil when no GitHub
// client is involved.
func (e *Engine) enricher(cfg *config.Config) (Enricher, *fetcher.RequestBudget) {
	if e.newEnricher != nil {
		return e.newEnricher(cfg), nil
	}
	if e.Client == nil {
		return nil, nil
	}
	budget := fetcher.NewRequestBudget()
	f := fetcher.NewFetcher(e.Client, budget)
	return enrich.New(enrich.GitHubSource{F: f},
		enrich.WithReadmeCap(cfg.Analysis.ReadmeMaxChars),
		enrich.WithLogger(e.Log, cfg.Runtime.Verbose),
	), budget
}

// summarizerFor returns nil when summaries are disabled.
func (e *Engine) summarizerFor(ctx context.Context, cfg *config.Config) (*summarizer.Summarizer, error) {
	if !cfg.Summary.Enabled {
		return nil, nil
	}
	var gen summarizer.Generator
	var err error
	if e.newGenerator != nil {
		gen, err = e.newGenerator(ctx, cfg)
	} else {
		if cfg.Summary.APIKey == "" {
			return nil, errors.New("summaries are enabled but no API key is set (GEMINI_API_KEY)")
		}
		gen, err = summarizer.NewGemini(ctx, cfg.Summary.APIKey, cfg.Summary.Model)
	}
	if err != nil {
		return nil, err
	}
	return summarizer.New(gen, cfg.Summary.Quota, e.Log), nil
}

func pipelineOptions(cfg *config.Config) PipelineOptions {
	return PipelineOptions{
		Languages:        cfg.Interests.Languages,
		Exclude:          cfg.Interests.Exclude,
		BatchSize:        cfg.Analysis.BatchSize,
		BatchDelay:       cfg.Analysis.BatchDelay,
		RateLimitBackoff: cfg.Analysis.RateLimitBackoff,
		Concurrency:      cfg.Analysis.Concurrency,
	}
}

func (e *Engine) dryRun(cfg *config.Config, input []records.RepositoryRecord) int {
	filtered := FilterRecords(input, cfg.Interests.Languages, cfg.Interests.Exclude)
	fmt.Fprintf(e.stdout, "Filtered repositories (%d of %d):\n", len(filtered), len(input))
	for _, r := range filtered {
		lang := r.Language
		if lang == "" {
			lang = "-"
		}
		fmt.Fprintf(e.stdout, "%s\t%s\n", r.FullName(), lang)
	}
	return exitCodeForRun(false, false)
}

// Run performs one complete analysis run and returns the process exit code.
func (e *Engine) Run(ctx context.Context, cfg *config.Config) int {
	ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()

	// Summary configuration fails before any network call.
	var sum *summarizer.Summarizer
	if !cfg.Runtime.DryRun {
		var err error
		if sum, err = e.summarizerFor(ctx, cfg); err != nil {
			fmt.Fprintf(e.stderr, "Error configuring summaries: %v\n", err)
			return exitCodeForRun(true, false)
		}
	}

	input, err := e.input(ctx, cfg)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error loading repositories: %v\n", err)
		return exitCodeForRun(true, false)
	}
	e.progress(cfg, "Found %d repositories.", len(input))

	if cfg.Runtime.DryRun {
		return e.dryRun(cfg, input)
	}

	runID := uuid.NewString()
	log := e.Log.With().Str("run_id", runID).Logger()
	outMgr, err := setupOutputManager(cfg, runID, e.stdout)
	if err != nil {
		fmt.Fprintf(e.stderr, "Error creating output sinks: %v\n", err)
		return exitCodeForRun(true, false)
	}
	defer func() {
		if err := outMgr.Close(); err != nil {
			log.Error().Err(err).Msg("closing output sinks")
		}
	}()
	warn := func(err error) {
		if err != nil {
			log.Warn().Err(err).Msg("writing output")
		}
	}

	warn(outMgr.Started(e.now(), len(input)))
	hooks := Hooks{
		BatchStarted: func(index, size int) { warn(outMgr.BatchStarted(index, size)) },
		BatchFailed:  func(index, size int, err error) { warn(outMgr.BatchFailed(index, size, err)) },
		Scored:       func(rec records.ScoredRecord) { warn(outMgr.Scored(rec)) },
	}
	popts := []PipelineOption{WithHooks(hooks), WithPipelineLogger(log)}
	if sum != nil {
		popts = append(popts, WithSummarizer(sum))
	}
	enr, budget := e.enricher(cfg)
	if budget != nil {
		popts = append(popts, WithResumeAt(budget.ResumeAt))
	}
	p := NewPipeline(pipelineOptions(cfg), enr, scoring.NewScorer(cfg.Interests.Keywords), popts...)
	if e.sleep != nil {
		p.sleep = e.sleep
	}

	e.progress(cfg, "Analyzing...")
	res, runErr := p.Run(ctx, input)

	fatal, partial := false, res.Stats.FailedBatches > 0
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			log.Warn().Err(runErr).Msg("run interrupted; reporting partial results")
			partial = true
		} else {
			fmt.Fprintf(e.stderr, "Error: %v\n", runErr)
			fatal = true
		}
	}

	warn(outMgr.Ranked(res.Records))
	code := exitCodeForRun(fatal, partial)
	warn(outMgr.Finished(e.now(), res.Stats, code))
	return code
}
