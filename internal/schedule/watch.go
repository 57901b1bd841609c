// Package schedule runs analysis on a cron schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job performs one full run and returns its exit code.
type Job func(ctx context.Context) int

type Watcher struct {
	spec       string
	schedule   cron.Schedule
	loc        *time.Location
	job        Job
	log        zerolog.Logger
	runOnStart bool

	runs atomic.Int64
}

type Option func(*Watcher)

func WithLogger(log zerolog.Logger) Option {
	return func(w *Watcher) { w.log = log }
}

// RunOnStart runs the job once immediately, before the first tick.
func RunOnStart(enabled bool) Option {
	return func(w *Watcher) { w.runOnStart = enabled }
}

// New validates spec (five-field cron or a descriptor like @daily) and timezone.
func New(spec, timezone string, job Job, opts ...Option) (*Watcher, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("--schedule is required")
	}
	if job == nil {
		return nil, errors.New("schedule: job is required")
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid --schedule %q: %w", spec, err)
	}
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid --timezone %q: %w", timezone, err)
	}

	w := &Watcher{spec: spec, schedule: sched, loc: loc, job: job, log: zerolog.Nop()}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Next returns the first tick after t.
func (w *Watcher) Next(t time.Time) time.Time {
	return w.schedule.Next(t.In(w.loc))
}

// Runs reports how many runs have started.
func (w *Watcher) Runs() int64 {
	return w.runs.Load()
}

// Run blocks until ctx is done. A tick that fires while the previous run is
// still going is skipped. The in-flight run is awaited before returning.
func (w *Watcher) Run(ctx context.Context) error {
	logger := cronLogger{log: w.log}
	c := cron.New(
		cron.WithLocation(w.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	job := cron.FuncJob(func() { w.runJob(ctx) })
	c.Schedule(w.schedule, job)

	if w.runOnStart {
		w.runJob(ctx)
	}

	c.Start()
	w.log.Info().Str("schedule", w.spec).Str("timezone", w.loc.String()).Time("next", w.Next(time.Now())).Msg("watching")

	<-ctx.Done()
	<-c.Stop().Done()
	w.log.Info().Int64("runs", w.Runs()).Msg("watch stopped")
	return nil
}

func (w *Watcher) runJob(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n := w.runs.Add(1)
	start := time.Now()
	code := w.job(ctx)
	ev := w.log.Info()
	if code != 0 {
		ev = w.log.Warn()
	}
	ev.Int64("run", n).Int("exit_code", code).Dur("took", time.Since(start).Truncate(time.Millisecond)).
		Time("next", w.Next(time.Now())).Msg("scheduled run finished")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
