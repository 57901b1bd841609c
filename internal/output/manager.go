package output

import (
	"errors"
	"fmt"
	"time"

	"trendscout/internal/records"
)

// Sink receives run output: Event values and ranked records.ScoredRecord values.
type Sink interface {
	Write(v any) error
	Close() error
}

// Manager fans one run's output out to every configured sink and stamps
// lifecycle events with the run id.
type Manager struct {
	runID string
	sinks []Sink
}

func NewManager(runID string) *Manager {
	return &Manager{runID: runID}
}

func (m *Manager) RunID() string {
	if m == nil {
		return ""
	}
	return m.runID
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return errors.New("output manager is nil")
	}
	if s == nil {
		return errors.New("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sinks)
}

// Started announces a run over n input repositories.
func (m *Manager) Started(at time.Time, n int) error {
	return m.Write(Event{Type: EventRunStarted, RunID: m.RunID(), Time: at, Repos: n})
}

// BatchStarted and BatchFailed take the zero-based batch index; events carry
// it one-based.
func (m *Manager) BatchStarted(index, size int) error {
	return m.Write(Event{Type: EventBatchStarted, RunID: m.RunID(), Batch: index + 1, Size: size})
}

func (m *Manager) BatchFailed(index, size int, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return m.Write(Event{Type: EventBatchFailed, RunID: m.RunID(), Batch: index + 1, Size: size, Error: msg})
}

func (m *Manager) Scored(r records.ScoredRecord) error {
	return m.Write(ScoredEvent(m.RunID(), r))
}

// Ranked writes the final ordering, one record at a time, to the aggregate
// sinks. Every record is attempted even after a failure.
func (m *Manager) Ranked(recs []records.ScoredRecord) error {
	var errs []error
	for _, r := range recs {
		if err := m.Write(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) Finished(at time.Time, stats records.RunStats, exitCode int) error {
	return m.Write(Event{Type: EventRunFinished, RunID: m.RunID(), Time: at, Stats: &stats, ExitCode: exitCode})
}

// Write delivers v to every sink, even when an earlier sink fails.
func (m *Manager) Write(v any) error {
	if m == nil {
		return errors.New("output manager is nil")
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(v); err != nil {
			errs = append(errs, fmt.Errorf("write %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors writing to sinks: %w", errors.Join(errs...))
	}
	return nil
}

func (m *Manager) Close() error {
	if m == nil {
		return errors.New("output manager is nil")
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sinks: %w", errors.Join(errs...))
	}
	return nil
}
