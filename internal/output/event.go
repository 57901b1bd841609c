package output

import (
	"time"

	"trendscout/internal/records"
)

// Lifecycle event types.
const (
	EventRunStarted   = "run.started"
	EventBatchStarted = "batch.started"
	EventBatchFailed  = "batch.failed"
	EventRepoScored   = "repo.scored"
	EventRunFinished  = "run.finished"
)

// Event is a lifecycle record for NDJSON streaming output.
//
// repo.scored events stream while batches complete, in processing order.
// Aggregate sinks (text, json, report) ignore them and consume the ranked
// records.ScoredRecord values written once the run is over.
type Event struct {
	Type     string                `json:"type"`
	RunID    string                `json:"run_id,omitempty"`
	Time     time.Time             `json:"time,omitzero"`
	Repo     string                `json:"repo,omitempty"`
	Result   *records.ScoredRecord `json:"result,omitempty"`
	Repos    int                   `json:"repos,omitempty"`
	Batch    int                   `json:"batch,omitempty"`
	Size     int                   `json:"size,omitempty"`
	Error    string                `json:"error,omitempty"`
	Stats    *records.RunStats     `json:"stats,omitempty"`
	ExitCode int                   `json:"exit_code,omitempty"`
}

func ScoredEvent(runID string, r records.ScoredRecord) Event {
	return Event{Type: EventRepoScored, RunID: runID, Repo: r.FullName(), Result: &r}
}
