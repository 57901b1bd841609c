package output

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"trendscout/internal/records"
)

// structured implements the json and ndjson formats shared by the console,
// emit and file sinks. Callers serialize access.
//
//   - json: collects ranked records and writes one JSON array on close
//   - ndjson: streams Event values, one object per line
type structured struct {
	format  string
	records []records.ScoredRecord
}

func newStructured(format string) (*structured, error) {
	if format != "json" && format != "ndjson" {
		return nil, fmt.Errorf("unsupported structured format: %s", format)
	}
	return &structured{format: format, records: []records.ScoredRecord{}}, nil
}

func (s *structured) write(w io.Writer, v any) error {
	switch s.format {
	case "json":
		if r, ok := v.(records.ScoredRecord); ok {
			s.records = append(s.records, r)
		}
		return nil
	default:
		e, ok := v.(Event)
		if !ok {
			return nil
		}
		if err := json.NewEncoder(w).Encode(e); err != nil {
			return err
		}
		return flushIfPossible(w)
	}
}

func (s *structured) close(w io.Writer) error {
	if s.format != "json" {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.records); err != nil {
		return err
	}
	return flushIfPossible(w)
}

// formatForPath maps an output file extension onto a structured format.
func formatForPath(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return "json", nil
	case ".ndjson", ".jsonl":
		return "ndjson", nil
	default:
		return "", fmt.Errorf("cannot infer output format from file extension %q", ext)
	}
}

type flusher interface {
	Flush() error
}

// flushIfPossible pushes buffered output through, so NDJSON consumers see
// each event as soon as it is written.
func flushIfPossible(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
