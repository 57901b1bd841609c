package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"trendscout/internal/records"
)

const (
	consoleNameWidth = 40
	consoleLangWidth = 12
)

type ConsoleSink struct {
	writer io.Writer
	format string // "text", "json", "ndjson"
	mu     sync.Mutex
	stream *structured
	rank   int

	score   *color.Color
	zero    *color.Color
	muted   *color.Color
	warning *color.Color
}

func NewConsoleSink(w io.Writer, format string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}
	s := &ConsoleSink{
		writer:  w,
		format:  format,
		score:   color.New(color.FgGreen, color.Bold),
		zero:    color.New(color.Faint),
		muted:   color.New(color.FgHiBlack),
		warning: color.New(color.FgYellow),
	}
	if format == "json" || format == "ndjson" {
		s.stream, _ = newStructured(format)
	}
	return s
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json", "ndjson":
		return s.stream.write(s.writer, v)
	case "text":
		switch t := v.(type) {
		case records.ScoredRecord:
			s.rank++
			if err := s.writeRecord(t); err != nil {
				return err
			}
		case Event:
			if t.Type != EventRunFinished || t.Stats == nil {
				return nil
			}
			if err := s.writeStats(*t.Stats); err != nil {
				return err
			}
		default:
			return nil
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) writeRecord(r records.ScoredRecord) error {
	scoreColor := s.score
	if r.Score == 0 {
		scoreColor = s.zero
	}
	name := runewidth.FillRight(runewidth.Truncate(r.FullName(), consoleNameWidth, "…"), consoleNameWidth)
	lang := runewidth.FillRight(runewidth.Truncate(r.Language, consoleLangWidth, "…"), consoleLangWidth)

	line := fmt.Sprintf("%3d. %s  %s  %s  +%s★",
		s.rank,
		scoreColor.Sprintf("%4d", r.Score),
		name,
		lang,
		humanize.Comma(int64(r.StarsGained)),
	)
	if len(r.MatchedKeywords) > 0 {
		line += "  " + s.muted.Sprint(strings.Join(r.MatchedKeywords, ", "))
	}
	if r.Degraded() {
		line += "  " + s.warning.Sprint("(partial data)")
	}
	if _, err := fmt.Fprintln(s.writer, line); err != nil {
		return err
	}
	if r.Summary != nil {
		if _, err := fmt.Fprintf(s.writer, "      %s\n", *r.Summary); err != nil {
			return err
		}
	}
	return nil
}

func (s *ConsoleSink) writeStats(st records.RunStats) error {
	_, err := fmt.Fprintf(s.writer, "\n%d input, %d matched filters, %d analyzed, %d summarized",
		st.Input, st.Filtered, st.Analyzed, st.Summarized)
	if err != nil {
		return err
	}
	if st.Degraded > 0 {
		if _, err := fmt.Fprintf(s.writer, ", %d with partial data", st.Degraded); err != nil {
			return err
		}
	}
	if st.FailedBatches > 0 {
		if _, err := s.warning.Fprintf(s.writer, ", %d failed batches (%d records omitted)", st.FailedBatches, st.Omitted()); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(s.writer)
	return err
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json", "ndjson":
		return s.stream.close(s.writer)
	case "text":
		return nil
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}
