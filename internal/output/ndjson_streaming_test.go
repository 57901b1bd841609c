package output

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// expectStreamedLine writes through a large bufio.Writer; the line only arrives
// if the sink flushes after each event.
func expectStreamedLine(t *testing.T, write func(w io.Writer) error, want string) {
	t.Helper()
	pr, pw := io.Pipe()
	defer pr.Close()
	defer pw.Close()

	lineCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(pr).ReadString('\n')
		if err != nil {
			errCh <- err
			return
		}
		lineCh <- line
	}()

	if err := write(bufio.NewWriterSize(pw, 64*1024)); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	select {
	case line := <-lineCh:
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in line, got %q", want, line)
		}
	case err := <-errCh:
		t.Fatalf("read error: %v", err)
	case <-time.After(250 * time.Millisecond):
		t.Fatalf("timed out waiting for ndjson line; writer likely not flushing")
	}
}

func TestEmitSink_NDJSON_FlushesPerWrite(t *testing.T) {
	expectStreamedLine(t, func(w io.Writer) error {
		s, err := NewEmitSink(w, "ndjson")
		if err != nil {
			return err
		}
		return s.Write(Event{Type: EventRunStarted})
	}, `"type":"run.started"`)
}

func TestConsoleSink_NDJSON_FlushesPerWrite(t *testing.T) {
	expectStreamedLine(t, func(w io.Writer) error {
		return NewConsoleSink(w, "ndjson").Write(ScoredEvent("r", scoredRecord("org", "repo", 2)))
	}, `"repo":"org/repo"`)
}

func TestConsoleSink_Text_FlushesPerWrite(t *testing.T) {
	expectStreamedLine(t, func(w io.Writer) error {
		return NewConsoleSink(w, "text").Write(scoredRecord("org", "repo", 2))
	}, "org/repo")
}

func TestFileSink_NDJSON_WritesIncrementally(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	s, err := NewFileSink(path, "ndjson")
	if err != nil {
		t.Fatalf("NewFileSink returned error: %v", err)
	}
	defer func() { _ = s.Close() }()

	if err := s.Write(Event{Type: EventRunStarted}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	b1, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.HasSuffix(string(b1), "\n") || !strings.Contains(string(b1), `"type":"run.started"`) {
		t.Fatalf("expected run.started line after first Write, got %q", string(b1))
	}

	if err := s.Write(Event{Type: EventRunFinished}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	b2, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(b2)), "\n"); len(lines) != 2 {
		t.Fatalf("expected 2 ndjson lines after two Writes, got %d: %q", len(lines), string(b2))
	}
}
