package output

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink writes the run to --out. The file is replaced on every run, so a
// watch loop always leaves the latest ranking behind.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	stream *structured
}

// NewFileSink creates path and its directory. An empty format is inferred
// from the extension.
func NewFileSink(path string, format string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}
	if format == "" {
		inferred, err := formatForPath(path)
		if err != nil {
			return nil, err
		}
		format = inferred
	}
	st, err := newStructured(format)
	if err != nil {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &FileSink{file: f, buf: bufio.NewWriter(f), stream: st}, nil
}

func (s *FileSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.write(s.buf, v)
}

// Close finishes the stream (the json array is only written here), then
// flushes and closes the file. The first error wins.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	errs := []error{s.stream.close(s.buf), s.buf.Flush(), s.file.Close()}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
