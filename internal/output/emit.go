package output

import (
	"fmt"
	"io"
	"sync"
)

// EmitSink writes a machine-readable copy of the run next to the console,
// usually on stdout. Combine with --no-console for a clean stream.
type EmitSink struct {
	mu     sync.Mutex
	w      io.Writer
	stream *structured
}

func NewEmitSink(w io.Writer, format string) (*EmitSink, error) {
	if w == nil {
		return nil, fmt.Errorf("emit sink writer must not be nil")
	}
	st, err := newStructured(format)
	if err != nil {
		return nil, fmt.Errorf("unsupported emit format: %s", format)
	}
	return &EmitSink{w: w, stream: st}, nil
}

func (s *EmitSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.write(s.w, v)
}

func (s *EmitSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.close(s.w)
}
