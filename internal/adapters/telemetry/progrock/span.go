package progrock

import (
	"github.com/vito/progrock"
)

// Span implements ports.Span wrapping *progrock.VertexRecorder.
type Span struct {
	vertex *progrock.VertexRecorder
	err    error
}

// Write streams span output to the vertex's stdout.
func (s *Span) Write(p []byte) (n int, err error) {
	return s.vertex.Stdout().Write(p)
}

// RecordError attaches an error, reported when the span ends.
func (s *Span) RecordError(err error) {
	s.err = err
}

// End marks the vertex as finished with whatever error was recorded.
func (s *Span) End() {
	s.vertex.Done(s.err)
}

// Cached marks the vertex as a cache hit.
func (s *Span) Cached() {
	s.vertex.Cached()
}
