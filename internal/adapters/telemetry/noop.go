// Package telemetry provides tracer implementations for install progress.
package telemetry

import (
	"context"

	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

// NoOpTracer is a no-op implementation of ports.Tracer.
type NoOpTracer struct{}

var _ ports.Tracer = (*NoOpTracer)(nil)

func NewNoOpTracer() *NoOpTracer {
	return &NoOpTracer{}
}

// Start creates a new no-op span.
func (t *NoOpTracer) Start(ctx context.Context, _ string) (context.Context, ports.Span) {
	return ctx, &NoOpSpan{}
}

// NoOpSpan is a no-op implementation of ports.Span.
type NoOpSpan struct{}

func (s *NoOpSpan) End() {}

func (s *NoOpSpan) RecordError(_ error) {}

func (s *NoOpSpan) Cached() {}

func (s *NoOpSpan) Write(p []byte) (n int, err error) {
	return len(p), nil
}
