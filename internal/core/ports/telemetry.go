package ports

import (
	"context"
	"io"
)

//go:generate mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Tracer is the entry point for recording install progress.
type Tracer interface {
	// Start creates a new span for a unit of work (one package fetch,
	// one script run).
	Start(ctx context.Context, name string) (context.Context, Span)
}

// Span represents a unit of work in the install pipeline.
type Span interface {
	io.Writer
	// End completes the span.
	End()
	// RecordError records an error for the span.
	RecordError(err error)
	// Cached marks the span's work as served from cache.
	Cached()
}
