package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pulse/internal/insights/models"
	"pulse/internal/insights/ports"
	"pulse/pkg/platform/circuit"
	"pulse/pkg/platform/sentinel"
)

// FallbackSource reads from a primary source and switches to a fallback
// once the breaker opens. Caller cancellation does not count as a failure.
type FallbackSource struct {
	primary  ports.RecordSource
	fallback ports.RecordSource
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

type FallbackOption func(*FallbackSource)

func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(f *FallbackSource) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithBreaker(b *circuit.Breaker) FallbackOption {
	return func(f *FallbackSource) {
		if b != nil {
			f.breaker = b
		}
	}
}

func NewFallbackSource(primary, fallback ports.RecordSource, opts ...FallbackOption) (*FallbackSource, error) {
	if primary == nil {
		return nil, errors.New("primary source is required")
	}
	if fallback == nil {
		return nil, errors.New("fallback source is required")
	}
	f := &FallbackSource{
		primary:  primary,
		fallback: fallback,
		breaker:  circuit.New("record-source"),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Degraded reports whether reads are currently served by the fallback.
func (f *FallbackSource) Degraded() bool {
	return f.breaker.IsOpen()
}

func (f *FallbackSource) AlignedRecords(ctx context.Context, filters models.FilterSignature) ([]models.AlignedRecord, error) {
	records, err := f.primary.AlignedRecords(ctx, filters)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		useFallback, change := f.breaker.RecordFailure()
		if change.Opened {
			f.logger.WarnContext(ctx, "record source circuit opened, serving fallback",
				"breaker", f.breaker.Name(),
				"error", err,
			)
		}
		if !useFallback {
			return nil, fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
		}
		return f.fallback.AlignedRecords(ctx, filters)
	}

	usePrimary, change := f.breaker.RecordSuccess()
	if change.Closed {
		f.logger.InfoContext(ctx, "record source circuit closed", "breaker", f.breaker.Name())
	}
	if !usePrimary {
		return f.fallback.AlignedRecords(ctx, filters)
	}
	return records, nil
}
