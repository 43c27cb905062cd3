package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nerrad567/spbnode/internal/infrastructure/config"
	"github.com/nerrad567/spbnode/internal/sparkplug"
)

// ErrInvalidConfig is returned by New for a non-positive interval or a
// negative count.
var ErrInvalidConfig = errors.New("publisher: invalid configuration")

// Publisher is the part of a session the loop drives.
type Publisher interface {
	Publish(ctx context.Context, values sparkplug.Values) error
}

// Generator returns the metric values of the i-th message, counting from 0.
type Generator func(i int) sparkplug.Values

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loop publishes generated values at a fixed interval.
type Loop struct {
	pub      Publisher
	gen      Generator
	interval time.Duration
	count    int
	logger   Logger
}

// New creates a Loop.
//
// Parameters:
//   - pub: Target of the publishes, usually a *session.Session
//   - gen: Produces the values of each message
//   - cfg: Interval between messages and message count (0 = until cancelled)
//
// Returns:
//   - *Loop: Loop ready to Run
//   - error: ErrInvalidConfig, or if pub or gen is nil
func New(pub Publisher, gen Generator, cfg config.PublisherConfig, opts ...Option) (*Loop, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %v", ErrInvalidConfig, cfg.Interval)
	}
	if cfg.Count < 0 {
		return nil, fmt.Errorf("%w: count must not be negative, got %d", ErrInvalidConfig, cfg.Count)
	}

	l := &Loop{
		pub:      pub,
		gen:      gen,
		interval: cfg.Interval,
		count:    cfg.Count,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run publishes the first message immediately and the rest on each tick.
//
// Returns:
//   - error: nil when the count is reached or ctx is cancelled, otherwise the
//     first publish error wrapped with the message index
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for i := 0; l.count == 0 || i < l.count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
		}
		if ctx.Err() != nil {
			l.logger.Info("publisher stopped", "sent", i)
			return nil
		}

		values := l.gen(i)
		if err := l.pub.Publish(ctx, values); err != nil {
			return fmt.Errorf("publishing message %d: %w", i, err)
		}
		l.logger.Debug("message published", "index", i, "metrics", len(values))
	}

	l.logger.Info("publisher finished", "sent", l.count)
	return nil
}

// CounterGenerator fills every metric of schema from the message index:
// strings become "message nr i", int32 metrics i and floats i/100.
func CounterGenerator(schema *sparkplug.Schema) Generator {
	defs := schema.Metrics()
	return func(i int) sparkplug.Values {
		values := make(sparkplug.Values, len(defs))
		for _, d := range defs {
			switch d.Type {
			case sparkplug.TypeString:
				values[d.Name] = fmt.Sprintf("message nr %d", i)
			case sparkplug.TypeInt32:
				values[d.Name] = int32(i) //nolint:gosec // G115: message index stays far below MaxInt32
			case sparkplug.TypeFloat:
				values[d.Name] = float32(i) / 100
			}
		}
		return values
	}
}
