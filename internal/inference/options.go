package inference

import (
	"time"

	"github.com/muhammadolammi/careercards/internal/metrics"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = 2 * time.Second
	DefaultAttemptTimeout = 60 * time.Second
)

type Option func(*Gateway)

// WithMaxAttempts sets the attempt budget; values below 1 mean a single attempt.
func WithMaxAttempts(n int) Option {
	return func(g *Gateway) {
		if n < 1 {
			n = 1
		}
		g.maxAttempts = n
	}
}

// WithBaseDelay sets the first backoff delay; later delays double.
func WithBaseDelay(d time.Duration) Option {
	return func(g *Gateway) {
		if d >= 0 {
			g.baseDelay = d
		}
	}
}

func WithAttemptTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.attemptTimeout = d
		}
	}
}

func WithSleeper(s Sleeper) Option {
	return func(g *Gateway) {
		if s != nil {
			g.sleeper = s
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithMetrics(m *metrics.Manager) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithCoalescing makes concurrent calls with an identical prompt share one
// retry loop. Off by default.
func WithCoalescing(enabled bool) Option {
	return func(g *Gateway) { g.coalesce = enabled }
}
