// Package inference sends rendered prompts to the external text-generation
// service. The Gateway owns per-attempt deadlines, retries and exponential
// backoff; transports only perform a single outbound call.
package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/muhammadolammi/careercards/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Transport performs exactly one call to the text-generation service.
type Transport interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Sleeper waits between attempts. It must return early with ctx.Err() when ctx ends.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Gateway struct {
	transport      Transport
	maxAttempts    int
	baseDelay      time.Duration
	attemptTimeout time.Duration
	sleeper        Sleeper
	logger         *zap.Logger
	metrics        *metrics.Manager

	coalesce bool
	group    singleflight.Group
}

func New(transport Transport, opts ...Option) *Gateway {
	g := &Gateway{
		transport:      transport,
		maxAttempts:    DefaultMaxAttempts,
		baseDelay:      DefaultBaseDelay,
		attemptTimeout: DefaultAttemptTimeout,
		sleeper:        timerSleeper{},
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Infer returns the model text of the first successful attempt. Attempts run
// one after another; after attempt i fails the gateway waits baseDelay*2^(i-1)
// unless it was the last one. Cancelling ctx stops immediately with ErrCancelled
// and does not spend the remaining attempts.
func (g *Gateway) Infer(ctx context.Context, prompt string) (string, error) {
	if !g.coalesce {
		return g.infer(ctx, prompt)
	}

	// The shared loop must outlive any single caller that gives up.
	sum := sha256.Sum256([]byte(prompt))
	ch := g.group.DoChan(hex.EncodeToString(sum[:]), func() (any, error) {
		return g.infer(context.WithoutCancel(ctx), prompt)
	})
	select {
	case <-ctx.Done():
		return "", &Error{Kind: ErrCancelled, Cause: ctx.Err()}
	case res := <-ch:
		text, _ := res.Val.(string)
		return text, res.Err
	}
}

func (g *Gateway) infer(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	var (
		lastErr error
		lastRaw string
	)

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", g.cancelled(start, attempt-1, lastRaw, err)
		}

		text, err := g.attempt(ctx, prompt)
		if err == nil {
			g.metrics.InferenceAttempt("ok")
			g.metrics.InferenceResult("ok", time.Since(start))
			if attempt > 1 {
				g.logger.Info("inference succeeded after retry", zap.Int("attempt", attempt))
			}
			return text, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			g.metrics.InferenceAttempt(kindLabel(ErrCancelled))
			return "", g.cancelled(start, attempt, lastRaw, ctxErr)
		}

		kind := classify(err)
		g.metrics.InferenceAttempt(kindLabel(kind))
		lastRaw = rawText(err, text)
		lastErr = fmt.Errorf("attempt %d: %w", attempt, err)

		if attempt == g.maxAttempts {
			g.logger.Warn("inference attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", g.maxAttempts),
				zap.String("kind", kindLabel(kind)),
				zap.Error(err))
			break
		}

		delay := g.baseDelay << (attempt - 1)
		g.logger.Warn("inference attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.maxAttempts),
			zap.String("kind", kindLabel(kind)),
			zap.Duration("backoff", delay),
			zap.Error(err))
		if err := g.sleeper.Sleep(ctx, delay); err != nil {
			return "", g.cancelled(start, attempt, lastRaw, err)
		}
	}

	g.metrics.InferenceResult(kindLabel(ErrExhausted), time.Since(start))
	return "", &Error{Kind: ErrExhausted, Attempts: g.maxAttempts, LastRawText: lastRaw, Cause: lastErr}
}

// attempt runs one transport call under the per-attempt deadline. Failures come
// back wrapped with their kind.
func (g *Gateway) attempt(ctx context.Context, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	text, err := g.transport.Generate(attemptCtx, prompt)
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %w", ErrTimeout, g.attemptTimeout, err)
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) || errors.Is(err, ErrEmptyResponse) {
			return text, err
		}
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if strings.TrimSpace(text) == "" {
		return text, ErrEmptyResponse
	}
	return text, nil
}

func (g *Gateway) cancelled(start time.Time, attempts int, lastRaw string, cause error) error {
	g.metrics.InferenceResult(kindLabel(ErrCancelled), time.Since(start))
	g.logger.Info("inference cancelled", zap.Int("attempts", attempts), zap.Error(cause))
	return &Error{Kind: ErrCancelled, Attempts: attempts, LastRawText: lastRaw, Cause: cause}
}

func rawText(err error, text string) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Body
	}
	return text
}
