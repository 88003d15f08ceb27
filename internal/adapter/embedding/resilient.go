package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"palate/internal/domain"
	"palate/internal/logging"
	"palate/internal/metrics"
	"palate/internal/port"
)

// ResilientConfig tunes ResilientEmbedder.
type ResilientConfig struct {
	Timeout         time.Duration // per attempt
	MaxRetries      uint64
	InitialInterval time.Duration // first backoff delay, 0 for the library default
	BreakerFailures uint32        // consecutive transient failures that open the breaker
	BreakerCooldown time.Duration // time the breaker stays open
}

// ResilientEmbedder adds per-attempt timeouts, retries with exponential
// backoff and a circuit breaker to another Embedder. Only timeouts, network
// errors, 429 and 5xx responses are retried. It also enforces the vector dimension.
type ResilientEmbedder struct {
	inner   port.Embedder
	cfg     ResilientConfig
	breaker *gobreaker.CircuitBreaker[[][]float32]
}

func NewResilientEmbedder(inner port.Embedder, cfg ResilientConfig) *ResilientEmbedder {
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	name := "embedding:" + inner.ModelName()
	r := &ResilientEmbedder{inner: inner, cfg: cfg}
	r.breaker = gobreaker.NewCircuitBreaker[[][]float32](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// Permanent failures say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("embedding circuit breaker state changed")
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	return r
}

func (r *ResilientEmbedder) Dimension() int {
	return r.inner.Dimension()
}

func (r *ResilientEmbedder) ModelName() string {
	return r.inner.ModelName()
}

// State exposes the breaker state.
func (r *ResilientEmbedder) State() gobreaker.State {
	return r.breaker.State()
}

func (r *ResilientEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	b := backoff.NewExponentialBackOff()
	if r.cfg.InitialInterval > 0 {
		b.InitialInterval = r.cfg.InitialInterval
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.cfg.MaxRetries), ctx)

	var result [][]float32
	operation := func() error {
		vectors, err := r.breaker.Execute(func() ([][]float32, error) {
			return r.attempt(ctx, texts)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("embedding provider unavailable: %w", err))
			}
			if ctx.Err() != nil || !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = vectors
		return nil
	}

	notify := func(err error, wait time.Duration) {
		metrics.EmbeddingRetries.Inc()
		logging.Ctx(ctx).Debug().Err(err).Dur("wait", wait).Msg("retrying embedding request")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ResilientEmbedder) attempt(ctx context.Context, texts []string) ([][]float32, error) {
	attemptCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	vectors, err := r.inner.Embed(attemptCtx, texts)
	metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &attemptTimeout{err: err}
		}
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if err := domain.CheckDimension(v, r.inner.Dimension()); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}
	return vectors, nil
}

// attemptTimeout marks a single attempt that ran out of time while the
// caller's context was still live.
type attemptTimeout struct {
	err error
}

func (e *attemptTimeout) Error() string { return "embedding attempt timed out: " + e.err.Error() }
func (e *attemptTimeout) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var timeout *attemptTimeout
	if errors.As(err, &timeout) {
		return true
	}
	if IsRetryable(err) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrDimensionMismatch) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
