package lago

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// retryProvider wraps a Provider and automatically retries transient failures
// with exponential backoff.
type retryProvider struct {
	inner          Provider
	maxAttempts    int
	baseDelay      time.Duration
	timeout        time.Duration // overall timeout across all attempts; 0 = no limit
	attemptTimeout time.Duration // per-attempt deadline; 0 = no limit
	logger         *slog.Logger
}

// RetryOption configures a retryProvider.
type RetryOption func(*retryProvider)

// RetryMaxAttempts sets the maximum number of attempts (default: 3).
func RetryMaxAttempts(n int) RetryOption {
	return func(r *retryProvider) { r.maxAttempts = n }
}

// RetryBaseDelay sets the initial backoff delay before the second attempt (default: 1s).
// Each subsequent delay doubles: baseDelay, 2×baseDelay, 4×baseDelay, …
func RetryBaseDelay(d time.Duration) RetryOption {
	return func(r *retryProvider) { r.baseDelay = d }
}

// RetryTimeout sets the overall timeout for the entire retry sequence. The
// zero value (default) disables the timeout.
func RetryTimeout(d time.Duration) RetryOption {
	return func(r *retryProvider) { r.timeout = d }
}

// RetryAttemptTimeout bounds each individual attempt. An attempt that runs
// past its deadline counts as a transient failure and is retried, as long as
// the caller's context is still alive.
func RetryAttemptTimeout(d time.Duration) RetryOption {
	return func(r *retryProvider) { r.attemptTimeout = d }
}

// RetryLogger sets the structured logger for retry events. Retries log at
// WARN and final failures at ERROR.
func RetryLogger(l *slog.Logger) RetryOption {
	return func(r *retryProvider) { r.logger = l }
}

// WithRetry wraps p with automatic retry on transient failures: HTTP 429,
// 500, 502, 503, 504 and per-attempt deadline expiry. When the error carries
// a Retry-After duration, the delay is at least that long.
//
//	llm = lago.WithRetry(openaicompat.NewProvider(key, model, baseURL))
//	llm = lago.WithRetry(llm, lago.RetryMaxAttempts(5), lago.RetryAttemptTimeout(time.Minute))
func WithRetry(p Provider, opts ...RetryOption) Provider {
	r := newRetryConfig(opts)
	r.inner = p
	return r
}

func newRetryConfig(opts []RetryOption) *retryProvider {
	r := &retryProvider{
		maxAttempts: 3,
		baseDelay:   time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = nopLogger
	}
	if r.maxAttempts < 1 {
		r.maxAttempts = 1
	}
	return r
}

// Name delegates to the inner provider.
func (r *retryProvider) Name() string { return r.inner.Name() }

// Chat implements Provider with retry.
func (r *retryProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	ctx, cancel := withDeadline(ctx, r.timeout)
	defer cancel()
	return retryCall(ctx, r.maxAttempts, r.baseDelay, r.attemptTimeout, r.inner.Name(), r.logger,
		func(ctx context.Context) (ChatResponse, error) {
			return r.inner.Chat(ctx, req)
		})
}

// withDeadline returns a child context with a deadline d from now. If d is
// zero or ctx already has an earlier deadline, ctx is returned unchanged.
func withDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	deadline := time.Now().Add(d)
	if existing, ok := ctx.Deadline(); ok && existing.Before(deadline) {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline)
}

// IsTransient reports whether err is worth retrying: a 429 or 5xx gateway
// error from the backend.
func IsTransient(err error) bool {
	var e *ErrHTTP
	if !errors.As(err, &e) {
		return false
	}
	switch e.Status {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// statusOf extracts the HTTP status code from an ErrHTTP, or 0.
func statusOf(err error) int {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// retryAfterOf extracts the Retry-After duration from an ErrHTTP, or 0.
func retryAfterOf(err error) time.Duration {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// RetryDelay computes the delay before retry attempt i (0-indexed), using
// exponential backoff as a floor and the server's Retry-After value (if
// present) as a minimum.
func RetryDelay(base time.Duration, i int, err error) time.Duration {
	backoff := retryBackoff(base, i)
	if ra := retryAfterOf(err); ra > backoff {
		return ra
	}
	return backoff
}

// retryCall calls fn up to maxAttempts times, sleeping between transient
// failures. Each attempt gets its own deadline when attemptTimeout > 0.
func retryCall[T any](ctx context.Context, maxAttempts int, base, attemptTimeout time.Duration, name string, logger *slog.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var last error
	for i := 0; i < maxAttempts; i++ {
		actx, cancel := withDeadline(ctx, attemptTimeout)
		result, err := fn(actx)
		cancel()
		if err == nil {
			return result, nil
		}
		attemptExpired := attemptTimeout > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
		if !IsTransient(err) && !attemptExpired {
			return result, err
		}
		last = err
		logger.Warn("retrying transient error",
			"provider", name,
			"status", statusOf(err),
			"timeout", attemptExpired,
			"attempt", i+1,
			"max_attempts", maxAttempts)
		if i < maxAttempts-1 {
			if err := Sleep(ctx, RetryDelay(base, i, err)); err != nil {
				return zero, err
			}
		}
	}
	logger.Error("all retry attempts exhausted",
		"provider", name,
		"attempts", maxAttempts,
		"error", last)
	return zero, last
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryBackoff returns the delay for retry i (0-indexed).
// Exponential: base * 2^i, plus up to 50% random jitter.
func retryBackoff(base time.Duration, i int) time.Duration {
	if base <= 0 {
		return 0
	}
	exp := base * (1 << i)
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	return exp + jitter
}

// retryEmbeddingProvider wraps an EmbeddingProvider and automatically retries
// transient failures with exponential backoff.
type retryEmbeddingProvider struct {
	inner EmbeddingProvider
	cfg   *retryProvider
}

// WithEmbeddingRetry wraps p with automatic retry on transient failures.
// Accepts the same RetryOption functions as WithRetry.
//
//	emb = lago.WithEmbeddingRetry(openaicompat.NewEmbedding(key, model, baseURL))
func WithEmbeddingRetry(p EmbeddingProvider, opts ...RetryOption) EmbeddingProvider {
	return &retryEmbeddingProvider{inner: p, cfg: newRetryConfig(opts)}
}

func (r *retryEmbeddingProvider) Name() string    { return r.inner.Name() }
func (r *retryEmbeddingProvider) Dimensions() int { return r.inner.Dimensions() }

func (r *retryEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := withDeadline(ctx, r.cfg.timeout)
	defer cancel()
	return retryCall(ctx, r.cfg.maxAttempts, r.cfg.baseDelay, r.cfg.attemptTimeout, r.inner.Name(), r.cfg.logger,
		func(ctx context.Context) ([][]float32, error) {
			return r.inner.Embed(ctx, texts)
		})
}

// compile-time checks
var (
	_ Provider          = (*retryProvider)(nil)
	_ EmbeddingProvider = (*retryEmbeddingProvider)(nil)
)
