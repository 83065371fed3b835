package lago

import (
	"context"
	"sync"
	"time"
)

// rateLimitProvider wraps a Provider with proactive rate limiting.
// Requests block until the per-minute budget allows them to proceed.
type rateLimitProvider struct {
	inner Provider

	mu       sync.Mutex
	rpm      int
	tpm      int
	requests window // one unit per request
	tokens   window // input + output tokens per response
}

// window is a one-minute sliding window of weighted events, oldest first.
type window []windowEntry

type windowEntry struct {
	at     time.Time
	weight int
}

func (w window) prune(cutoff time.Time) window {
	i := 0
	for i < len(w) && w[i].at.Before(cutoff) {
		i++
	}
	return w[i:]
}

func (w window) total() int {
	var n int
	for _, e := range w {
		n += e.weight
	}
	return n
}

// freesAt returns when the oldest entry leaves the window.
func (w window) freesAt() time.Time {
	if len(w) == 0 {
		return time.Time{}
	}
	return w[0].at.Add(time.Minute)
}

// RateLimitOption configures a rateLimitProvider.
type RateLimitOption func(*rateLimitProvider)

// RPM sets the maximum requests per minute.
func RPM(n int) RateLimitOption {
	return func(r *rateLimitProvider) { r.rpm = n }
}

// TPM sets the maximum tokens per minute (input + output combined), counted
// from ChatResponse.Usage. The request that crosses the budget completes;
// later requests wait for the window to slide.
func TPM(n int) RateLimitOption {
	return func(r *rateLimitProvider) { r.tpm = n }
}

// WithRateLimit wraps p with proactive rate limiting. A planning run issues
// up to three calls per task, so a shared budget keeps concurrent runs from
// tripping the backend's own limits:
//
//	llm = lago.WithRateLimit(provider, lago.RPM(60))
//	llm = lago.WithRetry(lago.WithRateLimit(provider, lago.RPM(60), lago.TPM(90000)))
func WithRateLimit(p Provider, opts ...RateLimitOption) Provider {
	r := &rateLimitProvider{inner: p}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *rateLimitProvider) Name() string { return r.inner.Name() }

func (r *rateLimitProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if err := r.acquire(ctx); err != nil {
		return ChatResponse{}, err
	}
	resp, err := r.inner.Chat(ctx, req)
	if err == nil {
		r.record(resp.Usage)
	}
	return resp, err
}

// acquire blocks until both budgets allow a request, then records it.
func (r *rateLimitProvider) acquire(ctx context.Context) error {
	for {
		wait, ok := r.tryAcquire(time.Now())
		if ok {
			return nil
		}
		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *rateLimitProvider) tryAcquire(now time.Time) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-time.Minute)
	r.requests = r.requests.prune(cutoff)
	r.tokens = r.tokens.prune(cutoff)

	rpmOK := r.rpm <= 0 || len(r.requests) < r.rpm
	tpmOK := r.tpm <= 0 || r.tokens.total() < r.tpm
	if rpmOK && tpmOK {
		if r.rpm > 0 {
			r.requests = append(r.requests, windowEntry{at: now, weight: 1})
		}
		return 0, true
	}

	var wait time.Duration
	if !rpmOK {
		wait = r.requests.freesAt().Sub(now)
	}
	if !tpmOK {
		if w := r.tokens.freesAt().Sub(now); wait == 0 || w < wait {
			wait = w
		}
	}
	if wait <= 0 {
		wait = 10 * time.Millisecond
	}
	return wait, false
}

func (r *rateLimitProvider) record(u Usage) {
	if r.tpm <= 0 {
		return
	}
	total := u.InputTokens + u.OutputTokens
	if total <= 0 {
		return
	}
	r.mu.Lock()
	r.tokens = append(r.tokens, windowEntry{at: time.Now(), weight: total})
	r.mu.Unlock()
}

// compile-time check
var _ Provider = (*rateLimitProvider)(nil)
