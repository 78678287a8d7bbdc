// Package ratelimit bounds outbound request rate per logical source. The
// limiter is the single synchronization point shared by all extractors for
// a source, so everything here must be safe for concurrent callers.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/AshishGautamKarn/sn-introspect/pkg/apperrors"
)

// Source identifies a logical request channel.
type Source string

const (
	SourceAPI      Source = "api"
	SourceDatabase Source = "database"
)

// Config expresses a rolling-window budget: at most Requests acquisitions
// within any Window.
type Config struct {
	Requests int
	Window   time.Duration
}

// DefaultConfig is 100 requests per 60 seconds.
func DefaultConfig() Config {
	return Config{Requests: 100, Window: 60 * time.Second}
}

// SourceLimiter holds one token bucket per source. Buckets are created at
// construction; acquiring for an unconfigured source falls back to the
// default budget.
type SourceLimiter struct {
	limiters map[Source]*rate.Limiter
}

// New builds a limiter with per-source budgets.
func New(configs map[Source]Config) *SourceLimiter {
	limiters := make(map[Source]*rate.Limiter, len(configs)+2)
	for src, cfg := range configs {
		limiters[src] = newBucket(cfg)
	}
	for _, src := range []Source{SourceAPI, SourceDatabase} {
		if _, ok := limiters[src]; !ok {
			limiters[src] = newBucket(DefaultConfig())
		}
	}
	return &SourceLimiter{limiters: limiters}
}

func newBucket(cfg Config) *rate.Limiter {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		cfg = DefaultConfig()
	}
	perSecond := float64(cfg.Requests) / cfg.Window.Seconds()
	return rate.NewLimiter(rate.Limit(perSecond), cfg.Requests)
}

// Acquire blocks until the source has capacity or ctx is done. Requests are
// never dropped: the caller either proceeds or gets an error.
func (l *SourceLimiter) Acquire(ctx context.Context, src Source) error {
	limiter := l.limiterFor(src)
	if err := limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return apperrors.RateLimited(string(src), err)
	}
	return nil
}

// AcquireWithin blocks like Acquire but gives up after the wait budget,
// returning a rate_limited error. Parent-context cancellation still
// propagates as a context error.
func (l *SourceLimiter) AcquireWithin(ctx context.Context, src Source, budget time.Duration) error {
	if budget <= 0 {
		return l.Acquire(ctx, src)
	}

	waitCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	limiter := l.limiterFor(src)
	if err := limiter.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.RateLimited(string(src), err)
	}
	return nil
}

// AllowAt reports whether one request would be admitted at time t without
// blocking. Used by tests driving a simulated clock.
func (l *SourceLimiter) AllowAt(t time.Time, src Source) bool {
	return l.limiterFor(src).AllowN(t, 1)
}

func (l *SourceLimiter) limiterFor(src Source) *rate.Limiter {
	if limiter, ok := l.limiters[src]; ok {
		return limiter
	}
	// Unconfigured sources share the API bucket rather than going unmetered.
	return l.limiters[SourceAPI]
}
