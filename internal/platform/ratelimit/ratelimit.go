// Package ratelimit provides a composite sliding-window rate limiter: a
// global envelope plus optional per-resource windows, with a bounded
// concurrency semaphore. It is the Go analogue of the reference
// implementation's SlidingWindowDequeRateLimiterResourceExtended.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ghsnapshot/internal/platform/logger"
)

// RateLimit parameterizes a single sliding window: at most
// MaxRequestsPerTime admissions within any TimeWindowSeconds window, and
// (when MaxConcurrent is non-nil) no more than MaxConcurrent admissions
// in flight at once.
type RateLimit struct {
	MaxConcurrent      *int
	MaxRequestsPerTime int
	TimeWindowSeconds  int
}

// Validate checks the invariants spec.md §3 places on a RateLimit: a
// negative concurrency cap, or a non-positive rate or window, is a
// configuration error rather than a runtime one.
func (l RateLimit) Validate() error {
	if l.MaxConcurrent != nil && *l.MaxConcurrent < 0 {
		return fmt.Errorf("ratelimit: max_concurrent must be non-negative")
	}
	if l.MaxRequestsPerTime <= 0 {
		return fmt.Errorf("ratelimit: max_requests_per_time must be positive")
	}
	if l.TimeWindowSeconds <= 0 {
		return fmt.Errorf("ratelimit: time_window_seconds must be positive")
	}
	return nil
}

// Limiter admits a single logical request under whatever window(s) it
// enforces. Acquire blocks until admission is safe and returns a release
// func that the caller MUST invoke exactly once — typically via defer —
// on every exit path, including cancellation.
type Limiter interface {
	Acquire(ctx context.Context, reqID string) (release func(), err error)
}

// ResourceLimiter resolves a named resource (e.g. "search/repositories")
// to the Limiter that should gate it: the common limiter alone for unknown
// resources, or a union of [common, resource-specific...] otherwise.
type ResourceLimiter interface {
	For(resource string) Limiter
}

// defaultEpsilon is the small positive adjustment added to a computed sleep
// so that clock rounding cannot starve progress. spec.md §4.1 calls this ε.
const defaultEpsilon = time.Millisecond

// SlidingWindow is a single-resource sliding-window limiter: an ordered
// deque of admission timestamps, guarded by a mutex, plus an optional
// counting semaphore for MaxConcurrent. It is not safe to copy.
type SlidingWindow struct {
	log     logger.Logger
	limit   RateLimit
	epsilon time.Duration

	sem chan struct{} // nil when MaxConcurrent is unset

	mu   sync.Mutex
	seen []time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	metrics *Metrics
}

// Option customizes a SlidingWindow at construction.
type Option func(*SlidingWindow)

// WithEpsilon overrides the default 1ms forward-progress adjustment. A nil
// or zero value disables the adjustment, matching the source's
// timeout_adjustment=0 special case.
func WithEpsilon(eps time.Duration) Option {
	return func(s *SlidingWindow) { s.epsilon = eps }
}

// WithMetrics attaches a Metrics recorder; nil (the zero value) is a no-op.
func WithMetrics(m *Metrics) Option {
	return func(s *SlidingWindow) { s.metrics = m }
}

// NewSlidingWindow builds a SlidingWindow limiter from a validated RateLimit.
func NewSlidingWindow(log logger.Logger, limit RateLimit, opts ...Option) (*SlidingWindow, error) {
	if err := limit.Validate(); err != nil {
		return nil, err
	}
	s := &SlidingWindow{
		log:     log,
		limit:   limit,
		epsilon: defaultEpsilon,
		now:     time.Now,
		sleep:   sleepCtx,
	}
	if limit.MaxConcurrent != nil {
		s.sem = make(chan struct{}, *limit.MaxConcurrent)
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Acquire blocks until the request may proceed without violating the
// configured concurrency cap or sliding-window rate, per the algorithm in
// spec.md §4.1: wait for a concurrency permit (if any), then loop evicting
// stale timestamps and sleeping until the window has slack.
func (s *SlidingWindow) Acquire(ctx context.Context, reqID string) (func(), error) {
	if s.sem != nil {
		s.log.Debug().Str("req_id", reqID).Msg("ratelimit.semaphore.wait")
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		s.log.Debug().Str("req_id", reqID).Msg("ratelimit.semaphore.acquired")
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if s.sem != nil {
			<-s.sem
		}
	}

	for {
		t := s.now()
		wait, ok := s.tryAdmit(t)
		if ok {
			if s.metrics != nil {
				s.metrics.observeAdmit()
			}
			return release, nil
		}
		s.log.Debug().Str("req_id", reqID).Dur("wait", wait).Msg("ratelimit.window.sleep")
		if s.metrics != nil {
			s.metrics.observeWait(wait)
		}
		if err := s.sleep(ctx, wait); err != nil {
			release()
			return nil, err
		}
	}
}

// tryAdmit evicts stale timestamps and either admits t (returning ok=true)
// or reports how long the caller must wait before retrying.
func (s *SlidingWindow) tryAdmit(t time.Time) (wait time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := time.Duration(s.limit.TimeWindowSeconds) * time.Second
	cutoff := t.Add(-window)
	i := 0
	for i < len(s.seen) && s.seen[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		s.seen = s.seen[i:]
	}

	if len(s.seen) >= s.limit.MaxRequestsPerTime {
		head := s.seen[0]
		remaining := window - t.Sub(head)
		if remaining <= 0 {
			// Clock skew between the check and a concurrent mutation; retry
			// immediately rather than sleeping a negative duration.
			return 0, false
		}
		return remaining + s.epsilon, false
	}

	s.seen = append(s.seen, t)
	return 0, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
