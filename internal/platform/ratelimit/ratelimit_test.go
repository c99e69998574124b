package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ghsnapshot/internal/platform/logger"
)

// requestRecord mirrors the reference test's RequestInHistory: one entry
// per start/end edge of a limited request, used to reconstruct how many
// requests were concurrently in flight at any point.
type requestRecord struct {
	id    int
	state string // "start" or "end"
}

type limitCheckBackend struct {
	limiter            Limiter
	maxConcurrent      int
	maxRequestsPerTime int
	timeWindow         time.Duration
	delay              time.Duration
	requestCount       int

	mu      sync.Mutex
	starts  []time.Time
	history []requestRecord
}

func (b *limitCheckBackend) limitedRequest(ctx context.Context, id int) error {
	release, err := b.limiter.Acquire(ctx, "")
	if err != nil {
		return err
	}
	defer release()

	t := time.Now()
	b.mu.Lock()
	b.starts = append(b.starts, t)
	b.history = append(b.history, requestRecord{id: id, state: "start"})
	b.mu.Unlock()

	time.Sleep(b.delay)

	b.mu.Lock()
	b.history = append(b.history, requestRecord{id: id, state: "end"})
	b.mu.Unlock()
	return nil
}

func (b *limitCheckBackend) run(t *testing.T) {
	t.Helper()
	var wg sync.WaitGroup
	for i := 0; i < b.requestCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			require.NoError(t, b.limitedRequest(context.Background(), id))
		}(i)
	}
	wg.Wait()
	b.checkRate(t)
	b.checkConcurrency(t)
}

// checkRate asserts invariant (1): over any TimeWindowSeconds window, no
// more than MaxRequestsPerTime admissions ever occurred.
func (b *limitCheckBackend) checkRate(t *testing.T) {
	t.Helper()
	sorted := append([]time.Time(nil), b.starts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	for i := range sorted {
		j := i
		for j < len(sorted) && sorted[j].Sub(sorted[i]) <= b.timeWindow {
			j++
		}
		count := j - i
		require.LessOrEqualf(t, count, b.maxRequestsPerTime,
			"window starting at admission %d admitted %d requests", i, count)
	}
}

// checkConcurrency asserts invariant (2): concurrently in-flight requests
// never exceed MaxConcurrent.
func (b *limitCheckBackend) checkConcurrency(t *testing.T) {
	t.Helper()
	if b.maxConcurrent <= 0 {
		return
	}
	inFlight := map[int]struct{}{}
	for _, r := range b.history {
		if r.state == "start" {
			inFlight[r.id] = struct{}{}
		} else {
			delete(inFlight, r.id)
		}
		require.LessOrEqualf(t, len(inFlight), b.maxConcurrent,
			"concurrency exceeded at record for id %d", r.id)
	}
}

func newTestLimiter(t *testing.T, maxConcurrent, maxRequestsPerTime, windowSeconds int) Limiter {
	t.Helper()
	mc := maxConcurrent
	sw, err := NewSlidingWindow(*logger.Named("test"), RateLimit{
		MaxConcurrent:      &mc,
		MaxRequestsPerTime: maxRequestsPerTime,
		TimeWindowSeconds:  windowSeconds,
	})
	require.NoError(t, err)
	return sw
}

func TestSlidingWindowRateLimiter(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name               string
		maxConcurrent      int
		maxRequestsPerTime int
		windowSeconds      int
		delay              time.Duration
		requestCount       int
	}{
		{"scenario-A", 3, 20, 1, 50 * time.Millisecond, 50},
		{"scenario-B", 5, 25, 1, 50 * time.Millisecond, 100},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := &limitCheckBackend{
				limiter:            newTestLimiter(t, tc.maxConcurrent, tc.maxRequestsPerTime, tc.windowSeconds),
				maxConcurrent:      tc.maxConcurrent,
				maxRequestsPerTime: tc.maxRequestsPerTime,
				timeWindow:         time.Duration(tc.windowSeconds) * time.Second,
				delay:              tc.delay,
				requestCount:       tc.requestCount,
			}
			b.run(t)
		})
	}
}

func TestRateLimitValidate(t *testing.T) {
	t.Parallel()
	neg := -1
	require.Error(t, RateLimit{MaxConcurrent: &neg, MaxRequestsPerTime: 1, TimeWindowSeconds: 1}.Validate())
	require.Error(t, RateLimit{MaxRequestsPerTime: 0, TimeWindowSeconds: 1}.Validate())
	require.Error(t, RateLimit{MaxRequestsPerTime: 1, TimeWindowSeconds: 0}.Validate())
	require.NoError(t, RateLimit{MaxRequestsPerTime: 1, TimeWindowSeconds: 1}.Validate())
}

func TestAcquireReleasesSemaphoreOnCancel(t *testing.T) {
	t.Parallel()
	one := 1
	sw, err := NewSlidingWindow(*logger.Named("test"), RateLimit{
		MaxConcurrent:      &one,
		MaxRequestsPerTime: 1000,
		TimeWindowSeconds:  60,
	})
	require.NoError(t, err)

	release, err := sw.Acquire(context.Background(), "holder")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sw.Acquire(ctx, "blocked")
	require.Error(t, err)

	release()

	release2, err := sw.Acquire(context.Background(), "next")
	require.NoError(t, err)
	release2()
}

func TestUnionReleasesInReverseOrder(t *testing.T) {
	t.Parallel()
	var order []string
	var mu sync.Mutex
	mk := func(name string) Limiter {
		return limiterFunc(func(ctx context.Context, reqID string) (func(), error) {
			return func() {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
			}, nil
		})
	}
	u := NewUnion(mk("a"), mk("b"), mk("c"))
	release, err := u.Acquire(context.Background(), "")
	require.NoError(t, err)
	release()
	require.Equal(t, []string{"c", "b", "a"}, order)
}

// limiterFunc adapts a plain function to the Limiter interface for tests.
type limiterFunc func(ctx context.Context, reqID string) (func(), error)

func (f limiterFunc) Acquire(ctx context.Context, reqID string) (func(), error) {
	return f(ctx, reqID)
}

func TestResourceExtendedFallsBackToCommon(t *testing.T) {
	t.Parallel()
	mc := 10
	r, err := NewResourceExtended(*logger.Named("test"), RateLimit{
		MaxConcurrent:      &mc,
		MaxRequestsPerTime: 100,
		TimeWindowSeconds:  60,
	}, map[string][]RateLimit{
		"search/repositories": {{MaxRequestsPerTime: 20, TimeWindowSeconds: 60}},
	})
	require.NoError(t, err)

	_, ok := r.For("search/repositories").(*Union)
	require.True(t, ok, "known resource should resolve to a Union")

	require.NotNil(t, r.For("repos/commits"))
	require.NotSame(t, r.For("search/repositories"), r.For("repos/commits"))
}
