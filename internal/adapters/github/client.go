// Package github implements the upstream HTTP API client: bearer-token
// auth, canonical-JSON cache keys, status-to-error-kind mapping, and a
// reset-time-aware retry policy layered over the rate limiter.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	perr "ghsnapshot/internal/platform/errors"
	"ghsnapshot/internal/platform/logger"
	"ghsnapshot/internal/platform/ratelimit"

	"github.com/google/uuid"
)

const (
	baseURLDefault = "https://api.github.com"
	defaultTimeout = 15 * time.Second
	defaultUA      = "ghsnapshot"

	// cacheTTLSeconds is how long a successful cached GET stays fresh (§4.3).
	cacheTTLSeconds = 15 * 60

	defaultMaxRetries    = 3
	defaultWaitResetCeil = 5 * time.Second
)

// Cache is the narrow caching contract the client consults before, and
// populates after, a cacheable GET.
type Cache interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any, ttlSeconds *int)
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Token     string
	UserAgent string

	// ConnectTimeout bounds dialing; Timeout bounds the full round trip
	// (the reference implementation's connect_timeout/send_receive_timeout).
	ConnectTimeout time.Duration
	Timeout        time.Duration

	MaxRetries    int
	WaitResetCeil time.Duration
}

// Client is the GitHub REST v3 client. Request covers auth injection,
// cache consultation, and status classification; RequestWithRetry layers
// the retry policy described in §4.3 on top of it.
type Client struct {
	http    *http.Client
	opts    Options
	log     logger.Logger
	cache   Cache
	limiter ratelimit.ResourceLimiter

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewClient builds a Client, defaulting any zero-valued Options.
func NewClient(o Options, cache Cache, limiter ratelimit.ResourceLimiter) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.WaitResetCeil <= 0 {
		o.WaitResetCeil = defaultWaitResetCeil
	}
	transport := http.DefaultTransport
	if o.ConnectTimeout > 0 {
		transport = &http.Transport{
			DialContext: (&net.Dialer{Timeout: o.ConnectTimeout}).DialContext,
		}
	}
	return &Client{
		http:    &http.Client{Timeout: o.Timeout, Transport: transport},
		opts:    o,
		log:     *logger.Named("github"),
		cache:   cache,
		limiter: limiter,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// cacheKey builds "{method}:{endpoint}:{canonical-json(params)}" per §4.3:
// params are re-encoded through a key-sorted object so equivalent parameter
// sets always collide to the same key regardless of insertion order.
func cacheKey(method, endpoint string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		enc, _ := json.Marshal(params.Get(k))
		fmt.Fprintf(&b, "%q:%s", k, enc)
	}
	b.WriteByte('}')
	return fmt.Sprintf("%s:%s:%s", method, endpoint, b.String())
}

// Request issues one request to endpoint under resource, acquiring the
// rate limiter before dispatch and releasing on every exit path. Cacheable
// GETs are served from, and on success written back to, the Cache.
func (c *Client) Request(ctx context.Context, endpoint, resource, method string, params url.Values, cached bool) (json.RawMessage, error) {
	reqID := uuid.NewString()

	var key string
	if cached && method == http.MethodGet && c.cache != nil {
		key = cacheKey(method, endpoint, params)
		if v, ok := c.cache.Get(ctx, key); ok {
			if raw, ok := v.(json.RawMessage); ok {
				return raw, nil
			}
		}
	}

	release, err := c.limiter.For(resource).Acquire(ctx, reqID)
	if err != nil {
		return nil, err
	}
	defer release()

	raw, err := c.doOnce(ctx, reqID, endpoint, method, params)
	if err != nil {
		return nil, err
	}

	if cached && method == http.MethodGet && c.cache != nil {
		ttl := cacheTTLSeconds
		c.cache.Set(ctx, key, raw, &ttl)
	}
	return raw, nil
}

func (c *Client) doOnce(ctx context.Context, reqID, endpoint, method string, params url.Values) (json.RawMessage, error) {
	u := c.opts.BaseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "github: build request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	lat := c.now().Sub(start)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "github: do request")
	}
	defer drainAndClose(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "github: read body")
	}

	remaining, reset := parseRateHeaders(resp.Header)
	c.log.Debug().
		Str("req_id", reqID).
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("latency", lat).
		Int("rate_remaining", remaining).
		Msg("github http response")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return json.RawMessage(body), nil
	}
	return nil, classifyStatus(resp.StatusCode, remaining, reset, body)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func parseRateHeaders(h http.Header) (remaining int, reset time.Time) {
	remaining = -1
	if s := h.Get("X-RateLimit-Remaining"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			remaining = n
		}
	}
	if s := h.Get("X-RateLimit-Reset"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			reset = time.Unix(n, 0).UTC()
		}
	}
	return remaining, reset
}

func drainAndClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	_ = rc.Close()
}
