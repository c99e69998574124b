package github

import (
	"context"
	"net/url"
	"time"

	perr "ghsnapshot/internal/platform/errors"
)

// RequestWithRetry layers the retry policy of §4.3 over Request:
//   - RateLimited: give up immediately if reset−now exceeds waitResetCeil;
//     otherwise sleep max(0, reset−now+1s) and retry. Without a reset
//     hint it is not retried.
//   - ServerError: exponential backoff 2^attempt seconds.
//   - anything else: not retried.
//
// On exhaustion or a non-retriable classification, the final cause is
// wrapped in ErrorCodeRetryFailed.
func (c *Client) RequestWithRetry(ctx context.Context, endpoint, resource, method string, params url.Values, cached bool) (result []byte, err error) {
	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		raw, reqErr := c.Request(ctx, endpoint, resource, method, params, cached)
		if reqErr == nil {
			return raw, nil
		}
		lastErr = reqErr

		se, ok := reqErr.(*StatusError)
		if !ok {
			return nil, perr.RetryFailedf(reqErr, "github: request failed")
		}

		switch {
		case se.Code() == perr.ErrorCodeTooManyRequests:
			if se.HasReset() {
				wait := se.Reset.Sub(time.Now())
				if wait > c.opts.WaitResetCeil {
					return nil, perr.RetryFailedf(reqErr, "github: rate limit reset exceeds wait ceiling")
				}
				if attempt == c.opts.MaxRetries-1 {
					return nil, perr.RetryFailedf(reqErr, "github: rate limited, retries exhausted")
				}
				sleepFor := wait + time.Second
				if sleepFor < 0 {
					sleepFor = 0
				}
				if err := c.sleep(ctx, sleepFor); err != nil {
					return nil, err
				}
				continue
			}
			return nil, perr.RetryFailedf(reqErr, "github: rate limited without reset hint")

		case se.Code() == perr.ErrorCodeServerError:
			if attempt == c.opts.MaxRetries-1 {
				return nil, perr.RetryFailedf(reqErr, "github: server error, retries exhausted")
			}
			back := time.Duration(1<<uint(attempt)) * time.Second
			if err := c.sleep(ctx, back); err != nil {
				return nil, err
			}
			continue

		default:
			return nil, perr.RetryFailedf(reqErr, "github: non-retriable status %d", se.Status)
		}
	}
	return nil, perr.RetryFailedf(lastErr, "github: retries exhausted")
}
