package redditclient

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"cultivator/internal/logging"
	"cultivator/internal/metrics"
)

// newLimiter creates a client-side pacing limiter, env override CULTIVATE_API_RPS.
func newLimiter(rps float64) *rate.Limiter {
	if v := os.Getenv("CULTIVATE_API_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	if rps <= 0 {
		rps = 0.5
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// retryOnRateLimit re-attempts only on 429. Network errors and timeouts are final.
func retryOnRateLimit(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil || resp == nil {
		return false, nil
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// newHTTPClient returns a client that makes at most one re-attempt, after a fixed
// backoff, when the platform answers 429. The final response is passed through so
// callers can classify it.
func newHTTPClient(timeout, backoff time.Duration) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.RetryWaitMin = backoff
	rc.RetryWaitMax = backoff
	rc.Backoff = func(min, max time.Duration, attempt int, resp *http.Response) time.Duration { return min }
	rc.CheckRetry = retryOnRateLimit
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = retryablehttp.LeveledLogger(logging.Leveled{})
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			metrics.IncAPIRetry(req.URL.Path)
		}
	}
	rc.HTTPClient.Timeout = timeout
	client := rc.StandardClient()
	client.Timeout = 2*timeout + backoff
	return client
}
