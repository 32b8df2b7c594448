// Package fetch holds the HTTP plumbing the adapters share: a
// hardened static client, a rendering client for JS-walled sources,
// and jittered inter-request delays.
package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// HTTPError carries the status of a non-2xx response.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d fetching %s", e.StatusCode, e.URL)
}

// RateLimitError signals the source pushed back (429, CAPTCHA, bot
// challenge). Retried with backoff before the item is given up on.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// NewStaticClient builds a resty client for plain-HTML sources:
// cloudflare bypass on the transport, a fixed browser user agent, and
// a courtesy rate limit of 2 requests per second.
func NewStaticClient(timeout time.Duration, userAgent string) *resty.Client {
	client := resty.New()
	client.SetTimeout(timeout)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", userAgent)

	limiter := rate.NewLimiter(2, 2)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	return client
}

// GetHTML fetches a page and returns its body, mapping 429 to a
// RateLimitError and other non-2xx statuses to HTTPError.
func GetHTML(ctx context.Context, client *resty.Client, url string) (string, error) {
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", err
	}

	status := resp.StatusCode()
	if status == http.StatusTooManyRequests {
		return "", &RateLimitError{RetryAfter: retryAfter(resp)}
	}
	if status < 200 || status > 299 {
		return "", &HTTPError{StatusCode: status, URL: url}
	}
	return string(resp.Body()), nil
}

func retryAfter(resp *resty.Response) time.Duration {
	if raw := resp.Header().Get("Retry-After"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// Delay sleeps a random duration in [minSeconds, maxSeconds], honoring
// context cancellation. Zero bounds return immediately so tests can
// run with no pacing.
func Delay(ctx context.Context, minSeconds, maxSeconds float64) error {
	if maxSeconds <= 0 {
		return ctx.Err()
	}
	if minSeconds > maxSeconds {
		minSeconds = maxSeconds
	}

	span := maxSeconds - minSeconds
	seconds := minSeconds + rand.Float64()*span

	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
