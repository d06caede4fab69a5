package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/time/rate"
)

// Provider fetch errors. NotFound and AuthFailure are terminal for the
// sport; RateLimited and Transient retry within a single fetch.
var (
	ErrNotFound    = errors.New("show not found")
	ErrAuthFailure = errors.New("authentication failed")
	ErrRateLimited = errors.New("rate limited")
	ErrTransient   = errors.New("transient network error")
)

// Provider fetches raw metadata for one sport.
type Provider interface {
	Fetch(ctx context.Context, sportID string) (*RawShow, error)
}

// RetryPolicy bounds the retry loop inside a single fetch.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64 // fraction of the backoff added as random jitter
}

// DefaultRetryPolicy matches the provider defaults in config.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseBackoff: 500 * time.Millisecond,
		Jitter:      0.25,
	}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseBackoff << uint(attempt)
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}

// HTTPProvider speaks the provider's JSON API over HTTP.
type HTTPProvider struct {
	client  *resty.Client
	limiter *rate.Limiter
	policy  RetryPolicy
}

// HTTPProviderOptions configure NewHTTPProvider.
type HTTPProviderOptions struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	Policy            RetryPolicy
	RequestsPerSecond int
}

// NewHTTPProvider builds the resty-backed provider with a shared clean
// transport, request rate limiting, and the explicit retry policy.
func NewHTTPProvider(opts HTTPProviderOptions) *HTTPProvider {
	client := resty.NewWithClient(&http.Client{
		Transport: cleanhttp.DefaultPooledTransport(),
		Timeout:   opts.Timeout,
	})
	client.SetBaseURL(opts.BaseURL)
	if opts.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+opts.APIKey)
	}
	client.SetHeader("Accept", "application/json")

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	policy := opts.Policy
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}

	return &HTTPProvider{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		policy:  policy,
	}
}

// Fetch retrieves the raw metadata document for a sport. RateLimited and
// transient failures are retried with bounded exponential backoff and
// jitter; NotFound and AuthFailure return immediately.
func (p *HTTPProvider) Fetch(ctx context.Context, sportID string) (*RawShow, error) {
	var lastErr error
	for attempt := 0; attempt < p.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.policy.backoff(attempt - 1)):
			}
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		raw, err := p.fetchOnce(ctx, sportID)
		if err == nil {
			return raw, nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAuthFailure) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch %s: attempts exhausted: %w", sportID, lastErr)
}

func (p *HTTPProvider) fetchOnce(ctx context.Context, sportID string) (*RawShow, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("sport", sportID).
		Get("/shows/{sport}")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusOK:
	case code == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sportID)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrAuthFailure, sportID)
	case code == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, sportID)
	case code >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrTransient, code)
	default:
		return nil, fmt.Errorf("unexpected status %d for %s", code, sportID)
	}

	var raw RawShow
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("unable to decode metadata for %s: %w", sportID, err)
	}
	return &raw, nil
}
