package ingest

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sempervigil.dev/sempervigil/internal/domain"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
	"sempervigil.dev/sempervigil/internal/pkg/logger"

	"go.uber.org/zap"
)

// FetchResult is the outcome of one conditional HTTP fetch.
type FetchResult struct {
	StatusCode   int
	NotModified  bool
	Body         []byte
	ETag         string
	LastModified string
}

// Fetcher performs rate-limited, retried, conditionally-cached HTTP fetches
// for sources. One Fetcher is shared by every ingest_source job in a
// process, mirroring the teacher's single-shared-client pattern
// (spec.md §5 "within a process... the rate limiter are shared").
type Fetcher struct {
	httpClient *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	defaultRatePerMinute int
}

// NewFetcher builds a Fetcher with a connection-pooling http.Client,
// grounded on cyber-harbour-recona-go's client.go Transport tuning.
func NewFetcher(defaultRatePerMinute int) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiters:             make(map[string]*rate.Limiter),
		defaultRatePerMinute: defaultRatePerMinute,
	}
}

func (f *Fetcher) limiterFor(source *domain.Source) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	lim, ok := f.limiters[source.ID]
	if ok {
		return lim
	}
	perMinute := source.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = f.defaultRatePerMinute
	}
	if perMinute <= 0 {
		perMinute = 30
	}
	lim = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
	f.limiters[source.ID] = lim
	return lim
}

// Fetch performs a conditional GET against the source's URL, replaying
// ETag/Last-Modified and retrying transient failures with jittered
// exponential backoff per spec.md §4.C step 2.
func (f *Fetcher) Fetch(ctx context.Context, source *domain.Source) (*FetchResult, error) {
	limiter := f.limiterFor(source)

	timeout := time.Duration(source.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := source.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	base := time.Duration(source.BackoffSeconds) * time.Second
	if base <= 0 {
		base = 2 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := jitteredBackoff(base, attempt)
			select {
			case <-ctx.Done():
				return nil, apperrors.Canceled(apperrors.CodeSourceFetchFailed, "fetch canceled")
			case <-time.After(wait):
			}
		}

		if err := limiter.Wait(ctx); err != nil {
			return nil, apperrors.Canceled(apperrors.CodeSourceFetchFailed, "rate limiter wait canceled")
		}

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		result, retryable, err := f.doRequest(reqCtx, source)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		logger.Warn("source fetch attempt failed, retrying",
			zap.String("source_id", source.ID), zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, apperrors.WrapTransient(lastErr, apperrors.CodeSourceFetchFailed, "fetch retries exhausted")
}

func (f *Fetcher) doRequest(ctx context.Context, source *domain.Source) (*FetchResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, false, apperrors.WrapPermanent(err, apperrors.CodeSourceFetchFailed, "build request")
	}
	if source.UserAgent != "" {
		req.Header.Set("User-Agent", source.UserAgent)
	} else {
		req.Header.Set("User-Agent", "SemperVigil/1.0 (+ingest)")
	}
	for k, v := range source.Headers {
		if s, ok := v.(string); ok {
			req.Header.Set(k, s)
		}
	}
	if source.LastETag != "" {
		req.Header.Set("If-None-Match", source.LastETag)
	}
	if source.LastModifiedHTTP != "" {
		req.Header.Set("If-Modified-Since", source.LastModifiedHTTP)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, true, apperrors.WrapTransient(err, apperrors.CodeSourceFetchFailed, "http request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{StatusCode: resp.StatusCode, NotModified: true}, false, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500 {
		return nil, true, apperrors.Transient(apperrors.CodeSourceFetchFailed, httpStatusMessage(resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, false, apperrors.Permanent(apperrors.CodeSourceFetchFailed, httpStatusMessage(resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, apperrors.WrapTransient(err, apperrors.CodeSourceFetchFailed, "read response body")
	}

	return &FetchResult{
		StatusCode:   resp.StatusCode,
		Body:         body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, false, nil
}

func httpStatusMessage(code int) string {
	return http.StatusText(code)
}

func jitteredBackoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	const cap = 60 * time.Second
	if d > cap {
		d = cap
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d/2 + jitter
}
