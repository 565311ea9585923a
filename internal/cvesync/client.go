package cvesync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
	"sempervigil.dev/sempervigil/internal/pkg/logger"

	"go.uber.org/zap"
)

// Client fetches CVE records modified since a given time from the upstream
// vulnerability authority, paging through results respecting the
// configured page size and rate limit (spec.md §4.D periodic handler).
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	pageSize   int
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient builds an NVD delta-sync client, grounded on
// cyber-harbour-recona-go's rate.NewLimiter-backed client.
func NewClient(baseURL, apiKey string, pageSize int, requestInterval, requestTimeout time.Duration) *Client {
	if pageSize <= 0 {
		pageSize = 2000
	}
	if requestInterval <= 0 {
		requestInterval = 6 * time.Second
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		pageSize:   pageSize,
		limiter:    rate.NewLimiter(rate.Every(requestInterval), 1),
		maxRetries: 3,
	}
}

// FetchModifiedSince pages through every CVE record modified at or after
// `since`, invoking onPage for each page of decoded records.
func (c *Client) FetchModifiedSince(ctx context.Context, since time.Time, onPage func([]nvdCVE) error) error {
	startIndex := 0
	for {
		page, total, err := c.fetchPage(ctx, since, startIndex)
		if err != nil {
			return err
		}
		if err := onPage(page); err != nil {
			return err
		}
		startIndex += len(page)
		if startIndex >= total || len(page) == 0 {
			return nil
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, since time.Time, startIndex int) ([]nvdCVE, int, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := jitteredBackoff(2*time.Second, attempt)
			select {
			case <-ctx.Done():
				return nil, 0, apperrors.Canceled(apperrors.CodeCVESyncFailed, "cve sync canceled")
			case <-time.After(wait):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, apperrors.Canceled(apperrors.CodeCVESyncFailed, "rate limiter wait canceled")
		}

		page, total, retryable, err := c.doFetchPage(ctx, since, startIndex)
		if err == nil {
			return page, total, nil
		}
		lastErr = err
		if !retryable {
			return nil, 0, err
		}
		logger.Warn("nvd page fetch failed, retrying", zap.Int("start_index", startIndex), zap.Error(err))
	}
	return nil, 0, apperrors.WrapTransient(lastErr, apperrors.CodeCVESyncFailed, "nvd fetch retries exhausted")
}

func (c *Client) doFetchPage(ctx context.Context, since time.Time, startIndex int) ([]nvdCVE, int, bool, error) {
	q := url.Values{}
	q.Set("lastModStartDate", since.UTC().Format(time.RFC3339))
	q.Set("lastModEndDate", time.Now().UTC().Format(time.RFC3339))
	q.Set("resultsPerPage", strconv.Itoa(c.pageSize))
	q.Set("startIndex", strconv.Itoa(startIndex))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, false, apperrors.WrapPermanent(err, apperrors.CodeCVESyncFailed, "build nvd request")
	}
	if c.apiKey != "" {
		req.Header.Set("apiKey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, true, apperrors.WrapTransient(err, apperrors.CodeCVESyncFailed, "nvd request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, 0, true, apperrors.RateLimited(apperrors.CodeCVESyncRateLimited, fmt.Sprintf("nvd returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, 0, false, apperrors.Permanent(apperrors.CodeCVESyncFailed, fmt.Sprintf("nvd returned %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, true, apperrors.WrapTransient(err, apperrors.CodeCVESyncFailed, "read nvd response")
	}
	var decoded nvdResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, 0, false, apperrors.WrapPermanent(err, apperrors.CodeCVESyncFailed, "decode nvd response")
	}

	out := make([]nvdCVE, 0, len(decoded.Vulnerabilities))
	for _, v := range decoded.Vulnerabilities {
		out = append(out, v.CVE)
	}
	return out, decoded.TotalResults, false, nil
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
