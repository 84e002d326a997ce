// Package fred implements the HTTP client for the Federal Reserve Bank of
// St. Louis (FRED) API, the remote ingest source for series. All methods are
// context-aware, respect the shared rate limiter, and retry on transient
// errors (429, 5xx).
package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.stlouisfed.org/fred/"
	maxRetries     = 4
)

// Client is the FRED API HTTP client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        logrus.FieldLogger
	retries    int
	backoff    time.Duration
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	Retries    int
	Backoff    time.Duration // first retry delay; doubles per attempt
	Log        logrus.FieldLogger
}

// NewClient creates a Client with the given API key.
func NewClient(apiKey string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	if opts.Retries <= 0 {
		opts.Retries = maxRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Log = l
	}
	burst := int(opts.RatePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: opts.BaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), burst),
		log:     opts.Log.WithField("op", "fred"),
		retries: opts.Retries,
		backoff: opts.Backoff,
	}
}

// ─── Low-level HTTP ───────────────────────────────────────────────────────────

// get performs a GET request to the FRED API, handling rate limiting and retries.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if c.apiKey == "" {
		return fmt.Errorf("no FRED API key configured (set fred_api_key or FORECAST_FRED_API_KEY)")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")

	reqURL := c.baseURL + endpoint + "?" + params.Encode()
	safe := strings.Replace(reqURL, c.apiKey, "REDACTED", 1)
	c.log.WithField("url", safe).Debug("fred request")

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoff
			c.log.WithFields(logrus.Fields{"attempt": attempt, "backoff": backoff}).Debug("retrying after backoff")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "forecast-cli/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading body: %w", err)
			continue
		}
		c.log.WithFields(logrus.Fields{"status": resp.StatusCode, "bytes": len(body)}).Debug("fred response")

		// Retry on server errors and rate limiting
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr struct {
				Error string `json:"error_message"`
			}
			_ = json.Unmarshal(body, &apiErr)
			if apiErr.Error != "" {
				return fmt.Errorf("API error: %s", apiErr.Error)
			}
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("after %d attempts: %w", c.retries, lastErr)
}
