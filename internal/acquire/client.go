// Package acquire fetches current weather observations from the Open-Meteo
// API. Each location is fetched independently behind a shared circuit breaker
// and a per-fetch retry schedule; one unreachable location never blocks the
// rest of the batch.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/couchcryptid/weather-data-etl/internal/domain"
)

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
)

// statusError is a non-retryable HTTP failure (4xx other than 429). The API
// will keep answering the same way, so retrying only burns the rate limit.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("open-meteo API error: status %d: %s", e.code, e.body)
}

// AcquisitionError records a location whose fetch failed after the retry
// schedule was exhausted.
type AcquisitionError struct {
	LocationID string
	Attempts   int
	Err        error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s after %d attempt(s): %v", e.LocationID, e.Attempts, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// BreakerOptions configures the shared circuit breaker in front of the API.
type BreakerOptions struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// ClientOptions bundles the HTTP and resilience settings for the API client.
type ClientOptions struct {
	BaseURL string
	Params  []string
	Timeout time.Duration
	Retry   RetryPolicy
	Breaker BreakerOptions
}

// Client fetches current conditions for one location per request.
type Client struct {
	baseURL    string
	params     []string
	httpClient *http.Client
	policy     RetryPolicy
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client. The circuit breaker is shared by
// all fetches through this client so a hard API outage fails the remaining
// locations fast instead of walking each one through the full retry schedule.
func NewClient(opts ClientOptions, logger *slog.Logger) *Client {
	threshold := opts.Breaker.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "open-meteo",
		MaxRequests: opts.Breaker.MaxRequests,
		Interval:    opts.Breaker.Interval,
		Timeout:     opts.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		params:     opts.Params,
		httpClient: &http.Client{Timeout: opts.Timeout},
		policy:     opts.Retry,
		breaker:    breaker,
		logger:     logger,
	}
}

// Fetch retrieves the current observation for one location, retrying
// transient failures per the client's policy. The returned error is always an
// *AcquisitionError carrying the attempt count.
func (c *Client) Fetch(ctx context.Context, loc domain.Location) (domain.Observation, error) {
	requestURL := c.buildURL(loc)
	requestedAt := time.Now().UTC()

	var body []byte
	attempts := 0

	op := func() error {
		attempts++
		payload, err := c.doRequest(ctx, requestURL)
		if err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		body = payload
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("weather fetch failed, will retry",
			"location", loc.ID, "attempt", attempts, "backoff", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, c.policy.newBackOff(ctx), notify); err != nil {
		return domain.Observation{}, &AcquisitionError{LocationID: loc.ID, Attempts: attempts, Err: err}
	}

	return domain.Observation{Location: loc, Body: body, RequestedAt: requestedAt}, nil
}

// doRequest executes one HTTP attempt through the circuit breaker and
// classifies the response: 429 and 5xx are retryable, any other non-200 is
// permanent.
func (c *Client) doRequest(ctx context.Context, requestURL string) ([]byte, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(detail))}
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) buildURL(loc domain.Location) string {
	params := url.Values{
		"latitude":  {strconv.FormatFloat(loc.Latitude, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(loc.Longitude, 'f', -1, 64)},
		"current":   {strings.Join(c.params, ",")},
		"timezone":  {"UTC"},
	}
	return c.baseURL + "?" + params.Encode()
}

// isPermanent reports whether an attempt error should stop the retry
// schedule: client-side HTTP errors and an open breaker both mean further
// attempts cannot succeed right now.
func isPermanent(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	var se *statusError
	return errors.As(err, &se)
}
