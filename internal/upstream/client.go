// Package upstream is the fetch-side handler's HTTPS client for the rates
// provider (spec §4.4, fetch-side step 2). Grounded on pkg/client/rest: a
// retryablehttp + otelhttp transport wrapped by pkg/resilience's retry
// policy and circuit breaker. The inner retryablehttp retry is disabled
// (RetryMax=0) so retries are governed entirely by pkg/resilience.Retry,
// matching spec's exact backoff schedule (5 attempts, 2000ms initial,
// x2.0, capped at 5000ms) rather than retryablehttp's own curve.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/errors"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/resilience"
)

// Config configures the upstream rates provider.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// apiResponse mirrors the upstream provider's JSON shape, per spec §4.4
// step 2: { success, base, date, rates }.
type apiResponse struct {
	Success bool               `json:"success"`
	Error   *apiError          `json:"error,omitempty"`
	Base    string             `json:"base"`
	Date    string             `json:"date"`
	Rates   map[string]float64 `json:"rates"`
}

type apiError struct {
	Code int    `json:"code"`
	Info string `json:"info"`
}

// Client fetches current exchange rates from the configured provider.
type Client struct {
	cfg            Config
	httpClient     *http.Client
	retryPolicy    resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker
	tracer         trace.Tracer
}

// New builds a Client. retryPolicy governs the outer retry loop (spec's
// retry.* options); the HTTP transport itself never retries.
func New(cfg Config, retryPolicy resilience.RetryConfig) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = nil

	baseTransport := retryClient.HTTPClient.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(baseTransport)

	return &Client{
		cfg:         cfg,
		httpClient:  retryClient.StandardClient(),
		retryPolicy: retryPolicy,
		circuitBreaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "upstream-rates",
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		}),
		tracer: otel.Tracer("internal/upstream"),
	}
}

// FetchRates calls the upstream provider and returns its base currency,
// date string, and the full rate map, retrying transient failures per the
// configured policy and short-circuiting via the breaker when the
// provider is clearly down.
func (c *Client) FetchRates(ctx context.Context) (base string, date string, rates map[string]float64, err error) {
	ctx, span := c.tracer.Start(ctx, "upstream.FetchRates")
	defer span.End()

	var result apiResponse

	retryErr := resilience.Retry(ctx, c.retryPolicy, func(ctx context.Context) error {
		return c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
			resp, doErr := c.do(ctx)
			if doErr != nil {
				return doErr
			}
			result = resp
			return nil
		})
	})
	if retryErr != nil {
		err := errors.Unavailable("upstream rates provider unavailable", retryErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", "", nil, err
	}
	if !result.Success {
		msg := "upstream reported failure"
		if result.Error != nil {
			msg = result.Error.Info
		}
		err := errors.Unavailable(msg, nil)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", "", nil, err
	}
	span.SetStatus(codes.Ok, "rates fetched")
	return result.Base, result.Date, result.Rates, nil
}

func (c *Client) do(ctx context.Context) (apiResponse, error) {
	q := url.Values{}
	q.Set("access_key", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return apiResponse{}, errors.Wrap(err, "failed to build upstream request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apiResponse{}, errors.Wrap(err, "upstream request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResponse{}, errors.Wrap(err, "failed to read upstream response")
	}

	if resp.StatusCode >= 500 {
		return apiResponse{}, errors.Unavailable(fmt.Sprintf("upstream returned %d", resp.StatusCode), nil)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiResponse{}, errors.Wrap(err, "failed to parse upstream response")
	}
	return parsed, nil
}
