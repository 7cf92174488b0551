package upstream_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EvgeniOk14/CurrencyServiceProject/internal/upstream"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/resilience"
)

func testRetryPolicy() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestClient_FetchRates_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"base":"EUR","date":"2026-07-31","rates":{"USD":1.1,"GBP":0.9}}`))
	}))
	defer srv.Close()

	client := upstream.New(upstream.Config{BaseURL: srv.URL, APIKey: "test-key", Timeout: time.Second}, testRetryPolicy())

	base, date, rates, err := client.FetchRates(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "EUR", base)
	assert.Equal(t, "2026-07-31", date)
	assert.Equal(t, 1.1, rates["USD"])
}

func TestClient_FetchRates_ProviderReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":101,"info":"invalid access key"}}`))
	}))
	defer srv.Close()

	client := upstream.New(upstream.Config{BaseURL: srv.URL, APIKey: "bad-key", Timeout: time.Second}, testRetryPolicy())

	_, _, _, err := client.FetchRates(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid access key")
}

func TestClient_FetchRates_RetriesOn5xxThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"base":"EUR","date":"2026-07-31","rates":{"USD":1.2}}`))
	}))
	defer srv.Close()

	client := upstream.New(upstream.Config{BaseURL: srv.URL, APIKey: "test-key", Timeout: time.Second}, testRetryPolicy())

	base, _, rates, err := client.FetchRates(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "EUR", base)
	assert.Equal(t, 1.2, rates["USD"])
	assert.GreaterOrEqual(t, attempts, 2)
}

func TestClient_FetchRates_ExhaustsRetriesOnPersistent5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := upstream.New(upstream.Config{BaseURL: srv.URL, APIKey: "test-key", Timeout: time.Second}, testRetryPolicy())

	_, _, _, err := client.FetchRates(t.Context())
	require.Error(t, err)
}
