package edge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EvgeniOk14/CurrencyServiceProject/internal/domain"
	apperrors "github.com/EvgeniOk14/CurrencyServiceProject/pkg/errors"
)

type fakeQuerier struct {
	reply domain.Reply
	err   error
}

func (f *fakeQuerier) Query(ctx context.Context, kind domain.Kind, argument string) (domain.Reply, error) {
	return f.reply, f.err
}

func TestServer_HandleSingle_Success(t *testing.T) {
	querier := &fakeQuerier{reply: domain.Reply{Rates: map[string]float64{"USD": 1.1}, Currency: "USD"}}
	srv := New(querier, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/currencies/single/USD", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), replyPrefix)
	assert.Contains(t, rec.Body.String(), "USD")
}

func TestServer_HandleSingle_InvalidArgumentRejectedBeforeQuery(t *testing.T) {
	querier := &fakeQuerier{}
	srv := New(querier, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/currencies/single/usd", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_HandleAll_UpstreamErrorMapsToBadGateway(t *testing.T) {
	querier := &fakeQuerier{err: apperrors.Upstream("provider unavailable", nil)}
	srv := New(querier, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/currencies/all", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServer_HandleFilter_TimeoutMapsToGatewayTimeout(t *testing.T) {
	querier := &fakeQuerier{err: apperrors.Timeout("deadline exceeded", nil)}
	srv := New(querier, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/currencies/filter/USD,GBP", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}
