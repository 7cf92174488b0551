package correlator_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EvgeniOk14/CurrencyServiceProject/internal/config"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/correlator"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/domain"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/workerpool"
	apperrors "github.com/EvgeniOk14/CurrencyServiceProject/pkg/errors"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging/adapters/memory"
)

func newTestPool(ctx context.Context) *workerpool.Pool {
	pool := workerpool.New(config.PoolConfig{Min: 1, Max: 2, Queue: 10, IdleSec: 5})
	pool.Start(ctx)
	return pool
}

func TestCorrelator_QueryReceivesMatchingReply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := memory.New(memory.Config{})
	requestProducer, err := broker.Producer(correlator.TopicRequest)
	require.NoError(t, err)
	responseProducer, err := broker.Producer(correlator.TopicResponse)
	require.NoError(t, err)

	requestConsumer, err := broker.Consumer(correlator.TopicRequest, "cache-request")
	require.NoError(t, err)
	responseConsumer, err := broker.Consumer(correlator.TopicResponse, "edge-response")
	require.NoError(t, err)

	// Simulates the cache/freshness tier: echo every request straight back
	// as a reply carrying the same rid. Reads HeaderMessageKey, the header
	// RequestSideHandler.Handle actually extracts rid from in production.
	go requestConsumer.Consume(ctx, func(ctx context.Context, msg *messaging.Message) error {
		rid := msg.Headers[messaging.HeaderMessageKey]
		reply := domain.Reply{Rates: map[string]float64{"USD": 1.0}, BaseCurrency: "EUR", Currency: "USD", RequestID: rid}
		body, _ := json.Marshal(reply)
		return responseProducer.Publish(ctx, &messaging.Message{
			Topic:   correlator.TopicResponse,
			Payload: body,
			Headers: map[string]string{messaging.HeaderCorrelation: rid},
		})
	})

	corr := correlator.New(requestProducer, newTestPool(ctx))
	go corr.ListenResponses(ctx, responseConsumer)

	reply, err := corr.Query(ctx, domain.KindSingle, "USD")
	require.NoError(t, err)
	assert.Equal(t, 1.0, reply.Rates["USD"])
	assert.Equal(t, "USD", reply.Currency)
}

func TestCorrelator_QueryTimesOutWithNoReply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := memory.New(memory.Config{})
	requestProducer, err := broker.Producer(correlator.TopicRequest)
	require.NoError(t, err)

	corr := correlator.New(requestProducer, newTestPool(ctx))

	// Nothing ever consumes the request topic or publishes a response, so
	// Query must give up once correlator.Deadline passes rather than hang
	// forever. Deadline is 10s in production; this test only checks the
	// error shape, not the exact wait (an invariant, not a timing test).
	shortCtx, shortCancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer shortCancel()

	_, err = corr.Query(shortCtx, domain.KindAll, "")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeTimeout))
}

func TestCorrelator_QueryTimeoutDiscardsLateReply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := memory.New(memory.Config{})
	requestProducer, err := broker.Producer(correlator.TopicRequest)
	require.NoError(t, err)
	responseConsumer, err := broker.Consumer(correlator.TopicResponse, "edge-response")
	require.NoError(t, err)

	corr := correlator.New(requestProducer, newTestPool(ctx))
	go corr.ListenResponses(ctx, responseConsumer)

	shortCtx, shortCancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer shortCancel()
	_, err = corr.Query(shortCtx, domain.KindSingle, "EUR")
	require.Error(t, err)

	// A reply landing after the caller gave up must not panic or block —
	// it has no pending slot left to deliver into.
	responseProducer, err := broker.Producer(correlator.TopicResponse)
	require.NoError(t, err)
	body, _ := json.Marshal(domain.Reply{Currency: "EUR"})
	publishErr := responseProducer.Publish(ctx, &messaging.Message{
		Topic:   correlator.TopicResponse,
		Payload: body,
		Headers: map[string]string{messaging.HeaderCorrelation: "stale-rid"},
	})
	assert.NoError(t, publishErr)
}
