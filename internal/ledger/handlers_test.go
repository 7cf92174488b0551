package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/EvgeniOk14/CurrencyServiceProject/internal/correlator"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/domain"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/ledger"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging/adapters/memory"
)

// fakeDeduper is an in-memory Deduper for handler tests, independent of the
// real internal/dedup package (which needs a document.Interface backend).
type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeDeduper() *fakeDeduper { return &fakeDeduper{seen: make(map[string]bool)} }

func (f *fakeDeduper) Exists(ctx context.Context, rid string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[rid], nil
}

func (f *fakeDeduper) Insert(ctx context.Context, rid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[rid] = true
	return nil
}

// fakeUpstream returns a canned rate table instead of calling out to HTTP.
type fakeUpstream struct {
	base  string
	date  string
	rates map[string]float64
	err   error
}

func (f *fakeUpstream) FetchRates(ctx context.Context) (string, string, map[string]float64, error) {
	return f.base, f.date, f.rates, f.err
}

func recvWithTimeout(t *testing.T, ch <-chan *messaging.Message) *messaging.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func subscribe(t *testing.T, broker *memory.Broker, topic string) <-chan *messaging.Message {
	t.Helper()
	consumer, err := broker.Consumer(topic, "test")
	require.NoError(t, err)
	out := make(chan *messaging.Message, 8)
	go consumer.Consume(context.Background(), func(ctx context.Context, msg *messaging.Message) error {
		out <- msg
		return nil
	})
	return out
}

func TestRequestSideHandler_MissingPayloadRepublishesToFetch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, time.Hour)
	broker := memory.New(memory.Config{})

	fetchProducer, _ := broker.Producer(ledger.TopicFetch)
	responseProducer, _ := broker.Producer(correlator.TopicResponse)
	dltProducer, _ := broker.Producer(messaging.TopicDeadLetter)
	fetchCh := subscribe(t, broker, ledger.TopicFetch)

	h := ledger.NewRequestSideHandler(store, newFakeDeduper(), fetchProducer, responseProducer, dltProducer)

	envelope := domain.NewEnvelope(domain.KindSingle, "USD")
	err := h.Handle(ctx, &messaging.Message{
		Payload: []byte(envelope),
		Headers: map[string]string{messaging.HeaderMessageKey: "rid-1"},
	})
	require.NoError(t, err)

	msg := recvWithTimeout(t, fetchCh)
	require.Equal(t, string(envelope), string(msg.Payload))
}

func TestRequestSideHandler_DuplicateDeliveryDropped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, time.Hour)
	broker := memory.New(memory.Config{})

	fetchProducer, _ := broker.Producer(ledger.TopicFetch)
	responseProducer, _ := broker.Producer(correlator.TopicResponse)
	dltProducer, _ := broker.Producer(messaging.TopicDeadLetter)
	fetchCh := subscribe(t, broker, ledger.TopicFetch)

	dedup := newFakeDeduper()
	require.NoError(t, dedup.Insert(ctx, "rid-dup"))

	h := ledger.NewRequestSideHandler(store, dedup, fetchProducer, responseProducer, dltProducer)

	envelope := domain.NewEnvelope(domain.KindSingle, "EUR")
	err := h.Handle(ctx, &messaging.Message{
		Payload: []byte(envelope),
		Headers: map[string]string{messaging.HeaderMessageKey: "rid-dup"},
	})
	require.NoError(t, err)

	select {
	case <-fetchCh:
		t.Fatal("duplicate delivery should not republish to fetch")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRequestSideHandler_FreshPayloadAnswersFromCache(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, time.Hour)
	broker := memory.New(memory.Config{})

	fetchProducer, _ := broker.Producer(ledger.TopicFetch)
	responseProducer, _ := broker.Producer(correlator.TopicResponse)
	dltProducer, _ := broker.Producer(messaging.TopicDeadLetter)
	responseCh := subscribe(t, broker, correlator.TopicResponse)

	reply := domain.Reply{Rates: map[string]float64{"USD": 1.2}, BaseCurrency: "EUR"}
	require.NoError(t, store.Record(ctx, domain.KindSingle, "USD", reply, time.Now()))

	h := ledger.NewRequestSideHandler(store, newFakeDeduper(), fetchProducer, responseProducer, dltProducer)

	envelope := domain.NewEnvelope(domain.KindSingle, "USD")
	err := h.Handle(ctx, &messaging.Message{
		Payload: []byte(envelope),
		Headers: map[string]string{messaging.HeaderMessageKey: "rid-2"},
	})
	require.NoError(t, err)

	msg := recvWithTimeout(t, responseCh)
	var got domain.Reply
	require.NoError(t, json.Unmarshal(msg.Payload, &got))
	require.Equal(t, 1.2, got.Rates["USD"])
	require.Equal(t, "rid-2", got.RequestID)
}

func TestFetchSideHandler_RecordsAndPublishesReply(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, time.Hour)
	broker := memory.New(memory.Config{})

	responseProducer, _ := broker.Producer(correlator.TopicResponse)
	dltProducer, _ := broker.Producer(messaging.TopicDeadLetter)
	responseCh := subscribe(t, broker, correlator.TopicResponse)

	up := &fakeUpstream{base: "EUR", date: "2026-07-31", rates: map[string]float64{"USD": 1.3, "GBP": 0.85}}
	h := ledger.NewFetchSideHandler(store, up, responseProducer, dltProducer)

	envelope := domain.NewEnvelope(domain.KindFilter, "USD,GBP")
	err := h.Handle(ctx, &messaging.Message{
		Payload: []byte(envelope),
		Headers: map[string]string{messaging.HeaderMessageKey: "rid-3"},
	})
	require.NoError(t, err)

	msg := recvWithTimeout(t, responseCh)
	var got domain.Reply
	require.NoError(t, json.Unmarshal(msg.Payload, &got))
	require.Equal(t, 1.3, got.Rates["USD"])
	require.Equal(t, 0.85, got.Rates["GBP"])
	require.NotContains(t, got.Rates, "EUR")

	present, err := store.PayloadExists(ctx, envelope)
	require.NoError(t, err)
	require.True(t, present)
}

func TestFetchSideHandler_UnknownCodeDeadLetters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, time.Hour)
	broker := memory.New(memory.Config{})

	responseProducer, _ := broker.Producer(correlator.TopicResponse)
	dltProducer, _ := broker.Producer(messaging.TopicDeadLetter)
	dltCh := subscribe(t, broker, messaging.TopicDeadLetter)

	up := &fakeUpstream{base: "EUR", date: "2026-07-31", rates: map[string]float64{"USD": 1.3}}
	h := ledger.NewFetchSideHandler(store, up, responseProducer, dltProducer)

	envelope := domain.NewEnvelope(domain.KindFilter, "USD,ZZZ")
	err := h.Handle(ctx, &messaging.Message{
		Payload: []byte(envelope),
		Headers: map[string]string{messaging.HeaderMessageKey: "rid-4"},
	})
	require.NoError(t, err)

	msg := recvWithTimeout(t, dltCh)
	require.Contains(t, string(msg.Payload), "UnknownCode")
}

func TestFetchSideHandler_UpstreamFailurePublishesSyntheticError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, time.Hour)
	broker := memory.New(memory.Config{})

	responseProducer, _ := broker.Producer(correlator.TopicResponse)
	dltProducer, _ := broker.Producer(messaging.TopicDeadLetter)
	responseCh := subscribe(t, broker, correlator.TopicResponse)
	dltCh := subscribe(t, broker, messaging.TopicDeadLetter)

	up := &fakeUpstream{err: errors.New("provider down")}
	h := ledger.NewFetchSideHandler(store, up, responseProducer, dltProducer)

	envelope := domain.NewEnvelope(domain.KindAll, "")
	err := h.Handle(ctx, &messaging.Message{
		Payload: []byte(envelope),
		Headers: map[string]string{messaging.HeaderMessageKey: "rid-5"},
	})
	require.NoError(t, err)

	recvWithTimeout(t, dltCh)

	msg := recvWithTimeout(t, responseCh)
	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Payload, &body))
	require.Equal(t, "rid-5", body["requestId"])
	require.NotEmpty(t, body["error"])
}
