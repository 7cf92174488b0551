package ledger

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/EvgeniOk14/CurrencyServiceProject/internal/correlator"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/currency"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/domain"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/logger"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging"
)

// TopicFetch is where the request-side handler republishes envelopes that
// missed the cache, and where the fetch-side handler listens.
const TopicFetch = "fetch"

// staleness is the 1-hour freshness window. RequestSideHandler does not
// consult it: the fresh-or-stale decision is made by Store.Lookup against
// the configured cache.freshnessSec (3600s by default).
const staleness = time.Hour

// Deduper is the subset of the dedup ledger the request-side handler
// needs. Defined here, rather than importing internal/dedup directly by
// concrete type, so tests can fake it.
type Deduper interface {
	Exists(ctx context.Context, rid string) (bool, error)
	Insert(ctx context.Context, rid string) error
}

// Upstream is the subset of the upstream client the fetch-side handler
// needs.
type Upstream interface {
	FetchRates(ctx context.Context) (base string, date string, rates map[string]float64, err error)
}

// RequestSideHandler implements spec §4.4's request-side algorithm: dedup,
// payload presence, staleness/containment decision, and the fan-out to
// either `response` (cache hit) or `fetch` (miss/stale).
type RequestSideHandler struct {
	store  *Store
	dedup  Deduper
	fetchP messaging.Producer
	respP  messaging.Producer
	dltP   messaging.Producer
}

// NewRequestSideHandler wires a RequestSideHandler. fetchProducer publishes
// onto TopicFetch, responseProducer onto correlator.TopicResponse, and
// dltProducer onto messaging.TopicDeadLetter.
func NewRequestSideHandler(store *Store, dedup Deduper, fetchProducer, responseProducer, dltProducer messaging.Producer) *RequestSideHandler {
	return &RequestSideHandler{store: store, dedup: dedup, fetchP: fetchProducer, respP: responseProducer, dltP: dltProducer}
}

// Handle is a messaging.MessageHandler for the `request` topic.
func (h *RequestSideHandler) Handle(ctx context.Context, msg *messaging.Message) error {
	rid := msg.Headers[messaging.HeaderMessageKey]
	if rid == "" {
		logger.L().WarnContext(ctx, "request-side: message missing correlation id")
		return messaging.DeadLetter(ctx, h.dltP, "MissingCorrelation", msg.Payload, msg.Headers)
	}

	body := string(msg.Payload)
	if body == "" || !domain.HasRecognisedPrefix(body) {
		return messaging.DeadLetter(ctx, h.dltP, "Unrecognised", msg.Payload, msg.Headers)
	}

	exists, err := h.dedup.Exists(ctx, rid)
	if err != nil {
		logger.L().ErrorContext(ctx, "request-side: dedup check failed", "rid", rid, "error", err)
		return err
	}
	if exists {
		logger.L().DebugContext(ctx, "request-side: duplicate delivery dropped", "rid", rid)
		return nil
	}
	if err := h.dedup.Insert(ctx, rid); err != nil {
		logger.L().ErrorContext(ctx, "request-side: dedup insert failed", "rid", rid, "error", err)
		return err
	}

	kind, argument, err := domain.Parse(body)
	if err != nil {
		return messaging.DeadLetter(ctx, h.dltP, "Unrecognised", msg.Payload, msg.Headers)
	}
	envelope := domain.NewEnvelope(kind, argument)

	present, err := h.store.PayloadExists(ctx, envelope)
	if err != nil {
		return err
	}
	if !present {
		return h.republish(ctx, rid, body)
	}

	reply, fresh, err := h.store.Lookup(ctx, kind, argument)
	if err != nil {
		return err
	}
	if fresh {
		return h.publishResponse(ctx, rid, reply)
	}

	if err := h.store.TouchPayload(ctx, kind, argument); err != nil {
		logger.L().WarnContext(ctx, "request-side: failed to touch payload before republish", "error", err)
	}
	return h.republish(ctx, rid, body)
}

func (h *RequestSideHandler) republish(ctx context.Context, rid, body string) error {
	return h.fetchP.Publish(ctx, &messaging.Message{
		Topic:   TopicFetch,
		Key:     []byte(rid),
		Payload: []byte(body),
		Headers: map[string]string{messaging.HeaderMessageKey: rid},
	})
}

func (h *RequestSideHandler) publishResponse(ctx context.Context, rid string, reply domain.Reply) error {
	reply.RequestID = rid
	body, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return h.respP.Publish(ctx, &messaging.Message{
		Topic:   correlator.TopicResponse,
		Key:     []byte(rid),
		Payload: body,
		Headers: map[string]string{
			messaging.HeaderMessageKey:  rid,
			messaging.HeaderCorrelation: rid,
		},
	})
}

// FetchSideHandler implements spec §4.4's fetch-side algorithm: call
// upstream (with retry/circuit-breaker baked into Upstream), project to
// the requested codes, upsert the ledger, and publish the reply.
type FetchSideHandler struct {
	store    *Store
	upstream Upstream
	respP    messaging.Producer
	dltP     messaging.Producer
}

// NewFetchSideHandler wires a FetchSideHandler.
func NewFetchSideHandler(store *Store, upstream Upstream, responseProducer, dltProducer messaging.Producer) *FetchSideHandler {
	return &FetchSideHandler{store: store, upstream: upstream, respP: responseProducer, dltP: dltProducer}
}

// Handle is a messaging.MessageHandler for the `fetch` topic.
func (h *FetchSideHandler) Handle(ctx context.Context, msg *messaging.Message) error {
	rid := msg.Headers[messaging.HeaderMessageKey]
	body := string(msg.Payload)

	if rid == "" || body == "" || !domain.HasRecognisedPrefix(body) {
		return messaging.DeadLetter(ctx, h.dltP, "Unrecognised", msg.Payload, msg.Headers)
	}

	kind, argument, err := domain.Parse(body)
	if err != nil {
		return messaging.DeadLetter(ctx, h.dltP, "Unrecognised", msg.Payload, msg.Headers)
	}
	codes := domain.Codes(kind, argument)

	base, date, rates, err := h.upstream.FetchRates(ctx)
	if err != nil {
		logger.L().ErrorContext(ctx, "fetch-side: upstream exhausted retries", "rid", rid, "error", err)
		if dltErr := messaging.DeadLetter(ctx, h.dltP, "UpstreamUnavailable", msg.Payload, msg.Headers); dltErr != nil {
			logger.L().ErrorContext(ctx, "fetch-side: dlt publish failed", "error", dltErr)
		}
		return h.publishSyntheticError(ctx, rid, "upstream rates provider unavailable")
	}

	currency := argument
	if kind == domain.KindAll {
		currency = string(domain.KindAll)
	}
	reply := domain.Reply{Rates: rates, BaseCurrency: base, Date: date, Currency: currency, RequestID: rid}

	if len(codes) > 0 {
		if !reply.ContainsAll(codes) {
			return messaging.DeadLetter(ctx, h.dltP, "UnknownCode: "+missingCodeLabels(reply, codes), msg.Payload, msg.Headers)
		}
		reply = reply.Project(codes)
	}

	if err := h.store.Record(ctx, kind, argument, reply, time.Now()); err != nil {
		logger.L().ErrorContext(ctx, "fetch-side: failed to record ledger entry", "rid", rid, "error", err)
		return err
	}

	return h.publishReply(ctx, rid, reply)
}

// missingCodeLabels renders the codes absent from reply.Rates as
// human-readable labels (internal/currency), for the dead-letter reason
// text a FILTER request with an unknown code produces.
func missingCodeLabels(reply domain.Reply, codes []string) string {
	var missing []string
	for _, c := range codes {
		if _, ok := reply.Rates[c]; !ok {
			missing = append(missing, currency.Label(c))
		}
	}
	return strings.Join(missing, ", ")
}

func (h *FetchSideHandler) publishReply(ctx context.Context, rid string, reply domain.Reply) error {
	body, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return h.respP.Publish(ctx, &messaging.Message{
		Topic:   correlator.TopicResponse,
		Key:     []byte(rid),
		Payload: body,
		Headers: map[string]string{
			messaging.HeaderMessageKey:  rid,
			messaging.HeaderCorrelation: rid,
		},
	})
}

// publishSyntheticError emits an error body on `response` so the
// correlator surfaces *Upstream* instead of letting the caller time out
// (spec §4.4 step 2 / failure semantics).
func (h *FetchSideHandler) publishSyntheticError(ctx context.Context, rid, reason string) error {
	body, _ := json.Marshal(map[string]string{"error": reason, "requestId": rid})
	return h.respP.Publish(ctx, &messaging.Message{
		Topic:   correlator.TopicResponse,
		Key:     []byte(rid),
		Payload: body,
		Headers: map[string]string{
			messaging.HeaderMessageKey:  rid,
			messaging.HeaderCorrelation: rid,
		},
	})
}
