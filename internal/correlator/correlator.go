// Package correlator is the synchronous-over-asynchronous edge (spec §3,
// C1/C3): it turns one HTTP-shaped Query into a request-topic publish, then
// blocks the caller on a pending slot until the matching reply lands on the
// response topic or a 10s deadline passes. Grounded on the teacher's
// request/reply pattern in pkg/messaging (Broker/Producer/Consumer) plus the
// worker-pool dispatch pattern in pkg/concurrency.
package correlator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/EvgeniOk14/CurrencyServiceProject/internal/domain"
	"github.com/EvgeniOk14/CurrencyServiceProject/internal/workerpool"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/errors"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/logger"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging"
)

// TopicRequest is where Query publishes envelopes for the cache/freshness
// tier to pick up.
const TopicRequest = "request"

// TopicResponse is where the cache/freshness tier publishes replies, keyed
// by the same rid a Query minted.
const TopicResponse = "response"

// Deadline is how long Query waits for a matching reply before giving up
// (spec §3 edge/C3).
const Deadline = 10 * time.Second

// slot is a pending request's one-shot completion channel.
type slot struct {
	done chan outcome
}

type outcome struct {
	reply domain.Reply
	err   error
}

// Correlator owns the pending-slot table and the publish path into the bus.
type Correlator struct {
	producer messaging.Producer
	pool     *workerpool.Pool
	tracer   trace.Tracer

	mu      sync.Mutex
	pending map[string]*slot
}

// New builds a Correlator that publishes request envelopes with producer,
// dispatched through pool.
func New(producer messaging.Producer, pool *workerpool.Pool) *Correlator {
	return &Correlator{
		producer: producer,
		pool:     pool,
		tracer:   otel.Tracer("internal/correlator"),
		pending:  make(map[string]*slot),
	}
}

// Query runs the full request/reply algorithm: mint a correlation id,
// register a pending slot, enqueue the publish, and wait for either a
// reply, the 10s deadline, or ctx cancellation.
func (c *Correlator) Query(ctx context.Context, kind domain.Kind, argument string) (domain.Reply, error) {
	ctx, span := c.tracer.Start(ctx, "correlator.Query", trace.WithAttributes(
		attribute.String("correlator.kind", string(kind)),
		attribute.String("correlator.argument", argument),
	))
	defer span.End()

	rid := uuid.New().String()
	span.SetAttributes(attribute.String("correlator.rid", rid))
	s := &slot{done: make(chan outcome, 1)}

	c.mu.Lock()
	c.pending[rid] = s
	c.mu.Unlock()
	defer c.destroy(rid)

	envelope := domain.NewEnvelope(kind, argument)

	submitErr := c.pool.Submit(func(taskCtx context.Context) {
		msg := &messaging.Message{
			Topic:   TopicRequest,
			Key:     []byte(rid),
			Payload: []byte(envelope),
			Headers: map[string]string{
				messaging.HeaderCorrelation: rid,
				messaging.HeaderMessageKey:  rid,
			},
		}
		if err := c.producer.Publish(taskCtx, msg); err != nil {
			logger.L().ErrorContext(taskCtx, "correlator: publish to request topic failed", "rid", rid, "error", err)
			c.complete(rid, outcome{err: errors.Unavailable("failed to publish request", err)})
		}
	})
	if submitErr != nil {
		err := errors.Unavailable("request pool is saturated", submitErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Reply{}, err
	}

	deadline, cancel := context.WithTimeout(ctx, Deadline)
	defer cancel()

	select {
	case o := <-s.done:
		if o.err != nil {
			span.RecordError(o.err)
			span.SetStatus(codes.Error, o.err.Error())
		} else {
			span.SetStatus(codes.Ok, "reply delivered")
		}
		return o.reply, o.err
	case <-deadline.Done():
		var err error
		if ctx.Err() != nil {
			err = errors.Timeout("request cancelled", ctx.Err())
		} else {
			err = errors.Timeout("no reply within deadline", nil)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Reply{}, err
	}
}

// complete delivers an outcome to rid's pending slot, if it still exists.
func (c *Correlator) complete(rid string, o outcome) {
	c.mu.Lock()
	s, ok := c.pending[rid]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case s.done <- o:
	default:
	}
}

func (c *Correlator) destroy(rid string) {
	c.mu.Lock()
	delete(c.pending, rid)
	c.mu.Unlock()
}

// ListenResponses consumes the response topic and completes matching
// pending slots. Replies whose rid has no pending slot (the caller already
// timed out, or this instance never issued that rid) are silently
// discarded, per spec §3.
func (c *Correlator) ListenResponses(ctx context.Context, consumer messaging.Consumer) error {
	return consumer.Consume(ctx, func(ctx context.Context, msg *messaging.Message) error {
		rid := msg.Headers[messaging.HeaderCorrelation]
		if rid == "" {
			logger.L().WarnContext(ctx, "correlator: response message missing correlation id")
			return nil
		}

		var wire wireResponse
		if err := json.Unmarshal(msg.Payload, &wire); err != nil {
			logger.L().ErrorContext(ctx, "correlator: malformed reply payload", "rid", rid, "error", err)
			return nil
		}

		if wire.Error != "" {
			c.complete(rid, outcome{err: errors.Upstream(wire.Error, nil)})
			return nil
		}
		c.complete(rid, outcome{reply: wire.Reply})
		return nil
	})
}

// wireResponse decodes the response topic's body as either a successful
// reply or the fetch-side's synthetic error (spec §4.4 failure semantics:
// an exhausted-retry fetch publishes {"error": ..., "requestId": ...}
// instead of a Reply so the correlator can surface *Upstream* rather than
// a bare timeout).
type wireResponse struct {
	domain.Reply
	Error string `json:"error,omitempty"`
}
