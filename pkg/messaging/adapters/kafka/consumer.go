package kafka

import (
	"context"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging"
	"github.com/IBM/sarama"
)

// consumer adapts a sarama.ConsumerGroup to messaging.Consumer.
type consumer struct {
	cg    sarama.ConsumerGroup
	topic string
	group string
}

// Consume joins the group's rebalance loop and blocks until ctx is canceled
// or the group returns a fatal error.
func (c *consumer) Consume(ctx context.Context, handler messaging.MessageHandler) error {
	h := &groupHandler{handler: handler}

	for {
		if err := c.cg.Consume(ctx, []string{c.topic}, h); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return messaging.ErrConsumeFailed(err)
		}
		if ctx.Err() != nil {
			return nil
		}
		// Rebalance happened; loop back into Consume to rejoin.
	}
}

func (c *consumer) Close() error {
	return c.cg.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler, translating each
// sarama.ConsumerMessage into a messaging.Message before invoking handler.
// A handler error leaves the record unmarked, but marking a later record on
// the same partition still advances the committed offset past it, so it is
// redelivered after a rebalance only if no later record was marked.
type groupHandler struct {
	handler messaging.MessageHandler
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case rec, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			msg := &messaging.Message{
				Topic:   rec.Topic,
				Key:     rec.Key,
				Payload: rec.Value,
				Headers: make(map[string]string, len(rec.Headers)),
				Metadata: messaging.MessageMetadata{
					Partition: rec.Partition,
					Offset:    rec.Offset,
				},
			}
			for _, hdr := range rec.Headers {
				msg.Headers[string(hdr.Key)] = string(hdr.Value)
			}

			if err := h.handler(session.Context(), msg); err != nil {
				// Leave unmarked and move on to the next record.
				continue
			}
			session.MarkMessage(rec, "")
		}
	}
}
