// Package memory provides an in-process Broker for tests and local
// development. Topics are plain Go channels; there is no persistence and no
// partitioning, but the Producer/Consumer/Broker contracts from pkg/messaging
// are honored, including header propagation.
package memory

import (
	"context"
	"sync"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging"
	"github.com/google/uuid"
)

// Config configures the in-memory broker.
type Config struct {
	// BufferSize sets the channel capacity backing each topic.
	BufferSize int
}

// Broker is a channel-backed messaging.Broker implementation.
type Broker struct {
	cfg Config

	mu     sync.Mutex
	topics map[string]*topic
	closed bool
}

type topic struct {
	subs []chan *messaging.Message
}

// New creates an in-memory broker.
func New(cfg Config) *Broker {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	return &Broker{cfg: cfg, topics: make(map[string]*topic)}
}

func (b *Broker) topicFor(name string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[name]
	if !ok {
		t = &topic{}
		b.topics[name] = t
	}
	return t
}

// Producer creates a producer that fans messages out to every consumer
// currently subscribed to topic.
func (b *Broker) Producer(topic string) (messaging.Producer, error) {
	return &producer{broker: b, topic: topic}, nil
}

// Consumer subscribes to topic. group is accepted for interface parity but
// does not affect delivery: every Consumer call gets its own channel, so
// fan-out always happens (there is no load-balancing across a "group" the
// way a real consumer group would partition it).
func (b *Broker) Consumer(topicName string, group string) (messaging.Consumer, error) {
	t := b.topicFor(topicName)
	ch := make(chan *messaging.Message, b.cfg.BufferSize)

	b.mu.Lock()
	t.subs = append(t.subs, ch)
	b.mu.Unlock()

	return &consumer{broker: b, topic: t, ch: ch}, nil
}

// Close marks the broker closed. The flag is not checked anywhere: existing
// producers and consumers keep working, and new ones can still be created.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Healthy always reports true for the in-memory broker.
func (b *Broker) Healthy(ctx context.Context) bool {
	return true
}

type producer struct {
	broker *Broker
	topic  string
}

func (p *producer) Publish(ctx context.Context, msg *messaging.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	t := p.broker.topicFor(p.topic)

	p.broker.mu.Lock()
	subs := make([]chan *messaging.Message, len(t.subs))
	copy(subs, t.subs)
	p.broker.mu.Unlock()

	cp := *msg
	for _, ch := range subs {
		select {
		case ch <- &cp:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *producer) PublishBatch(ctx context.Context, msgs []*messaging.Message) error {
	for _, m := range msgs {
		if err := p.Publish(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (p *producer) Close() error { return nil }

type consumer struct {
	broker *Broker
	topic  *topic
	ch     chan *messaging.Message
}

func (c *consumer) Consume(ctx context.Context, handler messaging.MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.ch:
			if !ok {
				return nil
			}
			_ = handler(ctx, msg)
		}
	}
}

func (c *consumer) Close() error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	for i, ch := range c.topic.subs {
		if ch == c.ch {
			c.topic.subs = append(c.topic.subs[:i], c.topic.subs[i+1:]...)
			break
		}
	}
	close(c.ch)
	return nil
}
