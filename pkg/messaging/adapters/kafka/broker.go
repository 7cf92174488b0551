// Package kafka adapts github.com/IBM/sarama to the pkg/messaging
// Broker/Producer/Consumer contracts, with transactional, idempotent
// producers and consumer-group based consumers.
package kafka

import (
	"context"
	"time"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging"
	"github.com/IBM/sarama"
)

// Config configures the Kafka broker adapter.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string `env:"BUS_BROKERS" env-separator:"," validate:"required"`

	// TransactionalIDPrefix seeds each producer's transactional.id; the
	// topic name is appended so producers for different topics get distinct
	// transaction coordinators and never fence each other.
	TransactionalIDPrefix string `env:"BUS_TRANSACTIONAL_ID_PREFIX" env-default:"currency-svc"`

	// EnableIdempotence turns on exactly-once-per-partition semantics for
	// the underlying producer (required for transactional sends).
	EnableIdempotence bool `env:"BUS_ENABLE_IDEMPOTENCE" env-default:"true"`

	// Version is the Kafka protocol version to negotiate; empty means 2.8.0.
	Version string `env:"BUS_KAFKA_VERSION" env-default:"2.8.0"`
}

func (c Config) saramaConfig() (*sarama.Config, error) {
	raw := c.Version
	if raw == "" {
		raw = "2.8.0"
	}
	version, err := sarama.ParseKafkaVersion(raw)
	if err != nil {
		return nil, messaging.ErrInvalidConfig("invalid kafka version: "+raw, err)
	}

	sc := sarama.NewConfig()
	sc.Version = version
	sc.Producer.Idempotent = c.EnableIdempotence
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	sc.Producer.Return.Successes = true
	sc.Net.MaxOpenRequests = 1
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest // earliest on fresh groups, per spec
	return sc, nil
}

// Broker is a sarama-backed messaging.Broker. A single Broker fans out into
// one dedicated sarama client per Producer/Consumer it creates, since each
// transactional producer needs its own transactional.id and therefore its
// own client configuration.
type Broker struct {
	cfg Config

	healthClient sarama.Client
}

// New validates connectivity to the Kafka cluster described by cfg and
// returns a ready Broker.
func New(cfg Config) (*Broker, error) {
	sc, err := cfg.saramaConfig()
	if err != nil {
		return nil, err
	}

	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, messaging.ErrConnectionFailed(err)
	}

	return &Broker{cfg: cfg, healthClient: client}, nil
}

// Producer returns a transactional, idempotent producer scoped to topic.
func (b *Broker) Producer(topic string) (messaging.Producer, error) {
	sc, err := b.cfg.saramaConfig()
	if err != nil {
		return nil, err
	}
	sc.Producer.Transaction.ID = b.cfg.TransactionalIDPrefix + "-" + topic
	sc.Producer.Idempotent = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Net.MaxOpenRequests = 1

	sp, err := sarama.NewSyncProducer(b.cfg.Brokers, sc)
	if err != nil {
		return nil, messaging.ErrPublishFailed(err)
	}

	return &producer{topic: topic, producer: sp}, nil
}

// Consumer joins consumer group `group`, reading from topic. Fresh groups
// start from the earliest offset so pending requests survive a cold start.
func (b *Broker) Consumer(topic string, group string) (messaging.Consumer, error) {
	sc, err := b.cfg.saramaConfig()
	if err != nil {
		return nil, err
	}

	cg, err := sarama.NewConsumerGroup(b.cfg.Brokers, group, sc)
	if err != nil {
		return nil, messaging.ErrConsumerGroupConflict(group, err)
	}
	return &consumer{cg: cg, topic: topic, group: group}, nil
}

// Close releases the broker's health-check client. Producers and consumers
// created from this broker own their own sarama clients and must be closed
// individually.
func (b *Broker) Close() error {
	return b.healthClient.Close()
}

// Healthy reports whether the cluster's metadata can still be refreshed.
func (b *Broker) Healthy(ctx context.Context) bool {
	done := make(chan error, 1)
	go func() { done <- b.healthClient.RefreshMetadata() }()

	select {
	case err := <-done:
		return err == nil
	case <-time.After(2 * time.Second):
		return false
	case <-ctx.Done():
		return false
	}
}
