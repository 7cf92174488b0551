package kafka

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/EvgeniOk14/CurrencyServiceProject/pkg/errors"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging"
	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// producer is a transactional Kafka sync producer implementation. Every
// Publish/PublishBatch call runs inside its own transaction: a commit means
// every record in the call was durably written exactly once, an abort (or a
// producer-fenced error) means none were.
type producer struct {
	topic    string
	producer sarama.SyncProducer
}

func toKafkaMessage(topic string, msg *messaging.Message) *sarama.ProducerMessage {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic:     topic,
		Value:     sarama.ByteEncoder(msg.Payload),
		Timestamp: msg.Timestamp,
	}

	if len(msg.Key) > 0 {
		kafkaMsg.Key = sarama.ByteEncoder(msg.Key)
	}

	for k, v := range msg.Headers {
		kafkaMsg.Headers = append(kafkaMsg.Headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	kafkaMsg.Headers = append(kafkaMsg.Headers, sarama.RecordHeader{
		Key:   []byte("message-id"),
		Value: []byte(msg.ID),
	})

	return kafkaMsg
}

// asFenced maps a sarama producer-fencing error onto messaging's surfaced
// error so callers (the correlator's pending slot) see a distinct failure
// from an ordinary publish error.
func asFenced(err error) error {
	if errors.Is(err, sarama.ErrTransactionalIDNotFound) ||
		errors.Is(err, sarama.ErrInvalidProducerEpoch) ||
		errors.Is(err, sarama.ErrProducerFenced) {
		return apperrors.Unavailable("transactional producer fenced", err)
	}
	return err
}

func (p *producer) Publish(ctx context.Context, msg *messaging.Message) error {
	kafkaMsg := toKafkaMessage(p.topic, msg)

	if err := p.producer.BeginTxn(); err != nil {
		return asFenced(messaging.ErrPublishFailed(err))
	}

	partition, offset, err := p.producer.SendMessage(kafkaMsg)
	if err != nil {
		_ = p.producer.AbortTxn()
		return asFenced(messaging.ErrPublishFailed(err))
	}

	if err := p.producer.CommitTxn(); err != nil {
		return asFenced(messaging.ErrPublishFailed(err))
	}

	msg.Metadata.Partition = partition
	msg.Metadata.Offset = offset
	return nil
}

func (p *producer) PublishBatch(ctx context.Context, msgs []*messaging.Message) error {
	kafkaMsgs := make([]*sarama.ProducerMessage, len(msgs))
	for i, msg := range msgs {
		kafkaMsgs[i] = toKafkaMessage(p.topic, msg)
	}

	if err := p.producer.BeginTxn(); err != nil {
		return asFenced(messaging.ErrPublishFailed(err))
	}

	if err := p.producer.SendMessages(kafkaMsgs); err != nil {
		_ = p.producer.AbortTxn()
		return asFenced(messaging.ErrPublishFailed(err))
	}

	if err := p.producer.CommitTxn(); err != nil {
		return asFenced(messaging.ErrPublishFailed(err))
	}

	return nil
}

func (p *producer) Close() error {
	return p.producer.Close()
}
