// Package tests holds a broker conformance suite shared by every
// pkg/messaging adapter's own *_test.go (see adapters/memory/memory_test.go).
package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBrokerTests exercises the minimal Broker contract: a message published
// to a topic is observed by a consumer subscribed to that topic, headers
// survive the round trip, and Healthy reports true.
func RunBrokerTests(t *testing.T, broker messaging.Broker) {
	t.Helper()

	t.Run("publish and consume roundtrip", func(t *testing.T) {
		const topicName = "roundtrip"

		consumer, err := broker.Consumer(topicName, "test-group")
		require.NoError(t, err)
		defer consumer.Close()

		producer, err := broker.Producer(topicName)
		require.NoError(t, err)
		defer producer.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		received := make(chan *messaging.Message, 1)
		var once sync.Once
		go func() {
			_ = consumer.Consume(ctx, func(_ context.Context, msg *messaging.Message) error {
				once.Do(func() { received <- msg })
				return nil
			})
		}()

		// Give the consumer goroutine a chance to register before publishing.
		time.Sleep(10 * time.Millisecond)

		err = producer.Publish(ctx, &messaging.Message{
			Topic:   topicName,
			Payload: []byte("hello"),
			Headers: map[string]string{"messageKey": "rid-1"},
		})
		require.NoError(t, err)

		select {
		case msg := <-received:
			assert.Equal(t, []byte("hello"), msg.Payload)
			assert.Equal(t, "rid-1", msg.Headers["messageKey"])
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for message")
		}
	})

	t.Run("healthy reports true", func(t *testing.T) {
		assert.True(t, broker.Healthy(context.Background()))
	})
}
