package memory_test

import (
	"testing"

	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging/adapters/memory"
	"github.com/EvgeniOk14/CurrencyServiceProject/pkg/messaging/tests"
)

func TestMemoryBroker(t *testing.T) {
	broker := memory.New(memory.Config{BufferSize: 100})
	defer broker.Close()

	tests.RunBrokerTests(t, broker)
}
