package messaging

import "context"

// Header keys carried on every message hop, per the correlator's wire
// contract: messageKey ties a message to its correlation id on every topic,
// correlationId repeats it on the response topic for the edge's listener.
const (
	HeaderMessageKey  = "messageKey"
	HeaderCorrelation = "correlationId"
	TopicDeadLetter   = "dead-letter"
)

// DeadLetter publishes a malformed or unrecoverable record to the
// dead-letter topic via producer, framing the body as
// "Reason: <reason>, Message: <original>".
func DeadLetter(ctx context.Context, producer Producer, reason string, original []byte, headers map[string]string) error {
	body := "Reason: " + reason + ", Message: " + string(original)

	hdrs := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		hdrs[k] = v
	}

	return producer.Publish(ctx, &Message{
		Topic:   TopicDeadLetter,
		Payload: []byte(body),
		Headers: hdrs,
	})
}
