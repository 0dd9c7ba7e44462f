package kafkagw

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-chat-orders/internal/gateway"
	kafkax "github.com/ariefcatur/go-chat-orders/internal/kafka"
	"github.com/ariefcatur/go-chat-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventHandler processes one decoded inbound event.
type EventHandler func(ctx context.Context, ev gateway.Event) error

// DecodeUpdate unwraps an UpdateReceived envelope.
func DecodeUpdate(m kafkago.Message) (gateway.Event, error) {
	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		return gateway.Event{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType != EventUpdateReceived {
		return gateway.Event{}, fmt.Errorf("unexpected event type %q", env.EventType)
	}
	u, err := kafkax.UnwrapPayload[gateway.Update](env.Payload)
	if err != nil {
		return gateway.Event{}, err
	}
	if u.From.ID == 0 {
		return gateway.Event{}, fmt.Errorf("update %s without sender", u.UpdateID)
	}
	if u.UpdateID == "" {
		u.UpdateID = env.EventID
	}
	return gateway.Decode(u), nil
}

// UpdateHandler adapts h to the consumer. Messages that cannot be decoded
// are logged and committed; handler errors are returned for retry.
func UpdateHandler(h EventHandler, log *zap.SugaredLogger) kafkax.Handler {
	return func(ctx context.Context, m kafkago.Message) error {
		ev, err := DecodeUpdate(m)
		if err != nil {
			log.Warnw("skip malformed update", "partition", m.Partition, "offset", m.Offset, "error", err)
			return nil
		}
		return h(ctx, ev)
	}
}

// UpdateMessage builds the inbound message a transport would publish.
func UpdateMessage(u gateway.Update, producer string) kafkago.Message {
	ev := orders.Envelope{
		EventID:      u.UpdateID,
		EventType:    EventUpdateReceived,
		EventVersion: 1,
		Producer:     producer,
		Payload:      kafkax.MustMarshal(u),
	}
	return kafkago.Message{
		Key:   orders.UserKey(u.From.ID),
		Value: kafkax.MustMarshal(ev),
		Headers: []kafkago.Header{
			{Key: "x-event-type", Value: []byte(EventUpdateReceived)},
		},
	}
}
