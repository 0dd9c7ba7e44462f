// Package kafkagw bridges the gateway interfaces onto Kafka topics and the
// transport sidecar's HTTP membership endpoint.
package kafkagw

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-chat-orders/internal/gateway"
	kafkax "github.com/ariefcatur/go-chat-orders/internal/kafka"
	"github.com/ariefcatur/go-chat-orders/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	TopicUpdates  = "bot.updates"
	TopicOutbound = "bot.outbound"

	EventUpdateReceived = "UpdateReceived"
	EventSendText       = "SendText"
	EventSendPhoto      = "SendPhoto"
	EventEditMessage    = "EditMessage"
	EventAnswerCallback = "AnswerCallback"
)

type SendTextCommand struct {
	ChatID    int64             `json:"chat_id"`
	Text      string            `json:"text"`
	ParseMode string            `json:"parse_mode"`
	Keyboard  *gateway.Keyboard `json:"keyboard,omitempty"`
}

type SendPhotoCommand struct {
	ChatID    int64             `json:"chat_id"`
	PhotoRef  string            `json:"photo_ref"`
	Caption   string            `json:"caption"`
	ParseMode string            `json:"parse_mode"`
	Keyboard  *gateway.Keyboard `json:"keyboard,omitempty"`
}

// EditMessageCommand with an empty Text keeps the message text; a nil
// Keyboard removes its inline controls.
type EditMessageCommand struct {
	ChatID    int64             `json:"chat_id"`
	MessageID int64             `json:"message_id"`
	Text      string            `json:"text,omitempty"`
	ParseMode string            `json:"parse_mode,omitempty"`
	Keyboard  *gateway.Keyboard `json:"keyboard,omitempty"`
}

type AnswerCallbackCommand struct {
	CallbackID string `json:"callback_id"`
	Text       string `json:"text,omitempty"`
	ShowAlert  bool   `json:"show_alert"`
}

const parseModeHTML = "HTML"

// Gateway publishes outbound commands and asks Members for membership.
type Gateway struct {
	Out      orders.Publisher
	Members  gateway.MembershipChecker
	Producer string
}

var _ gateway.Gateway = (*Gateway)(nil)

func (g *Gateway) SendText(ctx context.Context, chatID int64, text string, kb *gateway.Keyboard) error {
	return g.publish(ctx, chatKey(chatID), EventSendText, SendTextCommand{
		ChatID: chatID, Text: text, ParseMode: parseModeHTML, Keyboard: kb,
	})
}

func (g *Gateway) SendPhoto(ctx context.Context, chatID int64, photoRef, caption string, kb *gateway.Keyboard) error {
	return g.publish(ctx, chatKey(chatID), EventSendPhoto, SendPhotoCommand{
		ChatID: chatID, PhotoRef: photoRef, Caption: caption, ParseMode: parseModeHTML, Keyboard: kb,
	})
}

func (g *Gateway) EditMessage(ctx context.Context, chatID, messageID int64, text string, kb *gateway.Keyboard) error {
	cmd := EditMessageCommand{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb}
	if text != "" {
		cmd.ParseMode = parseModeHTML
	}
	return g.publish(ctx, chatKey(chatID), EventEditMessage, cmd)
}

func (g *Gateway) AcknowledgeCallback(ctx context.Context, callbackID, alert string) error {
	return g.publish(ctx, []byte(callbackID), EventAnswerCallback, AnswerCallbackCommand{
		CallbackID: callbackID, Text: alert, ShowAlert: alert != "",
	})
}

func (g *Gateway) MembershipStatus(ctx context.Context, channel string, userID int64) (gateway.MemberStatus, error) {
	return g.Members.MembershipStatus(ctx, channel, userID)
}

func (g *Gateway) publish(ctx context.Context, key []byte, eventType string, cmd any) error {
	ev := orders.Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     g.Producer,
		Payload:      kafkax.MustMarshal(cmd),
	}
	err := g.Out.Publish(ctx, key, kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func chatKey(chatID int64) []byte { return []byte(strconv.FormatInt(chatID, 10)) }
