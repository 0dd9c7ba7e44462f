// Package gatewaytest provides a recording Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-chat-orders/internal/gateway"
)

type Kind string

const (
	KindText  Kind = "text"
	KindPhoto Kind = "photo"
	KindEdit  Kind = "edit"
	KindAck   Kind = "ack"
)

type Message struct {
	Kind       Kind
	ChatID     int64
	MessageID  int64
	Text       string // caption for photos, alert for acks
	PhotoRef   string
	CallbackID string
	Keyboard   *gateway.Keyboard
}

// Tokens lists the inline control tokens attached to m.
func (m Message) Tokens() []string {
	if m.Keyboard == nil {
		return nil
	}
	var out []string
	for _, row := range m.Keyboard.Inline {
		for _, b := range row {
			if b.Token != "" {
				out = append(out, b.Token)
			}
		}
	}
	return out
}

// Fake records every outbound call. Sends to a chat listed in FailChats
// return an error and are not recorded.
type Fake struct {
	mu        sync.Mutex
	sent      []Message
	FailChats map[int64]bool
	Members   map[int64]gateway.MemberStatus
	MemberErr error
	// MemberDelay stalls MembershipStatus; the call gives up when ctx ends.
	MemberDelay time.Duration
}

func New() *Fake {
	return &Fake{
		FailChats: map[int64]bool{},
		Members:   map[int64]gateway.MemberStatus{},
	}
}

func (f *Fake) record(m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ChatID != 0 && f.FailChats[m.ChatID] {
		return fmt.Errorf("chat %d unreachable", m.ChatID)
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *Fake) SendText(ctx context.Context, chatID int64, text string, kb *gateway.Keyboard) error {
	return f.record(Message{Kind: KindText, ChatID: chatID, Text: text, Keyboard: kb})
}

func (f *Fake) SendPhoto(ctx context.Context, chatID int64, photoRef, caption string, kb *gateway.Keyboard) error {
	return f.record(Message{Kind: KindPhoto, ChatID: chatID, PhotoRef: photoRef, Text: caption, Keyboard: kb})
}

func (f *Fake) EditMessage(ctx context.Context, chatID, messageID int64, text string, kb *gateway.Keyboard) error {
	return f.record(Message{Kind: KindEdit, ChatID: chatID, MessageID: messageID, Text: text, Keyboard: kb})
}

func (f *Fake) AcknowledgeCallback(ctx context.Context, callbackID, alert string) error {
	return f.record(Message{Kind: KindAck, CallbackID: callbackID, Text: alert})
}

func (f *Fake) MembershipStatus(ctx context.Context, channel string, userID int64) (gateway.MemberStatus, error) {
	f.mu.Lock()
	delay := f.MemberDelay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MemberErr != nil {
		return "", f.MemberErr
	}
	if s, ok := f.Members[userID]; ok {
		return s, nil
	}
	return gateway.MemberLeft, nil
}

func (f *Fake) SetMember(userID int64, s gateway.MemberStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Members[userID] = s
}

func (f *Fake) Sent() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

// To returns what was sent to chatID, acks excluded.
func (f *Fake) To(chatID int64) []Message {
	var out []Message
	for _, m := range f.Sent() {
		if m.ChatID == chatID && m.Kind != KindAck {
			out = append(out, m)
		}
	}
	return out
}

func (f *Fake) Last(chatID int64) (Message, bool) {
	msgs := f.To(chatID)
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}

func (f *Fake) Acks() []Message {
	var out []Message
	for _, m := range f.Sent() {
		if m.Kind == KindAck {
			out = append(out, m)
		}
	}
	return out
}

func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}
