// Package gateway is the boundary to the chat transport: typed inbound
// events, inline control tokens and the outbound interface the core uses.
package gateway

import "context"

// Button is one inline control. Exactly one of Token or URL is set.
type Button struct {
	Text  string `json:"text"`
	Token string `json:"token,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Keyboard carries either inline controls or a reply menu.
type Keyboard struct {
	Inline         [][]Button `json:"inline,omitempty"`
	Reply          [][]string `json:"reply,omitempty"`
	RequestContact bool       `json:"request_contact,omitempty"` // reply buttons share the phone number
	RemoveReply    bool       `json:"remove_reply,omitempty"`
}

func InlineRow(buttons ...Button) *Keyboard {
	return &Keyboard{Inline: [][]Button{buttons}}
}

type MemberStatus string

const (
	MemberMember        MemberStatus = "member"
	MemberAdministrator MemberStatus = "administrator"
	MemberCreator       MemberStatus = "creator"
	MemberRestricted    MemberStatus = "restricted"
	MemberLeft          MemberStatus = "left"
	MemberKicked        MemberStatus = "kicked"
)

// Subscribed reports whether s grants access to the service.
func (s MemberStatus) Subscribed() bool {
	switch s {
	case MemberMember, MemberAdministrator, MemberCreator:
		return true
	}
	return false
}

// Messenger sends chat messages. All outbound text and captions are HTML,
// with or without a Keyboard; callers escape user-supplied content.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) error
	SendPhoto(ctx context.Context, chatID int64, photoRef, caption string, kb *Keyboard) error
}

type MembershipChecker interface {
	MembershipStatus(ctx context.Context, channel string, userID int64) (MemberStatus, error)
}

type Gateway interface {
	Messenger
	MembershipChecker
	// EditMessage replaces the text and controls of a sent message. An empty
	// text keeps the current one; a nil kb removes the inline controls.
	EditMessage(ctx context.Context, chatID, messageID int64, text string, kb *Keyboard) error
	AcknowledgeCallback(ctx context.Context, callbackID, alert string) error
}
