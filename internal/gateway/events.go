package gateway

type Kind string

const (
	KindCommand  Kind = "command"
	KindText     Kind = "text"
	KindContact  Kind = "contact"
	KindPhoto    Kind = "photo"
	KindCallback Kind = "callback"
)

type Sender struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// Event is one inbound update after boundary decoding. For KindCallback the
// raw callback data has already been parsed into Control; a zero Control
// means the data was malformed.
type Event struct {
	UpdateID   string
	Kind       Kind
	From       Sender
	ChatID     int64
	MessageID  int64 // message the event came from; for callbacks, the message bearing the control
	Command    string
	Text       string
	Phone      string
	PhotoRef   string
	CallbackID string
	Control    Control
}

// Update is the wire form of an inbound event.
type Update struct {
	UpdateID     string `json:"update_id"`
	From         Sender `json:"from"`
	ChatID       int64  `json:"chat_id"`
	MessageID    int64  `json:"message_id,omitempty"`
	Text         string `json:"text,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	PhotoRef     string `json:"photo_ref,omitempty"`
	CallbackID   string `json:"callback_id,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// Decode classifies u into a typed Event.
func Decode(u Update) Event {
	ev := Event{
		UpdateID:  u.UpdateID,
		From:      u.From,
		ChatID:    u.ChatID,
		MessageID: u.MessageID,
		Text:      u.Text,
	}
	if ev.ChatID == 0 {
		ev.ChatID = u.From.ID
	}
	switch {
	case u.CallbackID != "":
		ev.Kind = KindCallback
		ev.CallbackID = u.CallbackID
		ev.Control, _ = ParseControl(u.CallbackData)
	case u.ContactPhone != "":
		ev.Kind = KindContact
		ev.Phone = u.ContactPhone
	case u.PhotoRef != "":
		ev.Kind = KindPhoto
		ev.PhotoRef = u.PhotoRef
	case len(u.Text) > 1 && u.Text[0] == '/':
		ev.Kind = KindCommand
		ev.Command = commandName(u.Text[1:])
	default:
		ev.Kind = KindText
	}
	return ev
}

// commandName strips arguments and a "@botname" suffix.
func commandName(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '@' {
			return s[:i]
		}
	}
	return s
}
