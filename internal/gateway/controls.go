package gateway

import (
	"errors"
	"strings"
)

type Action string

const (
	ActionOrder    Action = "order"
	ActionConfirm  Action = "confirm"
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionCheckSub Action = "check_sub"
	ActionCancel   Action = "cancel"
)

// actions that must carry an entity id after the separator.
var withID = map[Action]bool{
	ActionOrder:   true,
	ActionConfirm: true,
	ActionAccept:  true,
	ActionReject:  true,
}

var ErrMalformedControl = errors.New("malformed control token")

// Control is a parsed inline control token "<action>_<id>".
type Control struct {
	Action Action
	ID     string
}

func (c Control) Token() string {
	if c.ID == "" {
		return string(c.Action)
	}
	return string(c.Action) + "_" + c.ID
}

func (c Control) Valid() bool { return c.Action != "" }

// ParseControl splits on the first separator after a known action, so ids
// that contain "_" themselves (ORDER_7) survive.
func ParseControl(token string) (Control, error) {
	switch token {
	case string(ActionCheckSub):
		return Control{Action: ActionCheckSub}, nil
	case string(ActionCancel):
		return Control{Action: ActionCancel}, nil
	}
	name, id, ok := strings.Cut(token, "_")
	if !ok || id == "" {
		return Control{}, ErrMalformedControl
	}
	a := Action(name)
	if !withID[a] && a != ActionCancel {
		return Control{}, ErrMalformedControl
	}
	return Control{Action: a, ID: id}, nil
}

func Token(a Action, id string) string {
	return Control{Action: a, ID: id}.Token()
}
