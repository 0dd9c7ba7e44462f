package bot

import (
	"sync"

	"github.com/ariefcatur/go-chat-orders/internal/orders"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingPhone
	StateAwaitingAdminPhoto
	StateAwaitingAdminName
	StateAwaitingAdminPrice
	StateAwaitingAdminDesc
	StateAwaitingRejectReason
)

var stateNames = [...]string{
	"idle",
	"awaiting_phone",
	"awaiting_admin_photo",
	"awaiting_admin_name",
	"awaiting_admin_price",
	"awaiting_admin_desc",
	"awaiting_reject_reason",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Session is one user's dialog state and the input staged so far.
type Session struct {
	State         State
	Draft         orders.ProductDraft
	RejectOrderID string
	// RejectMessageID is the admin notice whose controls are removed once
	// the rejection is recorded.
	RejectMessageID int64
}

func (s *Session) Reset() { *s = Session{} }

// Staged reports whether the user is inside a multi-step input flow.
func (s Session) Staged() bool {
	switch s.State {
	case StateAwaitingAdminPhoto, StateAwaitingAdminName, StateAwaitingAdminPrice,
		StateAwaitingAdminDesc, StateAwaitingRejectReason:
		return true
	}
	return false
}

type entry struct {
	mu   sync.Mutex
	refs int // guarded by Sessions.mu
	s    Session
}

// Sessions maps user id to dialog state. Lock serializes the events of one
// user; different users never contend beyond the map lookup. Idle sessions
// are dropped once nobody holds them.
type Sessions struct {
	mu sync.Mutex
	m  map[int64]*entry
}

func NewSessions() *Sessions {
	return &Sessions{m: map[int64]*entry{}}
}

// Lock returns the user's session for exclusive use until release is called.
func (ss *Sessions) Lock(userID int64) (s *Session, release func()) {
	ss.mu.Lock()
	e, ok := ss.m[userID]
	if !ok {
		e = &entry{}
		ss.m[userID] = e
	}
	e.refs++
	ss.mu.Unlock()

	e.mu.Lock()
	return &e.s, func() {
		e.mu.Unlock()
		ss.mu.Lock()
		defer ss.mu.Unlock()
		e.refs--
		if e.refs == 0 && e.s.State == StateIdle {
			delete(ss.m, userID)
		}
	}
}

// Get returns a copy of the user's session; unknown users are Idle.
func (ss *Sessions) Get(userID int64) Session {
	s, release := ss.Lock(userID)
	defer release()
	return *s
}

func (ss *Sessions) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.m)
}
