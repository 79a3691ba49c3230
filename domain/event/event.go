package event

import (
	"time"

	"chat-relay/domain"

	"github.com/google/uuid"
)

// Kind is the wire-level event discriminator pushed to connections.
type Kind string

const (
	KindJoined         Kind = "joined"
	KindLeft           Kind = "left"
	KindMessageCreated Kind = "message-created"
	KindMessageUpdated Kind = "message-updated"
	KindMessageDeleted Kind = "message-deleted"
	KindLivenessPing   Kind = "liveness-ping"
)

// BroadcastEvent is a transient notification delivered to every connection
// of a group. Events are never persisted.
type BroadcastEvent interface {
	GroupID() domain.GroupID
	Kind() Kind
}

// MemberJoined is emitted after a connection enters the registry. The
// joining connection receives it too, as confirmation of a successful join.
type MemberJoined struct {
	Group   domain.GroupID
	UserID  string
	Members int
	At      time.Time
}

func (e MemberJoined) GroupID() domain.GroupID { return e.Group }
func (e MemberJoined) Kind() Kind              { return KindJoined }

// MemberLeft is emitted after a connection is removed; only the remaining
// members observe it.
type MemberLeft struct {
	Group   domain.GroupID
	UserID  string
	Members int
	At      time.Time
}

func (e MemberLeft) GroupID() domain.GroupID { return e.Group }
func (e MemberLeft) Kind() Kind              { return KindLeft }

type MessageCreated struct {
	Message domain.Snapshot
	At      time.Time
}

func (e MessageCreated) GroupID() domain.GroupID { return e.Message.Group }
func (e MessageCreated) Kind() Kind              { return KindMessageCreated }

type MessageUpdated struct {
	Message domain.Snapshot
	At      time.Time
}

func (e MessageUpdated) GroupID() domain.GroupID { return e.Message.Group }
func (e MessageUpdated) Kind() Kind              { return KindMessageUpdated }

// MessageDeleted carries only the identifier: content must not leak to
// clients that cache deleted messages.
type MessageDeleted struct {
	Group     domain.GroupID
	MessageID uuid.UUID
	At        time.Time
}

func (e MessageDeleted) GroupID() domain.GroupID { return e.Group }
func (e MessageDeleted) Kind() Kind              { return KindMessageDeleted }

type LivenessPing struct {
	Group domain.GroupID
	At    time.Time
}

func (e LivenessPing) GroupID() domain.GroupID { return e.Group }
func (e LivenessPing) Kind() Kind              { return KindLivenessPing }
