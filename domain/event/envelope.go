package event

import (
	"time"

	"chat-relay/domain"

	"github.com/google/uuid"
)

// Envelope is the logical payload shape handed to transports:
// {type, groupId, payload} where payload is a message snapshot or a
// membership count, depending on type.
type Envelope struct {
	Type    Kind           `json:"type"`
	GroupID domain.GroupID `json:"groupId"`
	Payload any            `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

type MembershipPayload struct {
	UserID  string `json:"userId,omitempty"`
	Members int    `json:"members"`
}

type DeletionPayload struct {
	MessageID uuid.UUID `json:"id"`
}

// ToEnvelope flattens a typed event into its wire shape.
func ToEnvelope(e BroadcastEvent) Envelope {
	switch evt := e.(type) {
	case MemberJoined:
		return Envelope{Type: KindJoined, GroupID: evt.Group, At: evt.At,
			Payload: MembershipPayload{UserID: evt.UserID, Members: evt.Members}}
	case MemberLeft:
		return Envelope{Type: KindLeft, GroupID: evt.Group, At: evt.At,
			Payload: MembershipPayload{UserID: evt.UserID, Members: evt.Members}}
	case MessageCreated:
		return Envelope{Type: KindMessageCreated, GroupID: evt.Message.Group, At: evt.At, Payload: evt.Message}
	case MessageUpdated:
		return Envelope{Type: KindMessageUpdated, GroupID: evt.Message.Group, At: evt.At, Payload: evt.Message}
	case MessageDeleted:
		return Envelope{Type: KindMessageDeleted, GroupID: evt.Group, At: evt.At,
			Payload: DeletionPayload{MessageID: evt.MessageID}}
	case LivenessPing:
		return Envelope{Type: KindLivenessPing, GroupID: evt.Group, At: evt.At}
	default:
		return Envelope{Type: e.Kind(), GroupID: e.GroupID(), At: time.Now().UTC()}
	}
}
