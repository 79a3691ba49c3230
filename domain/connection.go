package domain

import (
	"github.com/google/uuid"
)

// Connection is one live duplex channel to a client, joined to exactly one
// group at a time. It is exclusively owned by the ConnectionRegistry once
// registered: the registry is the only writer of the group membership maps.
type Connection struct {
	ID     uuid.UUID
	UserID string
	Group  GroupID
}

// Session is what a successful join hands back to the transport layer:
// the connection handle plus the grant captured from the membership oracle.
// Mutations reuse the session's Actor for the lifetime of the connection.
type Session struct {
	Connection Connection
	TenantID   string
	Elevated   bool
}

// Actor returns the acting identity for mutations issued on this session.
func (s Session) Actor() Actor {
	return Actor{
		UserID:   s.Connection.UserID,
		TenantID: s.TenantID,
		Elevated: s.Elevated,
	}
}
