// Package domain contains core concepts of the chat system.
// No runtime, network, or UI logic should be added here.
package domain

// GroupID is the authorization and broadcast scope. Connections join a
// group and messages are exchanged within it.
type GroupID string

// Identity is an authenticated principal, resolved by the token layer
// before any core operation begins.
type Identity struct {
	UserID    string
	TenantID  string
	Groups    []string // groups the identity may join/read/write
	Moderator []string // groups where the identity holds the elevated capability
}

// Grant is the result of a membership check at join time. The core trusts
// it for the lifetime of the connection; a reconnect re-validates.
type Grant struct {
	TenantID string
	Elevated bool
}

// Actor is the acting side of a mutation: the identity plus the elevated
// capability captured when it joined the group.
type Actor struct {
	UserID   string
	TenantID string
	Elevated bool
}
