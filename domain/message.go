// Package domain contains core concepts of the chat system.
// This file defines Message entities and related rules.
// Messages are validated by the domain and persisted by the message store.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is the unit of content being broadcast. Deletion is a flag flip,
// never a physical removal, so history survives moderation.
type Message struct {
	ID        uuid.UUID
	Group     GroupID
	SenderID  string
	TenantID  string
	Content   string
	Lang      string // ISO 639-1 code detected at ingestion, may be empty
	CreatedAt time.Time
	UpdatedAt time.Time
	Deleted   bool
}

// Snapshot is the read-only shape of a message carried inside broadcast
// events. Deleted messages are never snapshotted with content.
type Snapshot struct {
	ID        uuid.UUID `json:"id"`
	Group     GroupID   `json:"groupId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m Message) Snapshot() Snapshot {
	return Snapshot{
		ID:        m.ID,
		Group:     m.Group,
		SenderID:  m.SenderID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
