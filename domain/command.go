package domain

import (
	"github.com/google/uuid"
)

// Commands carry a mutation intent from the transport layer into the
// lifecycle coordinator. Validation tags are enforced before any
// persistence call is attempted.

type PostMessageCommand struct {
	Group   GroupID `validate:"required"`
	Actor   Actor   `validate:"required"`
	Content string  `validate:"required,max=4096"`
}

type UpdateMessageCommand struct {
	MessageID uuid.UUID `validate:"required"`
	Actor     Actor     `validate:"required"`
	Content   string    `validate:"required,max=4096"`
}

type DeleteMessageCommand struct {
	MessageID uuid.UUID `validate:"required"`
	Actor     Actor     `validate:"required"`
}

type GetMessagesCommand struct {
	Group  GroupID `validate:"required"`
	Cursor *string
}
