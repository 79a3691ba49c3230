package runtime

import (
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"

	"github.com/abadojack/whatlanggo"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// MessageLifecycleCoordinator sequences "durable write, then notify" for
// every mutating chat operation. Each operation is a short-lived
// transaction: the broadcast is emitted exactly once, only after the store
// confirmed the write, and never when it failed. No registry lock is held
// at any point: persistence and broadcast are sequential steps, not nested
// critical sections.
type MessageLifecycleCoordinator struct {
	log        *slog.Logger
	repository contract.IMessageRepository
	dispatcher contract.IDispatcher
	moderator  *moderation.Moderator
	validate   *validator.Validate
}

func NewMessageLifecycleCoordinator(log *slog.Logger,
	repository contract.IMessageRepository, dispatcher contract.IDispatcher,
	moderator *moderation.Moderator) *MessageLifecycleCoordinator {
	return &MessageLifecycleCoordinator{
		log:        log,
		repository: repository,
		dispatcher: dispatcher,
		moderator:  moderator,
		validate:   validator.New(),
	}
}

// CreateMessage persists a new message and broadcasts message-created to
// the group. The stored content is the moderated one: clients never see
// the raw text.
func (c *MessageLifecycleCoordinator) CreateMessage(cmd domain.PostMessageCommand) (domain.Message, error) {
	if err := c.validate.Struct(cmd); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrInvalidCommand, err)
	}

	content := c.censor(cmd.Content)
	now := time.Now().UTC()
	message := domain.Message{
		ID:        uuid.New(),
		Group:     cmd.Group,
		SenderID:  cmd.Actor.UserID,
		TenantID:  cmd.Actor.TenantID,
		Content:   content,
		Lang:      whatlanggo.Detect(content).Lang.Iso6391(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.repository.StoreMessage(message); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	c.dispatcher.Send(message.Group, event.MessageCreated{Message: message.Snapshot(), At: now})
	return message, nil
}

// UpdateMessage rewrites the content of an existing, non-deleted message.
// Only the original sender, or an identity holding the elevated capability
// for the group, may update it. The ownership check happens before any
// persistence attempt.
func (c *MessageLifecycleCoordinator) UpdateMessage(cmd domain.UpdateMessageCommand) (domain.Message, error) {
	if err := c.validate.Struct(cmd); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrInvalidCommand, err)
	}

	existing, err := c.find(cmd.MessageID)
	if err != nil {
		return domain.Message{}, err
	}
	if err := c.authorizeMutation(existing, cmd.Actor); err != nil {
		return domain.Message{}, err
	}

	now := time.Now().UTC()
	updated, err := c.repository.UpdateMessage(cmd.MessageID, c.censor(cmd.Content), now)
	if err != nil {
		// The message may have been deleted between the ownership check and
		// the write; the store re-checks inside its transaction.
		if goerrors.Is(err, errors.ErrNotFound) {
			return domain.Message{}, err
		}
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	c.dispatcher.Send(updated.Group, event.MessageUpdated{Message: updated.Snapshot(), At: now})
	return updated, nil
}

// DeleteMessage flips the soft-delete flag and broadcasts message-deleted
// carrying only the identifier. Same capability rule as UpdateMessage; a
// second delete of the same message reports NotFound and produces no
// second broadcast.
func (c *MessageLifecycleCoordinator) DeleteMessage(cmd domain.DeleteMessageCommand) error {
	if err := c.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidCommand, err)
	}

	existing, err := c.find(cmd.MessageID)
	if err != nil {
		return err
	}
	if err := c.authorizeMutation(existing, cmd.Actor); err != nil {
		return err
	}

	now := time.Now().UTC()
	deleted, err := c.repository.SoftDeleteMessage(cmd.MessageID, now)
	if err != nil {
		if goerrors.Is(err, errors.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}

	c.dispatcher.Send(deleted.Group, event.MessageDeleted{
		Group:     deleted.Group,
		MessageID: deleted.ID,
		At:        now,
	})
	return nil
}

// GetMessages reads a page of the group's history, newest first.
func (c *MessageLifecycleCoordinator) GetMessages(cmd domain.GetMessagesCommand) ([]domain.Message, *string, error) {
	if err := c.validate.Struct(cmd); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrInvalidCommand, err)
	}
	return c.repository.GetMessages(cmd.Group, cmd.Cursor)
}

func (c *MessageLifecycleCoordinator) find(id uuid.UUID) (domain.Message, error) {
	existing, err := c.repository.FindMessage(id)
	if err != nil {
		if goerrors.Is(err, errors.ErrNotFound) {
			return domain.Message{}, err
		}
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return existing, nil
}

// authorizeMutation enforces ownership: the sender may always act on its
// own message, a group moderator may act on anyone's.
func (c *MessageLifecycleCoordinator) authorizeMutation(message domain.Message, actor domain.Actor) error {
	if message.SenderID == actor.UserID || actor.Elevated {
		return nil
	}
	c.log.Warn("mutation rejected",
		"message_id", message.ID,
		"owner", message.SenderID,
		"actor", actor.UserID)
	return errors.ErrForbidden
}

func (c *MessageLifecycleCoordinator) censor(content string) string {
	if c.moderator == nil {
		return content
	}
	sanitized, hits := c.moderator.Censor(content)
	if len(hits) > 0 {
		// Normalized words only: the raw content never reaches the logs.
		c.log.Info("message content censored", "words", hits)
	}
	return sanitized
}
