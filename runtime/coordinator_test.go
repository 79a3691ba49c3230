package runtime

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/moderation"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func Test_Coordinator_Broadcasts_After_Successful_Store(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepository := mocks.NewMockIMessageRepository(ctrl)
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)
	coordinator := NewMessageLifecycleCoordinator(log, mockRepository, mockDispatcher, nil)

	// Given the store accepts the write
	mockRepository.EXPECT().StoreMessage(gomock.Any()).Return(nil).Times(1)

	// Then exactly one broadcast follows, carrying the created kind
	mockDispatcher.EXPECT().Send(domain.GroupID("general"), gomock.Any()).Do(
		func(group domain.GroupID, e event.BroadcastEvent) {
			req.Equal(event.KindMessageCreated, e.Kind())
		}).Times(1)

	// When a message is posted
	message, err := coordinator.CreateMessage(domain.PostMessageCommand{
		Group:   "general",
		Actor:   domain.Actor{UserID: "alice", TenantID: "acme"},
		Content: "hello world",
	})
	req.NoError(err)
	req.Equal("hello world", message.Content)
	req.Equal("alice", message.SenderID)
	req.NotEqual(uuid.Nil, message.ID)
}

func Test_Coordinator_Never_Broadcasts_A_Failed_Write(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepository := mocks.NewMockIMessageRepository(ctrl)
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)
	coordinator := NewMessageLifecycleCoordinator(log, mockRepository, mockDispatcher, nil)

	// Given the store rejects the write; no Send expectation exists, so any
	// broadcast fails the test
	mockRepository.EXPECT().StoreMessage(gomock.Any()).
		Return(fmt.Errorf("disk full")).Times(1)

	// When a message is posted
	_, err := coordinator.CreateMessage(domain.PostMessageCommand{
		Group:   "general",
		Actor:   domain.Actor{UserID: "alice", TenantID: "acme"},
		Content: "hello world",
	})

	// Then the caller observes a persistence failure
	req.ErrorIs(err, errors.ErrPersistence)
}

func Test_Coordinator_Rejects_Empty_Content(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	coordinator := NewMessageLifecycleCoordinator(log,
		mocks.NewMockIMessageRepository(ctrl), mocks.NewMockIDispatcher(ctrl), nil)

	_, err := coordinator.CreateMessage(domain.PostMessageCommand{
		Group: "general",
		Actor: domain.Actor{UserID: "alice", TenantID: "acme"},
	})
	req.ErrorIs(err, errors.ErrInvalidCommand)
}

func Test_Coordinator_Update_Requires_Ownership(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepository := mocks.NewMockIMessageRepository(ctrl)
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)
	coordinator := NewMessageLifecycleCoordinator(log, mockRepository, mockDispatcher, nil)

	// Given a message owned by alice
	messageID := uuid.New()
	mockRepository.EXPECT().FindMessage(messageID).Return(domain.Message{
		ID: messageID, Group: "general", SenderID: "alice",
	}, nil).Times(1)

	// When bob, without the moderation capability, tries to update it
	_, err := coordinator.UpdateMessage(domain.UpdateMessageCommand{
		MessageID: messageID,
		Actor:     domain.Actor{UserID: "bob", TenantID: "acme"},
		Content:   "hijacked",
	})

	// Then the mutation is refused before any write or broadcast
	req.ErrorIs(err, errors.ErrForbidden)
}

func Test_Coordinator_Moderator_May_Delete_Any_Message(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepository := mocks.NewMockIMessageRepository(ctrl)
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)
	coordinator := NewMessageLifecycleCoordinator(log, mockRepository, mockDispatcher, nil)

	messageID := uuid.New()
	stored := domain.Message{ID: messageID, Group: "general", SenderID: "alice", Content: "secret"}
	mockRepository.EXPECT().FindMessage(messageID).Return(stored, nil).Times(1)
	mockRepository.EXPECT().SoftDeleteMessage(messageID, gomock.Any()).
		Return(stored, nil).Times(1)

	// Then the deletion broadcast carries the identifier, never the content
	mockDispatcher.EXPECT().Send(domain.GroupID("general"), gomock.Any()).Do(
		func(group domain.GroupID, e event.BroadcastEvent) {
			deleted, ok := e.(event.MessageDeleted)
			req.True(ok)
			req.Equal(messageID, deleted.MessageID)
		}).Times(1)

	// When bob deletes alice's message with the moderation capability
	err := coordinator.DeleteMessage(domain.DeleteMessageCommand{
		MessageID: messageID,
		Actor:     domain.Actor{UserID: "bob", TenantID: "acme", Elevated: true},
	})
	req.NoError(err)
}

func Test_Coordinator_Second_Delete_Reports_NotFound(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepository := mocks.NewMockIMessageRepository(ctrl)
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)
	coordinator := NewMessageLifecycleCoordinator(log, mockRepository, mockDispatcher, nil)

	// Given the message is already soft-deleted; no broadcast may happen
	messageID := uuid.New()
	mockRepository.EXPECT().FindMessage(messageID).
		Return(domain.Message{}, errors.ErrNotFound).Times(1)

	err := coordinator.DeleteMessage(domain.DeleteMessageCommand{
		MessageID: messageID,
		Actor:     domain.Actor{UserID: "alice", TenantID: "acme"},
	})
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Coordinator_Stores_Censored_Content(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	moderator, err := moderation.NewModerator([]string{"spamlink"}, '*', log)
	req.NoError(err)

	mockRepository := mocks.NewMockIMessageRepository(ctrl)
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)
	coordinator := NewMessageLifecycleCoordinator(log, mockRepository, mockDispatcher, &moderator)

	// Given the store captures what is actually persisted
	var persisted domain.Message
	mockRepository.EXPECT().StoreMessage(gomock.Any()).Do(
		func(message domain.Message) {
			persisted = message
		}).Return(nil).Times(1)
	mockDispatcher.EXPECT().Send(gomock.Any(), gomock.Any()).Do(
		func(group domain.GroupID, e event.BroadcastEvent) {
			created, ok := e.(event.MessageCreated)
			req.True(ok)
			// The broadcast shows the moderated content too
			req.Equal(persisted.Content, created.Message.Content)
		}).Times(1)

	// When the posted content contains a forbidden word
	message, err := coordinator.CreateMessage(domain.PostMessageCommand{
		Group:   "general",
		Actor:   domain.Actor{UserID: "alice", TenantID: "acme"},
		Content: "click this spamlink now",
	})
	req.NoError(err)

	// Then the raw word never survives
	req.Equal("click this ******** now", message.Content)
	req.Equal(message.Content, persisted.Content)
}

func Test_Coordinator_Update_Broadcasts_New_Content(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepository := mocks.NewMockIMessageRepository(ctrl)
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)
	coordinator := NewMessageLifecycleCoordinator(log, mockRepository, mockDispatcher, nil)

	messageID := uuid.New()
	now := time.Now().UTC()
	mockRepository.EXPECT().FindMessage(messageID).Return(domain.Message{
		ID: messageID, Group: "general", SenderID: "alice", Content: "before", CreatedAt: now,
	}, nil).Times(1)
	mockRepository.EXPECT().UpdateMessage(messageID, "after", gomock.Any()).Return(domain.Message{
		ID: messageID, Group: "general", SenderID: "alice", Content: "after", CreatedAt: now,
	}, nil).Times(1)

	mockDispatcher.EXPECT().Send(domain.GroupID("general"), gomock.Any()).Do(
		func(group domain.GroupID, e event.BroadcastEvent) {
			updated, ok := e.(event.MessageUpdated)
			req.True(ok)
			req.Equal("after", updated.Message.Content)
		}).Times(1)

	updated, err := coordinator.UpdateMessage(domain.UpdateMessageCommand{
		MessageID: messageID,
		Actor:     domain.Actor{UserID: "alice", TenantID: "acme"},
		Content:   "after",
	})
	req.NoError(err)
	req.Equal("after", updated.Content)
}
