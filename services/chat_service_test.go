package services

import (
	"context"
	"log/slog"
	"testing"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/runtime"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func Test_ChatService_Join_Authorizes_Then_Notifies(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOracle := mocks.NewMockIMembershipOracle(ctrl)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)
	coordinator := runtime.NewMessageLifecycleCoordinator(log,
		mocks.NewMockIMessageRepository(ctrl), mockDispatcher, nil)
	service := NewChatService(log, mockOracle, mockRegistry, mockDispatcher,
		coordinator, mocks.NewMockISearchRepository(ctrl))

	identity := domain.Identity{
		UserID: "alice", TenantID: "acme",
		Groups: []string{"general"}, Moderator: []string{"general"},
	}
	sink := mocks.NewMockEventSink(ctrl)

	// Given the oracle grants the join with the moderation capability
	mockOracle.EXPECT().Authorize(gomock.Any(), identity, domain.GroupID("general")).
		Return(domain.Grant{TenantID: "acme", Elevated: true}, nil).Times(1)
	mockRegistry.EXPECT().Join(gomock.Any(), sink).Return(3, nil).Times(1)

	// Then the whole group, joiner included, learns the new member count
	mockDispatcher.EXPECT().Send(domain.GroupID("general"), gomock.Any()).Do(
		func(group domain.GroupID, e event.BroadcastEvent) {
			joined, ok := e.(event.MemberJoined)
			req.True(ok)
			req.Equal("alice", joined.UserID)
			req.Equal(3, joined.Members)
		}).Times(1)

	// When alice joins
	session, err := service.Join(context.Background(), identity, "general", sink)
	req.NoError(err)
	req.Equal("alice", session.Connection.UserID)
	req.Equal("acme", session.TenantID)
	req.True(session.Elevated)
	req.NotEqual(uuid.Nil, session.Connection.ID)
}

func Test_ChatService_Join_Rejected_By_Oracle(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOracle := mocks.NewMockIMembershipOracle(ctrl)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)
	coordinator := runtime.NewMessageLifecycleCoordinator(log,
		mocks.NewMockIMessageRepository(ctrl), mockDispatcher, nil)
	service := NewChatService(log, mockOracle, mockRegistry, mockDispatcher,
		coordinator, mocks.NewMockISearchRepository(ctrl))

	// Given the identity's claims do not cover the group; the registry and
	// the dispatcher must never be touched
	mockOracle.EXPECT().Authorize(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(domain.Grant{}, errors.ErrUnauthorized).Times(1)

	_, err := service.Join(context.Background(),
		domain.Identity{UserID: "mallory", Groups: []string{"other"}},
		"general", mocks.NewMockEventSink(ctrl))
	req.ErrorIs(err, errors.ErrUnauthorized)
}

func Test_ChatService_Leave_Notifies_Remaining_Members(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOracle := mocks.NewMockIMembershipOracle(ctrl)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)
	coordinator := runtime.NewMessageLifecycleCoordinator(log,
		mocks.NewMockIMessageRepository(ctrl), mockDispatcher, nil)
	service := NewChatService(log, mockOracle, mockRegistry, mockDispatcher,
		coordinator, mocks.NewMockISearchRepository(ctrl))

	conn := domain.Connection{ID: uuid.New(), UserID: "bob", Group: "general"}
	mockRegistry.EXPECT().Leave(domain.GroupID("general"), conn.ID).Return(2, true).Times(1)

	// The departure names who left, like the join event does
	mockDispatcher.EXPECT().Send(domain.GroupID("general"), gomock.Any()).Do(
		func(group domain.GroupID, e event.BroadcastEvent) {
			left, ok := e.(event.MemberLeft)
			req.True(ok)
			req.Equal("bob", left.UserID)
			req.Equal(2, left.Members)
		}).Times(1)

	service.Leave(conn)
}

func Test_ChatService_Leave_Twice_Notifies_Once(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOracle := mocks.NewMockIMembershipOracle(ctrl)
	mockRegistry := mocks.NewMockIRegistry(ctrl)
	mockDispatcher := mocks.NewMockIDispatcher(ctrl)
	coordinator := runtime.NewMessageLifecycleCoordinator(log,
		mocks.NewMockIMessageRepository(ctrl), mockDispatcher, nil)
	service := NewChatService(log, mockOracle, mockRegistry, mockDispatcher,
		coordinator, mocks.NewMockISearchRepository(ctrl))

	conn := domain.Connection{ID: uuid.New(), UserID: "bob", Group: "general"}
	gomock.InOrder(
		mockRegistry.EXPECT().Leave(domain.GroupID("general"), conn.ID).Return(1, true),
		mockRegistry.EXPECT().Leave(domain.GroupID("general"), conn.ID).Return(0, false),
	)
	// Only the first leave produces a broadcast
	mockDispatcher.EXPECT().Send(domain.GroupID("general"), gomock.Any()).Times(1)

	service.Leave(conn)
	service.Leave(conn)
}
