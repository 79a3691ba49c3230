package services

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/runtime"

	"github.com/google/uuid"
)

// IChatService is the surface offered to the transport layer. Each call
// returns success or a typed error kind; mapping to protocol status codes
// belongs to the transport.
type IChatService interface {
	Join(ctx context.Context, identity domain.Identity, group domain.GroupID, sink contract.EventSink) (domain.Session, error)
	Leave(conn domain.Connection)
	CreateMessage(session domain.Session, content string) (domain.Message, error)
	UpdateMessage(session domain.Session, messageID uuid.UUID, content string) (domain.Message, error)
	DeleteMessage(session domain.Session, messageID uuid.UUID) error
	GetMessages(group domain.GroupID, cursor *string) ([]domain.Message, *string, error)
	SearchMessages(ctx context.Context, group domain.GroupID, query string, page int) ([]domain.Snapshot, uint64, error)
}

type ChatService struct {
	log         *slog.Logger
	oracle      contract.IMembershipOracle
	registry    contract.IRegistry
	dispatcher  contract.IDispatcher
	coordinator *runtime.MessageLifecycleCoordinator
	search      contract.ISearchRepository
}

func NewChatService(log *slog.Logger, oracle contract.IMembershipOracle,
	registry contract.IRegistry, dispatcher contract.IDispatcher,
	coordinator *runtime.MessageLifecycleCoordinator,
	search contract.ISearchRepository) *ChatService {
	return &ChatService{
		log:         log,
		oracle:      oracle,
		registry:    registry,
		dispatcher:  dispatcher,
		coordinator: coordinator,
		search:      search,
	}
}

// Join authorizes the identity against the membership oracle, registers a
// fresh connection, and notifies the group (the joiner included) with the
// new member count.
func (s *ChatService) Join(ctx context.Context, identity domain.Identity,
	group domain.GroupID, sink contract.EventSink) (domain.Session, error) {
	grant, err := s.oracle.Authorize(ctx, identity, group)
	if err != nil {
		return domain.Session{}, err
	}

	conn := domain.Connection{ID: uuid.New(), UserID: identity.UserID, Group: group}
	count, err := s.registry.Join(conn, sink)
	if err != nil {
		return domain.Session{}, err
	}

	s.dispatcher.Send(group, event.MemberJoined{
		Group:   group,
		UserID:  identity.UserID,
		Members: count,
		At:      time.Now().UTC(),
	})

	s.log.Info("connection joined", "user_id", identity.UserID, "group_id", group, "members", count)
	return domain.Session{Connection: conn, TenantID: grant.TenantID, Elevated: grant.Elevated}, nil
}

// Leave removes the connection and notifies the remaining members, naming
// who left. Safe to call twice: the transport's read loop and an explicit
// client leave may both trigger it.
func (s *ChatService) Leave(conn domain.Connection) {
	count, removed := s.registry.Leave(conn.Group, conn.ID)
	if !removed {
		return
	}
	s.dispatcher.Send(conn.Group, event.MemberLeft{
		Group:   conn.Group,
		UserID:  conn.UserID,
		Members: count,
		At:      time.Now().UTC(),
	})
	s.log.Info("connection left", "user_id", conn.UserID, "group_id", conn.Group, "members", count)
}

func (s *ChatService) CreateMessage(session domain.Session, content string) (domain.Message, error) {
	return s.coordinator.CreateMessage(domain.PostMessageCommand{
		Group:   session.Connection.Group,
		Actor:   session.Actor(),
		Content: content,
	})
}

func (s *ChatService) UpdateMessage(session domain.Session, messageID uuid.UUID, content string) (domain.Message, error) {
	return s.coordinator.UpdateMessage(domain.UpdateMessageCommand{
		MessageID: messageID,
		Actor:     session.Actor(),
		Content:   content,
	})
}

func (s *ChatService) DeleteMessage(session domain.Session, messageID uuid.UUID) error {
	return s.coordinator.DeleteMessage(domain.DeleteMessageCommand{
		MessageID: messageID,
		Actor:     session.Actor(),
	})
}

func (s *ChatService) GetMessages(group domain.GroupID, cursor *string) ([]domain.Message, *string, error) {
	return s.coordinator.GetMessages(domain.GetMessagesCommand{Group: group, Cursor: cursor})
}

func (s *ChatService) SearchMessages(ctx context.Context, group domain.GroupID, query string, page int) ([]domain.Snapshot, uint64, error) {
	return s.search.Search(ctx, group, query, page)
}
