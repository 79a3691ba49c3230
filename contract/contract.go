//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"

	"github.com/google/uuid"
)

// EventSink is the delivery end of one live connection (or of a permanent
// observer such as the search indexer). Consume must respect the context
// deadline: the dispatcher bounds every delivery so one slow consumer
// cannot stall a group.
type EventSink interface {
	Consume(ctx context.Context, e event.BroadcastEvent) error
}

// Member pairs a registered connection with its sink inside a membership
// snapshot.
type Member struct {
	Conn domain.Connection
	Sink EventSink
}

// IRegistry is the single source of truth for which connections are
// currently listening to which group.
type IRegistry interface {
	// Join registers the connection under its group and returns the new
	// member count. A connection already registered anywhere is rejected.
	Join(conn domain.Connection, sink EventSink) (int, error)
	// Leave removes the connection. Idempotent: the second call is a no-op
	// reporting removed=false. Returns the remaining member count.
	Leave(group domain.GroupID, connID uuid.UUID) (int, bool)
	// MembersOf returns a point-in-time snapshot safe against concurrent
	// join/leave while the caller iterates.
	MembersOf(group domain.GroupID) []Member
	Count(group domain.GroupID) int
	Groups() []domain.GroupID
}

// IDispatcher delivers one event to every member of a group's snapshot.
// Per-group delivery order follows the order of Send calls.
type IDispatcher interface {
	Send(group domain.GroupID, e event.BroadcastEvent)
}

// IMessageRepository is the durable document store the core consumes. All
// mutators fail with ErrNotFound when the target is absent or soft-deleted,
// and never partially apply.
type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	UpdateMessage(id uuid.UUID, content string, at time.Time) (domain.Message, error)
	SoftDeleteMessage(id uuid.UUID, at time.Time) (domain.Message, error)
	FindMessage(id uuid.UUID) (domain.Message, error)
	GetMessages(group domain.GroupID, cursor *string) ([]domain.Message, *string, error)
}

// ISearchRepository indexes message content for full-text search. Indexing
// is eventually consistent: it runs behind the dispatcher, not inside the
// mutation path.
type ISearchRepository interface {
	Index(message domain.Message) error
	Remove(id uuid.UUID) error
	Search(ctx context.Context, group domain.GroupID, query string, page int) ([]domain.Snapshot, uint64, error)
}

// IMembershipOracle answers "may this identity join this group" once at
// connection-join time. The result is trusted for the connection lifetime.
type IMembershipOracle interface {
	Authorize(ctx context.Context, identity domain.Identity, group domain.GroupID) (domain.Grant, error)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
