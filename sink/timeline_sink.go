package sink

import (
	"context"
	"sync"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// Timeline keeps the most recent message snapshots per group, a cheap
// in-memory projection for debugging and admin views. It is not a cache of
// record: the message store remains the durable source of truth.
type Timeline struct {
	mu    sync.Mutex
	depth int
	lines map[domain.GroupID][]domain.Snapshot
}

func NewTimeline(depth int) *Timeline {
	return &Timeline{
		depth: depth,
		lines: make(map[domain.GroupID][]domain.Snapshot),
	}
}

func (t *Timeline) Consume(_ context.Context, e event.BroadcastEvent) error {
	evt, ok := e.(event.MessageCreated)
	if !ok {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	line := append(t.lines[evt.Message.Group], evt.Message)
	if len(line) > t.depth {
		line = line[len(line)-t.depth:]
	}
	t.lines[evt.Message.Group] = line
	return nil
}

// Recent returns a copy of the group's tail, oldest first.
func (t *Timeline) Recent(group domain.GroupID) []domain.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	line := t.lines[group]
	out := make([]domain.Snapshot, len(line))
	copy(out, line)
	return out
}
