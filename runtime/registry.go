// Package runtime owns connection tracking, event delivery, and the
// message lifecycle. It orchestrates the system without containing
// business rules beyond ownership of mutations.
package runtime

import (
	"hash/fnv"
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/google/uuid"
)

const shardCount = 16

// shard guards a subset of the group→connections map so unrelated groups
// never contend on the same lock.
type shard struct {
	mu     sync.RWMutex
	groups map[domain.GroupID]map[uuid.UUID]contract.Member
}

// ConnectionRegistry is the single source of truth for which connections
// are currently listening to which group. Purely in-memory: a process
// restart drops all live connections by definition.
type ConnectionRegistry struct {
	shards [shardCount]*shard

	// mu guards conns, the connection→group map enforcing the invariant
	// that a connection is registered under at most one group. A join
	// reserves the connection here before touching its group shard, so the
	// invariant holds across shards.
	mu    sync.Mutex
	conns map[uuid.UUID]domain.GroupID
}

func NewConnectionRegistry() *ConnectionRegistry {
	r := &ConnectionRegistry{conns: make(map[uuid.UUID]domain.GroupID)}
	for i := range r.shards {
		r.shards[i] = &shard{groups: make(map[domain.GroupID]map[uuid.UUID]contract.Member)}
	}
	return r
}

func (r *ConnectionRegistry) shardFor(group domain.GroupID) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(group))
	return r.shards[h.Sum32()%shardCount]
}

// Join registers the connection under its group. The caller has already
// confirmed authorization via the membership oracle. A connection already
// registered anywhere is rejected: switching groups means a new connection.
// Returns the new total member count for the group.
func (r *ConnectionRegistry) Join(conn domain.Connection, sink contract.EventSink) (int, error) {
	r.mu.Lock()
	if _, ok := r.conns[conn.ID]; ok {
		r.mu.Unlock()
		return 0, errors.ErrAlreadyJoined
	}
	r.conns[conn.ID] = conn.Group
	r.mu.Unlock()

	s := r.shardFor(conn.Group)
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.groups[conn.Group]
	if !ok {
		members = make(map[uuid.UUID]contract.Member)
		s.groups[conn.Group] = members
	}
	members[conn.ID] = contract.Member{Conn: conn, Sink: sink}
	return len(members), nil
}

// Leave removes the connection from the group's set. Safe to call multiple
// times: the second call is a no-op reporting removed=false with the last
// known count (zero once the group is gone). Empty groups are removed
// entirely so the map doesn't leak over time.
func (r *ConnectionRegistry) Leave(group domain.GroupID, connID uuid.UUID) (int, bool) {
	s := r.shardFor(group)
	s.mu.Lock()
	members, ok := s.groups[group]
	if !ok {
		s.mu.Unlock()
		return 0, false
	}
	if _, ok := members[connID]; !ok {
		count := len(members)
		s.mu.Unlock()
		return count, false
	}
	delete(members, connID)
	count := len(members)
	if count == 0 {
		delete(s.groups, group)
	}
	s.mu.Unlock()

	r.mu.Lock()
	delete(r.conns, connID)
	r.mu.Unlock()
	return count, true
}

// MembersOf returns a point-in-time copy of the group's membership. The
// caller may iterate it while joins and leaves proceed concurrently.
func (r *ConnectionRegistry) MembersOf(group domain.GroupID) []contract.Member {
	s := r.shardFor(group)
	s.mu.RLock()
	defer s.mu.RUnlock()

	members, ok := s.groups[group]
	if !ok {
		return nil
	}
	snapshot := make([]contract.Member, 0, len(members))
	for _, m := range members {
		snapshot = append(snapshot, m)
	}
	return snapshot
}

func (r *ConnectionRegistry) Count(group domain.GroupID) int {
	s := r.shardFor(group)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups[group])
}

// Groups lists every group with at least one live connection.
func (r *ConnectionRegistry) Groups() []domain.GroupID {
	var groups []domain.GroupID
	for _, s := range r.shards {
		s.mu.RLock()
		for g := range s.groups {
			groups = append(groups, g)
		}
		s.mu.RUnlock()
	}
	return groups
}
