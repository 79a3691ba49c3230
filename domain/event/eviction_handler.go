package event

import (
	"log/slog"
	"sync"

	"chat-relay/domain"
)

// EvictionHandler keeps a per-group count of connections removed by the
// dispatcher after a delivery failure or timeout.
type EvictionHandler struct {
	mu      sync.Mutex
	log     *slog.Logger
	counter uint64
	hit     map[domain.GroupID]uint64
}

func NewEvictionHandler(log *slog.Logger) *EvictionHandler {
	return &EvictionHandler{
		log: log,
		hit: make(map[domain.GroupID]uint64),
	}
}

func (h *EvictionHandler) Handle(e TechnicalEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch e.Type {
	case ConnectionEvictedType:
		payload, ok := e.Payload.(ConnectionEvicted)
		if !ok {
			h.log.Error("invalid payload for eviction event")
			return
		}
		h.counter++
		h.hit[payload.Group]++
		h.log.Info("connection evicted",
			"group_id", payload.Group,
			"user_id", payload.UserID,
			"reason", payload.Reason,
			"total", h.counter)
	}
}

// Evictions returns the number of evictions observed for a group.
func (h *EvictionHandler) Evictions(group domain.GroupID) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hit[group]
}
