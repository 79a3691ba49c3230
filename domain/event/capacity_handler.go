package event

import (
	"fmt"
	"log/slog"
)

// QueueCapacityHandler handles events reporting the capacity of the
// dispatch queue. Useful for observability, detecting backpressure, and
// avoiding dropped deliveries.
type QueueCapacityHandler struct {
	log                  *slog.Logger
	lowCapacityThreshold int
}

func NewQueueCapacityHandler(log *slog.Logger, lowCapacityThreshold int) *QueueCapacityHandler {
	return &QueueCapacityHandler{log: log, lowCapacityThreshold: lowCapacityThreshold}
}

func (h QueueCapacityHandler) Handle(e TechnicalEvent) {
	if e.Type != QueueCapacityType {
		return
	}
	payload, ok := e.Payload.(QueueCapacity)
	if !ok {
		return
	}
	h.log.Debug(fmt.Sprintf("Channel %s usage: %d / %d", payload.ChannelName, payload.Length, payload.Capacity))
	if payload.Capacity <= 0 {
		// In case of unbuffered channel
		return
	}
	capacityLeft := payload.Capacity - payload.Length
	if capacityLeft > 0 && capacityLeft <= h.lowCapacityThreshold {
		h.log.Warn(fmt.Sprintf("dispatch queue capacity left : %d", capacityLeft))
	}
}
