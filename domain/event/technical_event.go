package event

import (
	"time"

	"chat-relay/domain"
)

// Technical events feed the telemetry channel. They are best-effort: the
// dispatcher drops them when the channel is full rather than slowing
// delivery down.

type Type string

const (
	DeliveryLatencyType     Type = "DELIVERY_LATENCY"
	QueueCapacityType       Type = "QUEUE_CAPACITY"
	ConnectionEvictedType   Type = "CONNECTION_EVICTED"
	RestartedAfterPanicType Type = "WORKER_RESTARTED_AFTER_PANIC"
)

type TechnicalEvent struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

// DeliveryLatency measures the time between Send and the last recipient
// delivery for one event.
type DeliveryLatency struct {
	Group      domain.GroupID
	Kind       Kind
	Recipients int
	LeadTime   time.Duration
}

type QueueCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
}

type ConnectionEvicted struct {
	Group  domain.GroupID
	UserID string
	Reason string
}

type WorkerRestartedAfterPanic struct {
	WorkerName string
}
