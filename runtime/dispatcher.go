package runtime

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
)

// delivery freezes the recipients of one event at the moment Send was
// invoked, so membership changes during queueing never alter who receives
// it.
type delivery struct {
	evt        event.BroadcastEvent
	recipients []contract.Member
	enqueuedAt time.Time
}

// BroadcastDispatcher delivers events to every connection of a group.
//
// Send snapshots the group membership and appends to a single ordered
// queue drained by the Run worker: events submitted in order are delivered
// to each member in that order (per-group FIFO). Cross-group ordering is
// not guaranteed and not meaningful.
//
// A delivery failure or timeout for one connection never blocks the
// others and never reaches the mutation's caller: the dead connection is
// evicted from the registry so the next broadcast does not retry it.
//
// BroadcastDispatcher is safe for concurrent use by multiple goroutines.
type BroadcastDispatcher struct {
	log             *slog.Logger
	registry        contract.IRegistry
	queue           chan delivery
	permanentSinks  []contract.EventSink
	deliveryTimeout time.Duration
	telemetry       chan event.TechnicalEvent
}

func NewBroadcastDispatcher(log *slog.Logger, registry contract.IRegistry,
	bufferSize int, deliveryTimeout time.Duration,
	telemetry chan event.TechnicalEvent) *BroadcastDispatcher {
	return &BroadcastDispatcher{
		log:             log,
		registry:        registry,
		queue:           make(chan delivery, bufferSize),
		deliveryTimeout: deliveryTimeout,
		telemetry:       telemetry,
	}
}

// Add registers permanent sinks consumed on every event regardless of
// group membership (search indexing, projections). Call before Run.
func (d *BroadcastDispatcher) Add(sinks ...contract.EventSink) *BroadcastDispatcher {
	d.permanentSinks = append(d.permanentSinks, sinks...)
	return d
}

// Send enqueues one event for every current member of the group. It only
// panics on a misuse that can never occur at runtime: per-connection
// delivery failures are handled internally.
func (d *BroadcastDispatcher) Send(group domain.GroupID, e event.BroadcastEvent) {
	if group == "" || e == nil {
		panic("dispatcher: Send requires a group and an event")
	}

	d.reportCapacity()
	d.queue <- delivery{
		evt:        e,
		recipients: d.registry.MembersOf(group),
		enqueuedAt: time.Now().UTC(),
	}
}

// Run drains the queue until the context is canceled. Single consumer:
// this is what turns submission order into delivery order.
func (d *BroadcastDispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("Context done, stopping dispatcher")
			return nil
		case job := <-d.queue:
			d.fanout(ctx, job)
		}
	}
}

// fanout pushes one event to its frozen recipients, then to the permanent
// sinks. Every Consume call is bounded by the delivery timeout.
func (d *BroadcastDispatcher) fanout(ctx context.Context, job delivery) {
	for _, member := range job.recipients {
		if err := d.consume(ctx, member.Sink, job.evt); err != nil {
			d.log.Warn("delivery failed, evicting connection",
				"group_id", member.Conn.Group,
				"user_id", member.Conn.UserID,
				"error", err)
			d.evict(member.Conn, err)
		}
	}

	for _, sink := range d.permanentSinks {
		if err := d.consume(ctx, sink, job.evt); err != nil {
			d.log.Warn("permanent sink failed", "kind", job.evt.Kind(), "error", err)
		}
	}

	d.report(event.TechnicalEvent{
		Type:      event.DeliveryLatencyType,
		CreatedAt: time.Now().UTC(),
		Payload: event.DeliveryLatency{
			Group:      job.evt.GroupID(),
			Kind:       job.evt.Kind(),
			Recipients: len(job.recipients),
			LeadTime:   time.Since(job.enqueuedAt),
		},
	})
}

func (d *BroadcastDispatcher) consume(ctx context.Context, sink contract.EventSink, e event.BroadcastEvent) error {
	deliveryCtx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
	defer cancel()
	return sink.Consume(deliveryCtx, e)
}

// evict removes a dead connection so later broadcasts never see it, and
// notifies the remaining members. The left event goes through Send from a
// separate goroutine: enqueueing from the fanout loop itself could
// deadlock on a full queue.
func (d *BroadcastDispatcher) evict(conn domain.Connection, cause error) {
	count, removed := d.registry.Leave(conn.Group, conn.ID)
	if !removed {
		return
	}

	d.report(event.TechnicalEvent{
		Type:      event.ConnectionEvictedType,
		CreatedAt: time.Now().UTC(),
		Payload: event.ConnectionEvicted{
			Group:  conn.Group,
			UserID: conn.UserID,
			Reason: cause.Error(),
		},
	})

	left := event.MemberLeft{
		Group:   conn.Group,
		UserID:  conn.UserID,
		Members: count,
		At:      time.Now().UTC(),
	}
	go d.Send(conn.Group, left)
}

func (d *BroadcastDispatcher) reportCapacity() {
	d.report(event.TechnicalEvent{
		Type:      event.QueueCapacityType,
		CreatedAt: time.Now().UTC(),
		Payload: event.QueueCapacity{
			ChannelName: "dispatch_queue",
			Capacity:    cap(d.queue),
			Length:      len(d.queue),
		},
	})
}

func (d *BroadcastDispatcher) report(e event.TechnicalEvent) {
	if d.telemetry == nil {
		return
	}
	select {
	case d.telemetry <- e:
	default:
		d.log.Debug("Telemetry event lost")
	}
}
