package workers

import (
	"context"
	"log/slog"

	"chat-relay/domain/event"
)

// TelemetryWorker drains the best-effort telemetry channel and runs every
// registered handler on each event.
type TelemetryWorker struct {
	log           *slog.Logger
	telemetryChan chan event.TechnicalEvent
	handlers      []event.Handler
}

func NewTelemetryWorker(log *slog.Logger,
	telemetryChan chan event.TechnicalEvent,
	handlers []event.Handler) *TelemetryWorker {
	return &TelemetryWorker{
		log:           log,
		telemetryChan: telemetryChan,
		handlers:      handlers,
	}
}

func (w TelemetryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry worker")
			return nil
		case evt := <-w.telemetryChan:
			w.handle(evt)
		}
	}
}

func (w TelemetryWorker) handle(e event.TechnicalEvent) {
	for _, h := range w.handlers {
		h.Handle(e)
	}
}
