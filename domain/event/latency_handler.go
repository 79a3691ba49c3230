package event

import (
	"log/slog"
	"time"
)

type LatencyHandler struct {
	log              *slog.Logger
	latencyThreshold time.Duration
}

func NewLatencyHandler(log *slog.Logger, latencyThreshold time.Duration) *LatencyHandler {
	return &LatencyHandler{log: log, latencyThreshold: latencyThreshold}
}

func (h *LatencyHandler) Handle(e TechnicalEvent) {
	if payload, ok := e.Payload.(DeliveryLatency); ok {
		h.log.Debug("telemetry: delivery latency",
			"group_id", payload.Group,
			"kind", payload.Kind,
			"recipients", payload.Recipients,
			"lead_time_ms", payload.LeadTime.Milliseconds(),
		)

		if payload.LeadTime > h.latencyThreshold {
			h.log.Warn("high delivery latency detected",
				"group_id", payload.Group, "lead_time", payload.LeadTime)
		}
	}
}
