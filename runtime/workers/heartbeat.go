package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"chat-relay/contract"
	"chat-relay/domain/event"

	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker broadcasts a liveness-ping to every active group on a
// fixed interval and logs the process's own health metrics alongside it.
// Pings flow through the dispatcher like any other event, so a dead
// connection gets evicted by the next ping even if the group is otherwise
// silent.
type HeartbeatWorker struct {
	log        *slog.Logger
	registry   contract.IRegistry
	dispatcher contract.IDispatcher
	interval   time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, registry contract.IRegistry,
	dispatcher contract.IDispatcher, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{
		log:        log,
		registry:   registry,
		dispatcher: dispatcher,
		interval:   interval,
	}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := time.Now().UTC()
			groups := w.registry.Groups()
			for _, group := range groups {
				w.dispatcher.Send(group, event.LivenessPing{Group: group, At: now})
			}

			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Debug("liveness ping sent",
				"groups", len(groups),
				"cpu_percent", cpu,
				"ram_bytes", rss)
		}
	}
}

// selfStats retrieves memory and CPU usage for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
