package event

import (
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func Test_EvictionHandler_Counts_Per_Group(t *testing.T) {
	req := require.New(t)
	handler := NewEvictionHandler(logs.GetLoggerFromLevel(slog.LevelDebug))

	evicted := func(group, user string) TechnicalEvent {
		return TechnicalEvent{
			Type:      ConnectionEvictedType,
			CreatedAt: time.Now().UTC(),
			Payload:   ConnectionEvicted{Group: domain.GroupID(group), UserID: user, Reason: "timeout"},
		}
	}

	handler.Handle(evicted("general", "alice"))
	handler.Handle(evicted("general", "bob"))
	handler.Handle(evicted("random", "clara"))

	req.Equal(uint64(2), handler.Evictions("general"))
	req.Equal(uint64(1), handler.Evictions("random"))
	req.Equal(uint64(0), handler.Evictions("quiet"))
}

func Test_EvictionHandler_Ignores_Other_Types(t *testing.T) {
	req := require.New(t)
	handler := NewEvictionHandler(logs.GetLoggerFromLevel(slog.LevelDebug))

	handler.Handle(TechnicalEvent{
		Type:      QueueCapacityType,
		CreatedAt: time.Now().UTC(),
		Payload:   QueueCapacity{ChannelName: "dispatch_queue", Capacity: 10, Length: 1},
	})

	req.Equal(uint64(0), handler.Evictions("general"))
}
