package sink

import (
	"context"
	"fmt"
	"log/slog"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
)

// SearchSink feeds the full-text index from the event stream. Indexing is
// eventually consistent by design: a failed index write is logged, never
// surfaced to the mutation's caller.
type SearchSink struct {
	repository contract.ISearchRepository
	log        *slog.Logger
}

func NewSearchSink(repository contract.ISearchRepository, log *slog.Logger) SearchSink {
	return SearchSink{repository: repository, log: log}
}

func (s SearchSink) Consume(_ context.Context, e event.BroadcastEvent) error {
	switch evt := e.(type) {
	case event.MessageCreated:
		return s.repository.Index(fromSnapshot(evt.Message))
	case event.MessageUpdated:
		return s.repository.Index(fromSnapshot(evt.Message))
	case event.MessageDeleted:
		// Deleted content must stop matching searches immediately.
		return s.repository.Remove(evt.MessageID)
	default:
		s.log.Debug(fmt.Sprintf("Not an indexable event : %v", evt.Kind()))
		return nil
	}
}

func fromSnapshot(snapshot domain.Snapshot) domain.Message {
	return domain.Message{
		ID:        snapshot.ID,
		Group:     snapshot.Group,
		SenderID:  snapshot.SenderID,
		Content:   snapshot.Content,
		CreatedAt: snapshot.CreatedAt,
		UpdatedAt: snapshot.UpdatedAt,
	}
}
