package storage

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/domain"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

// SearchRepository indexes message content in Bluge for full-text lookup.
// It is fed asynchronously by the search sink: the index lags the store by
// design and never sits on the mutation path.
type SearchRepository struct {
	writer   *bluge.Writer
	log      *slog.Logger
	pageSize int
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger, pageSize int) *SearchRepository {
	return &SearchRepository{writer: writer, log: log, pageSize: pageSize}
}

// Index upserts one message document. Update and create share the same
// path: Bluge replaces by document id.
func (r *SearchRepository) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("group", string(message.Group)).StoreValue()).
		AddField(bluge.NewKeywordField("sender", message.SenderID).StoreValue()).
		AddField(bluge.NewKeywordField("created_at", message.CreatedAt.Format(time.RFC3339Nano)).StoreValue()).
		AddField(bluge.NewKeywordField("updated_at", message.UpdatedAt.Format(time.RFC3339Nano)).StoreValue())
	return r.writer.Update(doc.ID(), doc)
}

// Remove drops a message from the index so deleted content stops matching
// searches immediately.
func (r *SearchRepository) Remove(id uuid.UUID) error {
	return r.writer.Delete(bluge.Identifier(id.String()))
}

// Search runs a paginated match query scoped to one group and returns the
// matching snapshots plus the total hit count.
func (r *SearchRepository) Search(ctx context.Context, group domain.GroupID, query string, page int) ([]domain.Snapshot, uint64, error) {
	reader, err := r.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			r.log.Warn("failed to close index reader", "error", err)
		}
	}()

	boolQuery := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("content")).
		AddMust(bluge.NewTermQuery(string(group)).SetField("group"))

	request := bluge.NewTopNSearch(r.pageSize, boolQuery).
		SetFrom(page * r.pageSize).
		WithStandardAggregations()

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var snapshots []domain.Snapshot
	match, err := iterator.Next()
	for err == nil && match != nil {
		snapshot := domain.Snapshot{Group: group}
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					snapshot.ID = id
				}
			case "sender":
				snapshot.SenderID = string(value)
			case "content":
				snapshot.Content = string(value)
			case "created_at":
				if at, parseErr := time.Parse(time.RFC3339Nano, string(value)); parseErr == nil {
					snapshot.CreatedAt = at
				}
			case "updated_at":
				if at, parseErr := time.Parse(time.RFC3339Nano, string(value)); parseErr == nil {
					snapshot.UpdatedAt = at
				}
			}
			return true
		})
		if visitErr != nil {
			return nil, 0, visitErr
		}
		snapshots = append(snapshots, snapshot)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, 0, err
	}

	return snapshots, iterator.Aggregations().Count(), nil
}
