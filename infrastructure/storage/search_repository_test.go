package storage

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-relay/domain"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/database"
	"github.com/stretchr/testify/require"
)

func Test_Search_Is_Scoped_To_The_Group(t *testing.T) {
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repository := NewSearchRepository(blugeWriter, slog.Default(), 10)
	now := time.Now().UTC()

	// Given the same word indexed in two groups
	req.NoError(repository.Index(newMessage("general", "alice", "deployment finished", now)))
	req.NoError(repository.Index(newMessage("general", "bob", "deployment reverted", now)))
	req.NoError(repository.Index(newMessage("random", "clara", "deployment gossip", now)))

	// When searching within one group
	hits, total, err := repository.Search(context.Background(), "general", "deployment", 0)
	req.NoError(err)

	// Then the other group's content never leaks into the results
	req.Equal(uint64(2), total)
	req.Len(hits, 2)
	for _, hit := range hits {
		req.Equal(domain.GroupID("general"), hit.Group)
		req.Contains(hit.Content, "deployment")
	}
}

func Test_Search_Pagination(t *testing.T) {
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repository := NewSearchRepository(blugeWriter, slog.Default(), 2)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		req.NoError(repository.Index(newMessage("general", "alice", "incident report", now)))
	}

	page0, total, err := repository.Search(context.Background(), "general", "incident", 0)
	req.NoError(err)
	req.Equal(uint64(5), total)
	req.Len(page0, 2)

	page2, _, err := repository.Search(context.Background(), "general", "incident", 2)
	req.NoError(err)
	req.Len(page2, 1)
}

func Test_Removed_Message_Stops_Matching(t *testing.T) {
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repository := NewSearchRepository(blugeWriter, slog.Default(), 10)
	message := newMessage("general", "alice", "sensitive detail", time.Now().UTC())
	req.NoError(repository.Index(message))

	hits, _, err := repository.Search(context.Background(), "general", "sensitive", 0)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(message.ID, hits[0].ID)

	// When the message is removed from the index
	req.NoError(repository.Remove(message.ID))

	// Then it stops matching immediately
	hits, total, err := repository.Search(context.Background(), "general", "sensitive", 0)
	req.NoError(err)
	req.Empty(hits)
	req.Equal(uint64(0), total)
}

func Test_Reindex_Replaces_Content(t *testing.T) {
	req := require.New(t)
	_, _, badgerDB, blugeWriter, err := database.SetupBenchmark(database.DefaultPath)
	req.NoError(err)
	defer database.CleanupDB(badgerDB, blugeWriter)

	repository := NewSearchRepository(blugeWriter, slog.Default(), 10)
	message := domain.Message{
		ID:        uuid.New(),
		Group:     "general",
		SenderID:  "alice",
		Content:   "draft wording",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	req.NoError(repository.Index(message))

	// When the message is indexed again with new content
	message.Content = "final wording"
	req.NoError(repository.Index(message))

	// Then only the latest content matches
	hits, _, err := repository.Search(context.Background(), "general", "final", 0)
	req.NoError(err)
	req.Len(hits, 1)

	hits, _, err = repository.Search(context.Background(), "general", "draft", 0)
	req.NoError(err)
	req.Empty(hits)
}
