package auth

import (
	"context"
	"log/slog"
	"testing"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func Test_Oracle_Grants_Member(t *testing.T) {
	req := require.New(t)
	oracle := NewClaimsOracle(logs.GetLoggerFromLevel(slog.LevelDebug))

	identity := domain.Identity{
		UserID:   "alice",
		TenantID: "acme",
		Groups:   []string{"general", "random"},
	}

	grant, err := oracle.Authorize(context.Background(), identity, "general")
	req.NoError(err)
	req.Equal("acme", grant.TenantID)
	req.False(grant.Elevated)
}

func Test_Oracle_Elevation_Is_Scoped_To_The_Group(t *testing.T) {
	req := require.New(t)
	oracle := NewClaimsOracle(logs.GetLoggerFromLevel(slog.LevelDebug))

	// Given alice moderates general but not random
	identity := domain.Identity{
		UserID:    "alice",
		TenantID:  "acme",
		Groups:    []string{"general", "random"},
		Moderator: []string{"general"},
	}

	grant, err := oracle.Authorize(context.Background(), identity, "general")
	req.NoError(err)
	req.True(grant.Elevated)

	grant, err = oracle.Authorize(context.Background(), identity, "random")
	req.NoError(err)
	req.False(grant.Elevated)
}

func Test_Oracle_Rejects_Non_Member(t *testing.T) {
	req := require.New(t)
	oracle := NewClaimsOracle(logs.GetLoggerFromLevel(slog.LevelDebug))

	identity := domain.Identity{UserID: "mallory", Groups: []string{"other"}}

	_, err := oracle.Authorize(context.Background(), identity, "general")
	req.ErrorIs(err, errors.ErrUnauthorized)
}
