package auth

import (
	"context"
	"log/slog"
	"slices"

	"chat-relay/domain"
	"chat-relay/errors"
)

// ClaimsOracle answers the join-time membership check from the claims
// already embedded in the identity's token. The registry trusts the grant
// for the connection lifetime; a reconnect re-validates.
//
// Any policy backend can replace it behind contract.IMembershipOracle
// without the core noticing.
type ClaimsOracle struct {
	log *slog.Logger
}

func NewClaimsOracle(log *slog.Logger) *ClaimsOracle {
	return &ClaimsOracle{log: log}
}

// Authorize reports whether the identity may join the group, with the
// group's tenant and the elevated (moderation) capability scoped to it.
func (o *ClaimsOracle) Authorize(_ context.Context, identity domain.Identity, group domain.GroupID) (domain.Grant, error) {
	if !slices.Contains(identity.Groups, string(group)) {
		o.log.Warn("join rejected", "user_id", identity.UserID, "group_id", group)
		return domain.Grant{}, errors.ErrUnauthorized
	}
	return domain.Grant{
		TenantID: identity.TenantID,
		Elevated: slices.Contains(identity.Moderator, string(group)),
	}, nil
}
