package auth

import (
	"time"

	"chat-relay/domain"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
// Group membership and the moderator capability travel as claims: the
// oracle validates them locally, no policy service round trip per join.
type CustomClaims struct {
	UserID    string   `json:"user_id"`
	TenantID  string   `json:"tenant_id"`
	Groups    []string `json:"groups"`
	Moderator []string `json:"moderator_groups"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates identity tokens. The secret should be
// loaded from an environment variable or a secret manager, never
// hardcoded.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret []byte, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: secret, ttl: ttl}
}

// Generate creates a signed JWT embedding the identity's memberships.
func (t *TokenManager) Generate(identity domain.Identity) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID:    identity.UserID,
		TenantID:  identity.TenantID,
		Groups:    identity.Groups,
		Moderator: identity.Moderator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "chat-relay",
		},
	}

	// HS256: HMAC with SHA256, symmetric secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses the token, checks signature and expiration, and rebuilds
// the identity from its claims.
func (t *TokenManager) Validate(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return domain.Identity{}, err
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return domain.Identity{}, jwt.ErrSignatureInvalid
	}

	return domain.Identity{
		UserID:    claims.UserID,
		TenantID:  claims.TenantID,
		Groups:    claims.Groups,
		Moderator: claims.Moderator,
	}, nil
}
