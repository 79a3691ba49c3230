package auth

import (
	"fmt"
	"sync"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterRequest struct {
	UserID    string   `validate:"required,min=3,max=64"`
	TenantID  string   `validate:"required"`
	Password  string   `validate:"required,min=12,max=72"`
	Groups    []string `validate:"required,min=1"`
	Moderator []string
}

type account struct {
	identity     domain.Identity
	passwordHash string
}

// Accounts is a small in-memory directory issuing the tokens whose claims
// feed the membership oracle. A real deployment would back this with a
// user store; the shape of the issued token is what matters here.
type Accounts struct {
	mu     sync.RWMutex
	byUser map[string]account
	tokens *TokenManager
}

func NewAccounts(tokens *TokenManager) *Accounts {
	return &Accounts{byUser: make(map[string]account), tokens: tokens}
}

// Register stores a new account with its hashed password.
func (a *Accounts) Register(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidCommand, err)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.byUser[req.UserID]; ok {
		return fmt.Errorf("%w: user already registered", errors.ErrInvalidCommand)
	}
	a.byUser[req.UserID] = account{
		identity: domain.Identity{
			UserID:    req.UserID,
			TenantID:  req.TenantID,
			Groups:    req.Groups,
			Moderator: req.Moderator,
		},
		passwordHash: hash,
	}
	return nil
}

// Login verifies the password and issues a signed token embedding the
// account's memberships.
func (a *Accounts) Login(userID, password string) (string, error) {
	a.mu.RLock()
	acc, ok := a.byUser[userID]
	a.mu.RUnlock()
	if !ok {
		return "", errors.ErrUnauthorized
	}

	match, err := VerifyPassword(password, acc.passwordHash)
	if err != nil {
		return "", err
	}
	if !match {
		return "", errors.ErrUnauthorized
	}
	return a.tokens.Generate(acc.identity)
}
