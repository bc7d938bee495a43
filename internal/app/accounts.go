package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gitaditya567/itskillhub/internal/util"
	"github.com/gitaditya567/itskillhub/pkg/auth"
	"github.com/gitaditya567/itskillhub/pkg/domain"
	"github.com/gitaditya567/itskillhub/pkg/store"
)

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a regular user account and signs it in.
func (a *App) Register(name, email, password string) (domain.User, string, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" {
		return domain.User{}, "", fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}
	now := a.now().UTC()
	user := domain.User{
		ID:             util.NewID(),
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		Role:           domain.RoleUser,
		PurchasedBooks: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.store.CreateUser(user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return domain.User{}, "", ErrEmailTaken
		}
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	user, ok, err := a.store.GetUserByEmail(NormalizeEmail(email))
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Logout revokes the session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves the session and loads the current user record, so
// role and purchases are never older than this call.
func (a *App) UserFromToken(token string) (domain.User, error) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, ErrUnauthenticated
	}
	user, ok, err := a.store.GetUserByID(uid)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUnauthenticated
	}
	return user, nil
}

// EnsureAdmin creates an admin account or promotes an existing one. When
// password is non-empty it also replaces the stored password. The returned
// bool reports whether the account was newly created.
func (a *App) EnsureAdmin(name, email, password string) (domain.User, bool, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return domain.User{}, false, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	user, exists, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("fetch user: %w", err)
	}
	if !exists && password == "" {
		return domain.User{}, false, fmt.Errorf("%w: password is required for a new admin", ErrInvalidInput)
	}
	now := a.now().UTC()
	if password != "" {
		if err := auth.ValidatePassword(password); err != nil {
			return domain.User{}, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return domain.User{}, false, err
		}
		user.PasswordHash = hash
	}
	if !exists {
		user.ID = util.NewID()
		user.Email = email
		user.CreatedAt = now
		user.PurchasedBooks = []string{}
	}
	if n := strings.TrimSpace(name); n != "" {
		user.Name = n
	}
	user.Role = domain.RoleAdmin
	user.UpdatedAt = now
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, false, fmt.Errorf("save user: %w", err)
	}
	if exists && password != "" {
		if r, ok := a.sessions.(userSessionRevoker); ok {
			if err := r.RevokeUserSessions(user.ID, now); err != nil {
				return user, false, fmt.Errorf("revoke sessions: %w", err)
			}
		}
	}
	return user, !exists, nil
}

type userSessionRevoker interface {
	RevokeUserSessions(userID string, since time.Time) error
}
