// Package auth resolves the identity the transaction operations run as.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

var ErrInvalidEmail = errors.New("invalid email")

type User struct {
	Email string `json:"email"`
}

// Identity reports the current user. ok is false when nobody is signed in.
type Identity interface {
	CurrentUser(ctx context.Context) (u User, ok bool, err error)
}

// Static is a fixed identity. The zero value is signed out.
type Static struct {
	User User
}

func (s Static) CurrentUser(context.Context) (User, bool, error) {
	return s.User, s.User.Email != "", nil
}

// StoreIdentity keeps the signed-in user under storage.CurrentUserKey.
type StoreIdentity struct {
	kv     storage.KV
	logger *log.Logger
}

func NewStoreIdentity(kv storage.KV, logger *log.Logger) *StoreIdentity {
	return &StoreIdentity{kv: kv, logger: logger.WithComponent(log.ComponentAuth)}
}

func (s *StoreIdentity) CurrentUser(ctx context.Context) (User, bool, error) {
	raw, ok, err := s.kv.Get(ctx, storage.CurrentUserKey)
	if err != nil {
		return User{}, false, fmt.Errorf("%w: read current user: %v", core.ErrStorage, err)
	}
	if !ok || len(raw) == 0 {
		return User{}, false, nil
	}

	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, false, fmt.Errorf("%w: decode current user: %v", core.ErrStorage, err)
	}
	if u.Email == "" {
		return User{}, false, nil
	}
	return u, true, nil
}

// Login records email as the signed-in user. Credentials are not checked.
func (s *StoreIdentity) Login(ctx context.Context, email string) (User, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Name != "" {
		return User{}, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	u := User{Email: strings.ToLower(addr.Address)}
	raw, err := json.Marshal(u)
	if err != nil {
		return User{}, fmt.Errorf("encode current user: %w", err)
	}
	if err := s.kv.Set(ctx, storage.CurrentUserKey, raw); err != nil {
		return User{}, fmt.Errorf("%w: save current user: %v", core.ErrStorage, err)
	}

	s.logger.InfoContext(ctx, "User signed in", log.FieldUser, u.Email, log.FieldOperation, log.OpLogin)
	return u, nil
}

// Logout forgets the signed-in user. Signing out twice is not an error.
func (s *StoreIdentity) Logout(ctx context.Context) error {
	if err := s.kv.Delete(ctx, storage.CurrentUserKey); err != nil {
		return fmt.Errorf("%w: clear current user: %v", core.ErrStorage, err)
	}
	s.logger.InfoContext(ctx, "User signed out", log.FieldOperation, log.OpLogout)
	return nil
}
