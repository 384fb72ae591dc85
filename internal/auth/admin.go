package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"paylog/internal/core"
)

// CredentialStore persists the single admin password hash.
type CredentialStore interface {
	AdminPassword(ctx context.Context) (string, error)
	SetAdminPassword(ctx context.Context, hash string) error
}

// Admin verifies and manages the admin credential.
type Admin struct {
	store CredentialStore
	cost  int
}

// NewAdmin uses cost for new hashes; zero selects a production cost.
func NewAdmin(store CredentialStore, cost int) *Admin {
	if cost == 0 {
		cost = 12
	}
	return &Admin{store: store, cost: cost}
}

// Login checks password. When no credential exists yet the call sets it,
// which requires confirm to repeat password. It reports whether the
// credential was created by this call.
func (a *Admin) Login(ctx context.Context, password, confirm string) (bool, error) {
	saved, err := a.store.AdminPassword(ctx)
	if err != nil {
		return false, core.StorageFailure("read admin password", err)
	}

	if saved == "" {
		if password == "" {
			return false, core.ErrPasswordRequired
		}
		if confirm != password {
			return false, core.ErrPasswordMismatch
		}
		if err := a.setPassword(ctx, password); err != nil {
			return false, err
		}
		return true, nil
	}

	if !verify(password, saved) {
		return false, core.ErrInvalidCredentials
	}
	if !looksHashed(saved) {
		// upgrade a legacy plaintext credential
		if err := a.setPassword(ctx, password); err != nil {
			return false, err
		}
	}
	return false, nil
}

// ChangePassword replaces the credential after verifying current.
func (a *Admin) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if next == "" {
		return core.ErrPasswordRequired
	}
	if next != confirm {
		return core.ErrPasswordMismatch
	}
	saved, err := a.store.AdminPassword(ctx)
	if err != nil {
		return core.StorageFailure("read admin password", err)
	}
	if !verify(current, saved) {
		return core.ErrInvalidCredentials
	}
	return a.setPassword(ctx, next)
}

// Reset clears the credential so the next login sets a new one.
func (a *Admin) Reset(ctx context.Context) error {
	if err := a.store.SetAdminPassword(ctx, ""); err != nil {
		return core.StorageFailure("clear admin password", err)
	}
	return nil
}

func (a *Admin) setPassword(ctx context.Context, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return fmt.Errorf("%w: password too long", core.ErrValidation)
	}
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := a.store.SetAdminPassword(ctx, string(hash)); err != nil {
		return core.StorageFailure("store admin password", err)
	}
	return nil
}

func looksHashed(v string) bool {
	return strings.HasPrefix(v, "$2a$") || strings.HasPrefix(v, "$2b$") || strings.HasPrefix(v, "$2y$")
}

func verify(password, saved string) bool {
	if saved == "" {
		return false
	}
	if looksHashed(saved) {
		return bcrypt.CompareHashAndPassword([]byte(saved), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(saved)) == 1
}
