package auth

import (
	"context"
	"errors"

	"smartattend/internal/store"
)

// Administrative account operations, exposed only through the admin area.

// ListUsers returns all accounts, lock state included.
func (m *Manager) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := m.users.Find(ctx, store.Filter{}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UnlockAccount clears a lockout.
func (m *Manager) UnlockAccount(ctx context.Context, username string) error {
	return m.users.UpdateOne(ctx, store.Filter{"username": username}, store.Update{"$set": map[string]any{
		"is_locked":       false,
		"failed_attempts": 0,
		"lockout_until":   nil,
	}}, false)
}

// SetRole changes an account's role.
func (m *Manager) SetRole(ctx context.Context, username, role string) error {
	if role != RoleTeacher && role != RoleAdmin {
		return errors.New("role must be teacher or admin")
	}
	return m.users.UpdateOne(ctx, store.Filter{"username": username},
		store.Update{"$set": map[string]any{"role": role}}, false)
}

// SetStatus activates or deactivates an account.
func (m *Manager) SetStatus(ctx context.Context, username, status string) error {
	if status != "active" && status != "inactive" {
		return errors.New("status must be active or inactive")
	}
	return m.users.UpdateOne(ctx, store.Filter{"username": username},
		store.Update{"$set": map[string]any{"status": status}}, false)
}

// DeleteUser removes an account. The bootstrap admin cannot be deleted.
func (m *Manager) DeleteUser(ctx context.Context, username string) error {
	if username == "admin" {
		return errors.New("cannot delete admin user")
	}
	n, err := m.users.DeleteMany(ctx, store.Filter{"username": username})
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("user not found")
	}
	return nil
}
