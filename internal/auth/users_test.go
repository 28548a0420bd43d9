package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"smartattend/internal/store"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	st, err := store.OpenJSON(t.TempDir())
	if err != nil {
		t.Fatalf("OpenJSON: %v", err)
	}
	return NewManager(st.Users)
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
	}{
		{"Valid@123", true},
		{"Str0ng!pass", true},
		{"", false},
		{"Sh0rt@1", false},
		{"alllower@123", false},
		{"ALLUPPER@123", false},
		{"NoDigits@abc", false},
		{"NoSpecial123A", false},
	}
	for _, tc := range cases {
		err := ValidatePassword(tc.password)
		if tc.ok && err != nil {
			t.Errorf("ValidatePassword(%q) = %v, want nil", tc.password, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("ValidatePassword(%q) = nil, want error", tc.password)
		}
	}
}

func TestCreateUserValidation(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.CreateUser(ctx, "ab", "Valid@123", "a@b.com", "A", ""); err == nil {
		t.Error("short username accepted")
	}
	if err := m.CreateUser(ctx, "alice", "Valid@123", "not-an-email", "A", ""); err == nil {
		t.Error("bad email accepted")
	}
	if err := m.CreateUser(ctx, "alice", "weak", "alice@example.com", "A", ""); err == nil {
		t.Error("weak password accepted")
	}

	if err := m.CreateUser(ctx, "alice", "Valid@123", "alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := m.CreateUser(ctx, "alice", "Valid@123", "other@example.com", "A", ""); err == nil {
		t.Error("duplicate username accepted")
	}
	if err := m.CreateUser(ctx, "bob", "Valid@123", "alice@example.com", "B", ""); err == nil {
		t.Error("duplicate email accepted")
	}
}

func TestAuthenticate(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.CreateUser(ctx, "alice", "Valid@123", "alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	id, err := m.Authenticate(ctx, "alice", "Valid@123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.Username != "alice" || id.Role != RoleTeacher {
		t.Errorf("identity = %+v", id)
	}

	if _, err := m.Authenticate(ctx, "alice", "Wrong@123"); err == nil {
		t.Error("wrong password accepted")
	}
	if _, err := m.Authenticate(ctx, "nobody", "Valid@123"); err == nil {
		t.Error("unknown user accepted")
	}

	// Successful login resets the failure counter.
	if _, err := m.Authenticate(ctx, "alice", "Valid@123"); err != nil {
		t.Fatalf("Authenticate after failure: %v", err)
	}
}

func TestLockout(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.CreateUser(ctx, "alice", "Valid@123", "alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := m.Authenticate(ctx, "alice", "Wrong@123"); err == nil {
			t.Fatal("wrong password accepted")
		}
	}

	// Locked even with the correct password now.
	_, err := m.Authenticate(ctx, "alice", "Valid@123")
	if err == nil || !strings.Contains(err.Error(), "locked") {
		t.Errorf("Authenticate on locked account = %v, want lockout error", err)
	}
	if _, err := m.Resume(ctx, "alice"); err == nil {
		t.Error("Resume on locked account succeeded")
	}

	if err := m.UnlockAccount(ctx, "alice"); err != nil {
		t.Fatalf("UnlockAccount: %v", err)
	}
	if _, err := m.Authenticate(ctx, "alice", "Valid@123"); err != nil {
		t.Errorf("Authenticate after unlock: %v", err)
	}
}

func TestInactiveAccount(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.CreateUser(ctx, "alice", "Valid@123", "alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := m.SetStatus(ctx, "alice", "inactive"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := m.Authenticate(ctx, "alice", "Valid@123"); err == nil {
		t.Error("inactive account authenticated")
	}
	if _, err := m.Resume(ctx, "alice"); err == nil {
		t.Error("inactive account resumed")
	}
}

func TestChangePassword(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.CreateUser(ctx, "alice", "Valid@123", "alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := m.ChangePassword(ctx, "alice", "Wrong@123", "Next@1234"); err == nil {
		t.Error("wrong current password accepted")
	}
	if err := m.ChangePassword(ctx, "alice", "Valid@123", "weak"); err == nil {
		t.Error("weak new password accepted")
	}
	if err := m.ChangePassword(ctx, "alice", "Valid@123", "Next@1234"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := m.Authenticate(ctx, "alice", "Next@1234"); err != nil {
		t.Errorf("Authenticate with new password: %v", err)
	}
	if _, err := m.Authenticate(ctx, "alice", "Valid@123"); err == nil {
		t.Error("old password still works")
	}
}

func TestPasswordReset(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.CreateUser(ctx, "alice", "Valid@123", "alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := m.GenerateResetToken(ctx, "nobody"); err == nil {
		t.Error("reset token for unknown user")
	}

	token, err := m.GenerateResetToken(ctx, "alice")
	if err != nil {
		t.Fatalf("GenerateResetToken: %v", err)
	}
	if token == "" || strings.Contains(token, "-") {
		t.Errorf("token = %q, want dashless uuid", token)
	}

	if err := m.ResetPassword(ctx, "bogus", "Next@1234"); err == nil {
		t.Error("bogus token accepted")
	}
	if err := m.ResetPassword(ctx, token, "Next@1234"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := m.Authenticate(ctx, "alice", "Next@1234"); err != nil {
		t.Errorf("Authenticate after reset: %v", err)
	}
	// Token is single use.
	if err := m.ResetPassword(ctx, token, "Other@1234"); err == nil {
		t.Error("consumed token accepted")
	}
}

func TestBootstrap(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	id, err := m.Authenticate(ctx, "admin", "Admin@123")
	if err != nil {
		t.Fatalf("Authenticate bootstrap admin: %v", err)
	}
	if id.Role != RoleAdmin {
		t.Errorf("role = %q, want admin", id.Role)
	}

	// Idempotent: a second call must not duplicate or reset anything.
	if err := m.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap again: %v", err)
	}
	users, err := m.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("users = %d, want 1", len(users))
	}
}

func TestAdminOperations(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	if err := m.CreateUser(ctx, "alice", "Valid@123", "alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := m.SetRole(ctx, "alice", "superuser"); err == nil {
		t.Error("bogus role accepted")
	}
	if err := m.SetRole(ctx, "alice", RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	id, err := m.Resume(ctx, "alice")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !id.IsAdmin() {
		t.Error("alice should be admin after SetRole")
	}

	if err := m.SetStatus(ctx, "alice", "suspended"); err == nil {
		t.Error("bogus status accepted")
	}
	if err := m.DeleteUser(ctx, "admin"); err == nil {
		t.Error("bootstrap admin deleted")
	}
	if err := m.DeleteUser(ctx, "nobody"); err == nil {
		t.Error("deleting unknown user succeeded")
	}
	if err := m.DeleteUser(ctx, "alice"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := m.Resume(ctx, "alice"); err == nil {
		t.Error("deleted user resumed")
	}
}

func TestLockoutExpiryClears(t *testing.T) {
	st, err := store.OpenJSON(t.TempDir())
	if err != nil {
		t.Fatalf("OpenJSON: %v", err)
	}
	m := NewManager(st.Users)
	ctx := context.Background()

	if err := m.CreateUser(ctx, "alice", "Valid@123", "alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	past := time.Now().UTC().Add(-time.Minute)
	err = st.Users.UpdateOne(ctx, store.Filter{"username": "alice"}, store.Update{"$set": map[string]any{
		"is_locked":       true,
		"failed_attempts": 5,
		"lockout_until":   past,
	}}, false)
	if err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}

	if _, err := m.Authenticate(ctx, "alice", "Valid@123"); err != nil {
		t.Errorf("Authenticate after lockout expiry: %v", err)
	}
}
