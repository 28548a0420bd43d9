package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"smartattend/internal/store"
)

const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"

	passwordMinLength = 8
	maxLoginAttempts  = 5
	lockoutDuration   = 30 * time.Minute
	bcryptCost        = 14
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// User is the stored account record.
type User struct {
	Username       string     `bson:"username" json:"username"`
	Password       string     `bson:"password" json:"password"`
	Email          string     `bson:"email" json:"email"`
	Name           string     `bson:"name" json:"name"`
	Role           string     `bson:"role" json:"role"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
	LastLogin      *time.Time `bson:"last_login" json:"last_login"`
	FailedAttempts int        `bson:"failed_attempts" json:"failed_attempts"`
	IsLocked       bool       `bson:"is_locked" json:"is_locked"`
	LockoutUntil   *time.Time `bson:"lockout_until" json:"lockout_until"`
	Status         string     `bson:"status" json:"status"`
	ResetToken     string     `bson:"password_reset_token,omitempty" json:"password_reset_token,omitempty"`
	ResetExpires   *time.Time `bson:"password_reset_expires,omitempty" json:"password_reset_expires,omitempty"`
}

// Manager handles account lifecycle: creation, authentication with
// lockout, password changes and reset tokens.
type Manager struct {
	users store.Collection
}

func NewManager(users store.Collection) *Manager {
	return &Manager{users: users}
}

// ValidatePassword enforces the password policy: minimum length plus at
// least one lowercase, uppercase, digit and special character.
func ValidatePassword(password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}
	if len(password) < passwordMinLength {
		return fmt.Errorf("password must be at least %d characters", passwordMinLength)
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune("@$!%*?&", r):
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		return errors.New("password must contain at least one uppercase letter, one lowercase letter, one number, and one special character")
	}
	return nil
}

// CreateUser validates and stores a new account.
func (m *Manager) CreateUser(ctx context.Context, username, password, email, name, role string) error {
	if len(username) < 3 {
		return errors.New("username must be at least 3 characters")
	}
	if !emailRe.MatchString(email) {
		return errors.New("invalid email format")
	}
	var existing User
	if err := m.users.FindOne(ctx, store.Filter{"username": username}, &existing); err == nil {
		return errors.New("username already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := m.users.FindOne(ctx, store.Filter{"email": email}, &existing); err == nil {
		return errors.New("email already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if role == "" {
		role = RoleTeacher
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return m.users.InsertOne(ctx, User{
		Username:  username,
		Password:  string(hash),
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: time.Now().UTC(),
		Status:    "active",
	})
}

// Authenticate checks credentials, enforcing lockout after repeated
// failures. On success the lockout counters are reset and last_login is
// stamped.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	user, err := m.activeUser(ctx, username)
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		attempts := user.FailedAttempts + 1
		locked := attempts >= maxLoginAttempts
		set := map[string]any{"failed_attempts": attempts, "is_locked": locked}
		var until time.Time
		if locked {
			until = time.Now().UTC().Add(lockoutDuration)
			set["lockout_until"] = until
		}
		if err := m.users.UpdateOne(ctx, store.Filter{"username": username}, store.Update{"$set": set}, false); err != nil {
			return nil, err
		}
		if locked {
			return nil, fmt.Errorf("account locked until %s", until.Format(time.RFC3339))
		}
		return nil, errors.New("invalid password")
	}

	now := time.Now().UTC()
	err = m.users.UpdateOne(ctx, store.Filter{"username": username}, store.Update{"$set": map[string]any{
		"last_login":      now,
		"failed_attempts": 0,
		"is_locked":       false,
		"lockout_until":   nil,
	}}, false)
	if err != nil {
		return nil, err
	}
	return identityOf(user), nil
}

// Resume re-establishes an identity from a session cookie, without a
// password. Lockout and status checks still apply.
func (m *Manager) Resume(ctx context.Context, username string) (*Identity, error) {
	user, err := m.activeUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return identityOf(user), nil
}

func (m *Manager) activeUser(ctx context.Context, username string) (*User, error) {
	var user User
	if err := m.users.FindOne(ctx, store.Filter{"username": username}, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.New("user not found")
		}
		return nil, err
	}
	if user.IsLocked {
		if user.LockoutUntil != nil && user.LockoutUntil.After(time.Now().UTC()) {
			return nil, fmt.Errorf("account locked until %s", user.LockoutUntil.Format(time.RFC3339))
		}
		// Lockout expired, clear it.
		err := m.users.UpdateOne(ctx, store.Filter{"username": username}, store.Update{"$set": map[string]any{
			"is_locked":       false,
			"failed_attempts": 0,
			"lockout_until":   nil,
		}}, false)
		if err != nil {
			return nil, err
		}
	}
	if user.Status != "active" {
		return nil, errors.New("account is inactive")
	}
	return &user, nil
}

// ChangePassword verifies the current password before setting a new one.
func (m *Manager) ChangePassword(ctx context.Context, username, current, newPassword string) error {
	if _, err := m.Authenticate(ctx, username, current); err != nil {
		return errors.New("current password is incorrect")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return m.users.UpdateOne(ctx, store.Filter{"username": username}, store.Update{"$set": map[string]any{
		"password":      string(hash),
		"last_modified": time.Now().UTC(),
	}}, false)
}

// GenerateResetToken stores a 24h single-use password reset token.
func (m *Manager) GenerateResetToken(ctx context.Context, username string) (string, error) {
	var user User
	if err := m.users.FindOne(ctx, store.Filter{"username": username}, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", errors.New("user not found")
		}
		return "", err
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	expires := time.Now().UTC().Add(24 * time.Hour)
	err := m.users.UpdateOne(ctx, store.Filter{"username": username}, store.Update{"$set": map[string]any{
		"password_reset_token":   token,
		"password_reset_expires": expires,
	}}, false)
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResetPassword consumes a reset token and sets the new password.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	var user User
	filter := store.Filter{
		"password_reset_token":   token,
		"password_reset_expires": store.Filter{"$gt": time.Now().UTC()},
	}
	if err := m.users.FindOne(ctx, filter, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("invalid or expired reset token")
		}
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return m.users.UpdateOne(ctx, store.Filter{"password_reset_token": token}, store.Update{"$set": map[string]any{
		"password":               string(hash),
		"password_reset_token":   nil,
		"password_reset_expires": nil,
		"last_modified":          time.Now().UTC(),
	}}, false)
}

// Bootstrap creates the default admin account when the users collection
// is empty.
func (m *Manager) Bootstrap(ctx context.Context) error {
	n, err := m.users.CountDocuments(ctx, store.Filter{})
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return m.CreateUser(ctx, "admin", "Admin@123", "admin@example.com", "Administrator", RoleAdmin)
}

func identityOf(u *User) *Identity {
	return &Identity{Username: u.Username, Role: u.Role, Name: u.Name, Email: u.Email}
}
