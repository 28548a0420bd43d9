package auth

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"smartattend/internal/store"
)

const identityKey = "identity"

// Identity is the authenticated user attached to a request.
type Identity struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

func (id *Identity) IsAdmin() bool {
	return id != nil && id.Role == RoleAdmin
}

// Scope returns the ownership filter merged into every data query.
// Admins are unscoped, teachers see only their own records, and an
// anonymous caller matches nothing.
func Scope(id *Identity) store.Filter {
	if id == nil {
		return store.Filter{"created_by": nil}
	}
	if id.IsAdmin() {
		return store.Filter{}
	}
	return store.Filter{"created_by": id.Username}
}

// Scoped merges the caller's ownership filter into a query.
func Scoped(id *Identity, filter store.Filter) store.Filter {
	out := store.Filter{}
	for k, v := range filter {
		out[k] = v
	}
	for k, v := range Scope(id) {
		out[k] = v
	}
	return out
}

// SaveSession writes the identity into the cookie session.
func SaveSession(c *gin.Context, id *Identity) error {
	s := sessions.Default(c)
	s.Set("username", id.Username)
	s.Set("role", id.Role)
	s.Set("name", id.Name)
	s.Set("email", id.Email)
	return s.Save()
}

// ClearSession drops the cookie session.
func ClearSession(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	return s.Save()
}

// RequireLogin resumes the identity from the session cookie and aborts
// unauthenticated requests. The account is re-checked against the users
// collection so deactivated or locked accounts lose access immediately.
func RequireLogin(users *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		username, _ := s.Get("username").(string)
		if username == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		id, err := users.Resume(c.Request.Context(), username)
		if err != nil {
			_ = ClearSession(c)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireAdmin aborts requests from non-admin identities.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentIdentity(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "administrators only"})
			return
		}
		c.Next()
	}
}

// CurrentIdentity returns the identity set by RequireLogin, or nil.
func CurrentIdentity(c *gin.Context) *Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}
