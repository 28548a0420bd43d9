package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ReauthHeader carries the unlock token on requests to sensitive areas.
const ReauthHeader = "X-Reauth-Token"

// Sensitive areas that require a fresh password check before use.
const (
	AreaManual   = "manual"
	AreaBulk     = "bulk"
	AreaLinks    = "links"
	AreaSettings = "settings"
	AreaTeachers = "teachers"
)

type unlockClaims struct {
	Area string `json:"area"`
	jwt.RegisteredClaims
}

// Reauth issues and verifies short-lived HS256 unlock tokens scoped to a
// sensitive area. A token is only granted after the caller re-enters their
// password.
type Reauth struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewReauth(signingKey, issuer string, ttl time.Duration) *Reauth {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Reauth{signingKey: []byte(signingKey), issuer: issuer, ttl: ttl}
}

// Issue signs an unlock token for the given user and area.
func (r *Reauth) Issue(username, area string) (string, time.Time, error) {
	exp := time.Now().Add(r.ttl)
	claims := unlockClaims{
		Area: area,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    r.issuer,
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Verify checks an unlock token against the expected user and area.
func (r *Reauth) Verify(tokenStr, username, area string) error {
	parsed, err := jwt.ParseWithClaims(tokenStr, &unlockClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return r.signingKey, nil
	})
	if err != nil {
		return err
	}
	claims, ok := parsed.Claims.(*unlockClaims)
	if !ok || !parsed.Valid {
		return errors.New("invalid unlock token")
	}
	if r.issuer != "" && claims.Issuer != r.issuer {
		return errors.New("issuer mismatch")
	}
	if claims.Subject != username {
		return errors.New("unlock token belongs to another user")
	}
	if claims.Area != area {
		return errors.New("unlock token covers a different area")
	}
	return nil
}

// RequireUnlock guards a sensitive route group. Must run after
// RequireLogin.
func (r *Reauth) RequireUnlock(area string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := CurrentIdentity(c)
		if id == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		token := c.GetHeader(ReauthHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "re-authentication required", "area": area})
			return
		}
		if err := r.Verify(token, id.Username, area); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "re-authentication required", "area": area})
			return
		}
		c.Next()
	}
}
