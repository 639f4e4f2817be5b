// Package auth verifies the campus SSO cookie and gates admin routes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/csdept/csweb/internal/ctxutil"
	domerrors "github.com/csdept/csweb/internal/errors"
)

// userKey is the gin context key holding *User.
const userKey = "csweb.user"

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid session token")

// Claims is the SSO session payload.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// User is the authenticated caller.
type User struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
}

// AdminChecker decides whether an email has admin rights.
type AdminChecker interface {
	IsAdmin(ctx context.Context, email string) (bool, error)
}

// Verifier validates HS256 session tokens.
type Verifier struct {
	secret     []byte
	cookieName string
}

// NewVerifier creates a verifier for cookieName signed with secret.
func NewVerifier(secret, cookieName string) *Verifier {
	return &Verifier{secret: []byte(secret), cookieName: cookieName}
}

// CookieName returns the session cookie name.
func (v *Verifier) CookieName() string {
	return v.cookieName
}

// Verify parses and validates a token.
func (v *Verifier) Verify(token string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Email) == "" {
		return nil, fmt.Errorf("%w: missing email", ErrInvalidToken)
	}
	claims.Email = strings.ToLower(strings.TrimSpace(claims.Email))
	return claims, nil
}

// Issue signs a session token; used by tests and local development.
func (v *Verifier) Issue(email, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// token reads the session from the cookie, falling back to a bearer header.
func (v *Verifier) token(c *gin.Context) string {
	if cookie, err := c.Cookie(v.cookieName); err == nil && cookie != "" {
		return cookie
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// Middleware attaches the caller, if any, to the request. Anonymous and
// invalid sessions continue without a user.
func Middleware(v *Verifier, admins AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := v.token(c)
		if token == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		claims, err := v.Verify(token)
		if err != nil {
			slog.DebugContext(ctx, "ignoring invalid session", "error", err)
			c.Next()
			return
		}

		user := &User{Email: claims.Email, Name: claims.Name}
		if admins != nil {
			ok, err := admins.IsAdmin(ctx, claims.Email)
			if err != nil {
				slog.ErrorContext(ctx, "failed to check admin status", "email", claims.Email, "error", err)
			}
			user.IsAdmin = ok
		}

		c.Set(userKey, user)
		c.Request = c.Request.WithContext(ctxutil.WithUserEmail(ctx, user.Email))
		c.Next()
	}
}

// CurrentUser returns the caller attached by Middleware.
func CurrentUser(c *gin.Context) (*User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*User)
	return u, ok && u != nil
}

// RequireAdmin rejects anonymous callers with 401 and non-admins with 403.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": domerrors.ErrUnauthorized.Error()})
			return
		}
		if !user.IsAdmin {
			slog.WarnContext(c.Request.Context(), "admin route denied", "email", user.Email, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": domerrors.ErrForbidden.Error()})
			return
		}
		c.Next()
	}
}
