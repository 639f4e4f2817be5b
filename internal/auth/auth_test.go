package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csdept/csweb/internal/ctxutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticAdmins map[string]bool

func (s staticAdmins) IsAdmin(_ context.Context, email string) (bool, error) {
	if email == "broken@cs.edu" {
		return false, errors.New("db down")
	}
	return s[email], nil
}

func newRouter(v *Verifier) *gin.Engine {
	r := gin.New()
	r.Use(Middleware(v, staticAdmins{"chair@cs.edu": true}))
	r.GET("/me", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"email":    user.Email,
			"isAdmin":  user.IsAdmin,
			"ctxEmail": ctxutil.GetUserEmail(c.Request.Context()),
		})
	})
	r.POST("/admin", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "cs_sso", Value: token})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVerifier_RoundTrip(t *testing.T) {
	t.Parallel()
	v := NewVerifier("secret", "cs_sso")

	token, err := v.Issue(" Chair@CS.edu ", "Chair", time.Hour)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "chair@cs.edu", claims.Email)
	assert.Equal(t, "Chair", claims.Name)
}

func TestVerifier_Rejects(t *testing.T) {
	t.Parallel()
	v := NewVerifier("secret", "cs_sso")

	expired, err := v.Issue("a@cs.edu", "", -time.Minute)
	require.NoError(t, err)
	other, err := NewVerifier("other", "cs_sso").Issue("a@cs.edu", "", time.Hour)
	require.NoError(t, err)
	noEmail, err := v.Issue("", "", time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Email: "a@cs.edu"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Email:            "a@cs.edu",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"bad key":    other,
		"no email":   noEmail,
		"no expiry":  noExpiry,
		"wrong alg":  hs512,
		"garbage":    "not.a.token",
		"empty text": "",
	} {
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}

	_, err = NewVerifier("", "cs_sso").Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware_AttachesUser(t *testing.T) {
	t.Parallel()
	v := NewVerifier("secret", "cs_sso")
	r := newRouter(v)

	token, err := v.Issue("chair@cs.edu", "Chair", time.Hour)
	require.NoError(t, err)

	w := do(t, r, http.MethodGet, "/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "chair@cs.edu", body["email"])
	assert.Equal(t, true, body["isAdmin"])
	assert.Equal(t, "chair@cs.edu", body["ctxEmail"])
}

func TestMiddleware_BearerFallback(t *testing.T) {
	t.Parallel()
	v := NewVerifier("secret", "cs_sso")
	r := newRouter(v)

	token, err := v.Issue("student@cs.edu", "", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Contains(t, w.Body.String(), `"email":"student@cs.edu"`)
	assert.Contains(t, w.Body.String(), `"isAdmin":false`)
}

func TestMiddleware_InvalidTokenIsAnonymous(t *testing.T) {
	t.Parallel()
	r := newRouter(NewVerifier("secret", "cs_sso"))

	w := do(t, r, http.MethodGet, "/me", "garbage")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anonymous")
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()
	v := NewVerifier("secret", "cs_sso")
	r := newRouter(v)

	admin, err := v.Issue("chair@cs.edu", "", time.Hour)
	require.NoError(t, err)
	student, err := v.Issue("student@cs.edu", "", time.Hour)
	require.NoError(t, err)
	broken, err := v.Issue("broken@cs.edu", "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"invalid", "garbage", http.StatusUnauthorized},
		{"student", student, http.StatusForbidden},
		{"lookup failure", broken, http.StatusForbidden},
		{"admin", admin, http.StatusNoContent},
	}
	for _, tt := range tests {
		w := do(t, r, http.MethodPost, "/admin", tt.token)
		assert.Equal(t, tt.want, w.Code, tt.name)
	}
}
