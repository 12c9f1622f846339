package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/votify/backend/internal/domain"
)

type fakeResolver struct {
	sessions map[string]string
	err      error
}

func (f *fakeResolver) Resolve(_ context.Context, token string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	email, ok := f.sessions[token]
	if !ok {
		return "", domain.ErrUnauthenticated
	}
	return email, nil
}

func sessionRouter(t *testing.T, resolver *fakeResolver) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/protected", Session(resolver), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": c.GetString(ContextEmail)})
	})
	return r
}

func validResolver() *fakeResolver {
	return &fakeResolver{sessions: map[string]string{"tok123": "alice@example.com"}}
}

func TestSessionValidCookie(t *testing.T) {
	r := sessionRouter(t, validResolver())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "tok123"})
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "alice@example.com")
}

func TestSessionMissingCookie(t *testing.T) {
	r := sessionRouter(t, validResolver())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Not authenticated")
}

func TestSessionUnknownToken(t *testing.T) {
	r := sessionRouter(t, validResolver())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "expired"})
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "Invalid session")
}

func TestSessionStoreOutageIsNot401(t *testing.T) {
	// a Redis failure must not read as a bad token to the client
	r := sessionRouter(t, &fakeResolver{err: errors.New("redis: connection refused")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "tok123"})
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "Internal server error")
}
