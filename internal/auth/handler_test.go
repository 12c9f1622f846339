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
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/votify/backend/internal/domain"
	"github.com/votify/backend/internal/middleware"
	"github.com/votify/backend/pkg/queue"
)

type fakeUsers struct {
	existing map[string]bool
	created  []string
}

func (f *fakeUsers) Exists(_ context.Context, email string) (bool, error) {
	return f.existing[email], nil
}

func (f *fakeUsers) Create(_ context.Context, email, _ string) error {
	f.existing[email] = true
	f.created = append(f.created, email)
	return nil
}

type fakeCodes struct {
	issued    []string
	verifyErr error
}

func (f *fakeCodes) Issue(_ context.Context, email string) (string, error) {
	f.issued = append(f.issued, email)
	return "123456", nil
}

func (f *fakeCodes) Verify(_ context.Context, _, _ string) error {
	return f.verifyErr
}

type fakeSessions struct{ token string }

func (f *fakeSessions) Issue(_ context.Context, _ string) (string, error) {
	return f.token, nil
}

type fakeEnqueuer struct {
	payloads []queue.EmailPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	f.payloads = append(f.payloads, p)
	return f.err
}

type authFixture struct {
	users    *fakeUsers
	codes    *fakeCodes
	sessions *fakeSessions
	enqueued *fakeEnqueuer
	router   *gin.Engine
}

func newAuthFixture(t *testing.T, verifyErr error) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &authFixture{
		users:    &fakeUsers{existing: map[string]bool{"alice@example.com": true}},
		codes:    &fakeCodes{verifyErr: verifyErr},
		sessions: &fakeSessions{token: "tok"},
		enqueued: &fakeEnqueuer{},
	}
	h := NewHandler(f.users, f.codes, f.sessions, f.enqueued, 24*time.Hour, false, zap.NewNop())

	f.router = gin.New()
	f.router.GET("/api/register", h.Register)
	f.router.GET("/api/login", h.Login)
	f.router.GET("/api/login/code", h.VerifyCode)
	return f
}

func doGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterNewUser(t *testing.T) {
	f := newAuthFixture(t, nil)

	w := doGet(f.router, "/api/register?email=Bob@Example.com")
	require.Equal(t, http.StatusOK, w.Code)

	// email is normalized before anything else touches it
	require.Equal(t, []string{"bob@example.com"}, f.users.created)
	require.Equal(t, []string{"bob@example.com"}, f.codes.issued)
	require.Len(t, f.enqueued.payloads, 1)
	require.Equal(t, "bob@example.com", f.enqueued.payloads[0].RecipientEmail)
	require.Contains(t, f.enqueued.payloads[0].Body, "123456")
}

func TestRegisterExistingUser(t *testing.T) {
	f := newAuthFixture(t, nil)

	w := doGet(f.router, "/api/register?email=alice@example.com")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "User already exists")
	require.Empty(t, f.codes.issued)
}

func TestRegisterMissingEmail(t *testing.T) {
	f := newAuthFixture(t, nil)

	w := doGet(f.router, "/api/register")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginKnownUser(t *testing.T) {
	f := newAuthFixture(t, nil)

	w := doGet(f.router, "/api/login?email=alice@example.com")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"alice@example.com"}, f.codes.issued)
}

func TestLoginUnknownUser(t *testing.T) {
	f := newAuthFixture(t, nil)

	w := doGet(f.router, "/api/login?email=nobody@example.com")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "User does not exist")
}

func TestVerifyCodeSetsSessionCookie(t *testing.T) {
	f := newAuthFixture(t, nil)

	w := doGet(f.router, "/api/login/code?email=alice@example.com&code=123456")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "Code is valid", body["message"])

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, middleware.SessionCookie, cookies[0].Name)
	require.Equal(t, "tok", cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
}

func TestVerifyCodeInvalid(t *testing.T) {
	f := newAuthFixture(t, domain.ErrCodeInvalid)

	w := doGet(f.router, "/api/login/code?email=alice@example.com&code=999999")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Invalid code")
	require.Empty(t, w.Result().Cookies())
}

func TestVerifyCodeMissingCode(t *testing.T) {
	f := newAuthFixture(t, nil)

	w := doGet(f.router, "/api/login/code?email=alice@example.com")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendCodeSurvivesEnqueueFailure(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.enqueued.err = errors.New("redis down")

	w := doGet(f.router, "/api/login?email=alice@example.com")
	require.Equal(t, http.StatusOK, w.Code)
}
