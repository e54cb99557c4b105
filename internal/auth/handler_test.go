package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tallyroom/tallyroom/internal/access"
	"github.com/tallyroom/tallyroom/internal/auth"
	"github.com/tallyroom/tallyroom/internal/shared"
	_ "github.com/tallyroom/tallyroom/testing"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]int64
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

type stubPrincipals struct{}

func (stubPrincipals) Resolve(ctx context.Context, userID int64) (access.Principal, error) {
	return access.Principal{UserID: userID, Role: access.RoleAudit}, nil
}

type harness struct {
	router   http.Handler
	sessions *shared.SessionManager
	repo     *stubRepo
}

func newHarness(t *testing.T, active bool) harness {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{
		user:     &auth.User{ID: 7, Email: "user@tally.test", PasswordHash: string(hashed), IsActive: active},
		sessions: map[string]int64{},
	}
	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test_session", "secret", time.Hour, false)
	handler := auth.NewHandler(nil, auth.NewService(repo), sessions, shared.NewCSRFManager("csrfsecret"), stubPrincipals{})
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return harness{router: r, sessions: sessions, repo: repo}
}

// serve runs one request against a loaded session and commits it afterwards.
func (h harness) serve(t *testing.T, req *http.Request, sess *shared.Session) *httptest.ResponseRecorder {
	t.Helper()
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	require.NoError(t, h.sessions.Commit(ctx, httptest.NewRecorder(), req, sess))
	return rr
}

func TestSessionEndpointIssuesCSRFToken(t *testing.T) {
	h := newHarness(t, true)
	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	sess, err := h.sessions.Load(req.Context(), req)
	require.NoError(t, err)

	rr := h.serve(t, req, sess)
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, false, body["authenticated"])
	require.NotEmpty(t, body["csrf_token"])
	require.Equal(t, sess.Get(shared.CSRFSessionKey), body["csrf_token"])
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newHarness(t, true)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"user@tally.test","password":"wrongpass"}`))
	sess, err := h.sessions.Load(req.Context(), req)
	require.NoError(t, err)

	rr := h.serve(t, req, sess)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, sess.User())
	require.Empty(t, h.repo.sessions)
}

func TestLoginValidation(t *testing.T) {
	h := newHarness(t, true)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"nope","password":""}`))
	sess, err := h.sessions.Load(req.Context(), req)
	require.NoError(t, err)

	rr := h.serve(t, req, sess)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), `"email"`)
}

func TestLoginInactiveUser(t *testing.T) {
	h := newHarness(t, false)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"user@tally.test","password":"correctpass"}`))
	sess, err := h.sessions.Load(req.Context(), req)
	require.NoError(t, err)

	rr := h.serve(t, req, sess)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginRenewsSessionAndLogout(t *testing.T) {
	h := newHarness(t, true)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"user@tally.test","password":"correctpass"}`))
	sess, err := h.sessions.Load(req.Context(), req)
	require.NoError(t, err)
	sess.Set(shared.CSRFSessionKey, "pre-login-token")
	before := sess.ID

	rr := h.serve(t, req, sess)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotEqual(t, before, sess.ID)
	require.Equal(t, "7", sess.User())
	require.NotEqual(t, "pre-login-token", sess.Get(shared.CSRFSessionKey))
	require.Equal(t, int64(7), h.repo.sessions[sess.ID])

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, true, body["authenticated"])
	principal := body["principal"].(map[string]any)
	require.Equal(t, "Audit", principal["role"])

	// The committed session is reachable through its new id.
	next := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	next.AddCookie(&http.Cookie{Name: h.sessions.CookieName(), Value: sess.ID})
	loaded, err := h.sessions.Load(next.Context(), next)
	require.NoError(t, err)
	require.Equal(t, "7", loaded.User())

	rr = h.serve(t, next, loaded)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, h.repo.sessions)

	again, err := h.sessions.Load(next.Context(), next)
	require.NoError(t, err)
	require.Empty(t, again.User())
}
