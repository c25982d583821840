package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/razezix/authgate/internal/authn"
	"github.com/razezix/authgate/internal/shared"
	_ "github.com/razezix/authgate/testing"
)

type handlerFixture struct {
	repo    *memoryRepo
	service *Service
	tokens  *authn.TokenIssuer
	router  chi.Router
}

func newHandlerFixture(t *testing.T, attemptLimit int64) *handlerFixture {
	t.Helper()

	repo := newMemoryRepo()
	service := NewService(repo, time.Hour)
	tokens, err := authn.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	throttle := shared.NewLoginThrottle(redis.NewClient(&redis.Options{Addr: mr.Addr()}), attemptLimit, time.Minute)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, service, tokens, throttle, nil, CookieConfig{Name: "sessionid"})

	resolver := authn.NewResolver(tokens, repo, "sessionid")
	router := chi.NewRouter()
	router.Use(authn.Middleware{Resolver: resolver, Logger: logger}.Handler)
	router.Route("/api/auth", handler.MountRoutes)

	return &handlerFixture{repo: repo, service: service, tokens: tokens, router: router}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func sessionCookie(t *testing.T, res *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == "sessionid" {
			return c
		}
	}
	t.Fatalf("session cookie not set")
	return nil
}

func TestRegisterEndpoint(t *testing.T) {
	f := newHandlerFixture(t, 5)

	res := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"full_name": "Jane Doe",
		"email":     "jane@example.com",
		"password":  "password123",
		"password2": "password123",
	}, nil)
	require.Equal(t, http.StatusCreated, res.Code)

	var created User
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	require.Equal(t, "jane@example.com", created.Email)
	require.NotContains(t, res.Body.String(), "password_hash")
}

func TestRegisterPasswordMismatch(t *testing.T) {
	f := newHandlerFixture(t, 5)

	res := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"full_name": "Jane Doe",
		"email":     "jane@example.com",
		"password":  "password123",
		"password2": "different456",
	}, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	f := newHandlerFixture(t, 5)
	seedUser(t, f.repo, "jane@example.com", "password123")

	res := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"full_name": "Jane Doe",
		"email":     "jane@example.com",
		"password":  "password123",
		"password2": "password123",
	}, nil)
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestLoginSetsCookieAndReturnsToken(t *testing.T) {
	f := newHandlerFixture(t, 5)
	seedUser(t, f.repo, "user@test.local", "correctpass")

	res := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "user@test.local",
		"password": "correctpass",
	}, nil)
	require.Equal(t, http.StatusOK, res.Code)

	var body loginResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	require.Equal(t, "user@test.local", body.User.Email)

	claims, err := f.tokens.Verify(body.Token)
	require.NoError(t, err)
	require.Equal(t, body.User.ID, claims.UID)

	cookie := sessionCookie(t, res)
	require.Equal(t, claims.SID, cookie.Value)
	require.True(t, cookie.HttpOnly)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newHandlerFixture(t, 5)
	seedUser(t, f.repo, "user@test.local", "correctpass")

	res := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "user@test.local",
		"password": "wrongpass",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginThrottled(t *testing.T) {
	f := newHandlerFixture(t, 2)
	seedUser(t, f.repo, "user@test.local", "correctpass")

	for i := 0; i < 2; i++ {
		res := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "user@test.local",
			"password": "wrongpass",
		}, nil)
		require.Equal(t, http.StatusUnauthorized, res.Code)
	}

	res := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "user@test.local",
		"password": "correctpass",
	}, nil)
	require.Equal(t, http.StatusTooManyRequests, res.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newHandlerFixture(t, 5)
	seeded := seedUser(t, f.repo, "user@test.local", "correctpass")
	sess, err := f.service.StartSession(context.Background(), seeded.ID, "", "")
	require.NoError(t, err)

	res := f.do(t, http.MethodPost, "/api/auth/logout", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "sessionid", Value: sess.ID})
	})
	require.Equal(t, http.StatusNoContent, res.Code)
	require.NotNil(t, f.repo.sessions[sess.ID].RevokedAt)

	cookie := sessionCookie(t, res)
	require.Empty(t, cookie.Value)
	require.Negative(t, cookie.MaxAge)
}

func TestLogoutWithoutSession(t *testing.T) {
	f := newHandlerFixture(t, 5)

	res := f.do(t, http.MethodPost, "/api/auth/logout", nil, nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMeRequiresAuth(t *testing.T) {
	f := newHandlerFixture(t, 5)

	res := f.do(t, http.MethodGet, "/api/auth/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestMeWithBearerToken(t *testing.T) {
	f := newHandlerFixture(t, 5)
	seeded := seedUser(t, f.repo, "user@test.local", "correctpass")
	sess, err := f.service.StartSession(context.Background(), seeded.ID, "", "")
	require.NoError(t, err)
	token, err := f.tokens.Issue(seeded.ID, sess.ID)
	require.NoError(t, err)

	res := f.do(t, http.MethodGet, "/api/auth/me", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	require.Equal(t, http.StatusOK, res.Code)

	var body User
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, seeded.ID, body.ID)
}

func TestUpdateMe(t *testing.T) {
	f := newHandlerFixture(t, 5)
	seeded := seedUser(t, f.repo, "user@test.local", "correctpass")
	sess, err := f.service.StartSession(context.Background(), seeded.ID, "", "")
	require.NoError(t, err)

	res := f.do(t, http.MethodPatch, "/api/auth/me", map[string]string{
		"full_name": "New Name",
	}, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "sessionid", Value: sess.ID})
	})
	require.Equal(t, http.StatusOK, res.Code)

	var body User
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.Equal(t, "New Name", body.FullName)
}

func TestDeleteMeDeactivatesAndRevokes(t *testing.T) {
	f := newHandlerFixture(t, 5)
	seeded := seedUser(t, f.repo, "user@test.local", "correctpass")
	sess, err := f.service.StartSession(context.Background(), seeded.ID, "", "")
	require.NoError(t, err)

	res := f.do(t, http.MethodDelete, "/api/auth/me", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "sessionid", Value: sess.ID})
	})
	require.Equal(t, http.StatusNoContent, res.Code)

	user, err := f.repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.False(t, user.IsActive)
	require.NotNil(t, f.repo.sessions[sess.ID].RevokedAt)

	// Revoked session no longer authenticates.
	res = f.do(t, http.MethodGet, "/api/auth/me", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "sessionid", Value: sess.ID})
	})
	require.Equal(t, http.StatusUnauthorized, res.Code)
}
