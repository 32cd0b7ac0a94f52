package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-hq/meridian/internal/auth"
	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/internal/token"
	"github.com/meridian-hq/meridian/internal/users"
	_ "github.com/meridian-hq/meridian/testing"
)

const testSecret = "meridian-test-secret"

type stubSource struct {
	user users.User
	ok   bool
}

func (s *stubSource) FindByEmail(ctx context.Context, email string) (users.User, error) {
	if !s.ok || s.user.Email != email {
		return users.User{}, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubSource) GetUser(ctx context.Context, id int64) (users.User, error) {
	if !s.ok || s.user.ID != id {
		return users.User{}, shared.ErrNotFound
	}
	return s.user, nil
}

func newHandler(t *testing.T, source auth.UserSource) *auth.Handler {
	t.Helper()
	issuer := token.NewIssuer(testSecret, 15*time.Minute, 24*time.Hour)
	verifier := token.NewVerifier(testSecret)
	service := auth.NewService(source, issuer, verifier)
	return auth.NewHandler(nil, service)
}

func activeUser(t *testing.T) users.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return users.User{ID: 1, Email: "user@test.local", PasswordHash: string(hashed), IsActive: true}
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func mountAuth(h *auth.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/auth", h.MountRoutes)
	return r
}

func TestLoginSuccess(t *testing.T) {
	handler := newHandler(t, &stubSource{user: activeUser(t), ok: true})

	res := postJSON(t, mountAuth(handler), "/auth/login", `{"email":"user@test.local","password":"correctpass"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Body.String(), "access_token") {
		t.Fatalf("expected token pair in response")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	handler := newHandler(t, &stubSource{user: activeUser(t), ok: true})

	res := postJSON(t, mountAuth(handler), "/auth/login", `{"email":"user@test.local","password":"wrongpass1"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	user := activeUser(t)
	user.IsActive = false
	handler := newHandler(t, &stubSource{user: user, ok: true})

	res := postJSON(t, mountAuth(handler), "/auth/login", `{"email":"user@test.local","password":"correctpass"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	handler := newHandler(t, &stubSource{user: activeUser(t), ok: true})

	pair, err := token.NewIssuer(testSecret, 15*time.Minute, 24*time.Hour).Pair(1)
	if err != nil {
		t.Fatalf("pair: %v", err)
	}

	res := postJSON(t, mountAuth(handler), "/auth/refresh", `{"refresh_token":"`+pair.AccessToken+`"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for access token on refresh endpoint, got %d", res.Code)
	}

	res = postJSON(t, mountAuth(handler), "/auth/refresh", `{"refresh_token":"`+pair.RefreshToken+`"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for refresh token, got %d", res.Code)
	}
}

func TestMeRequiresClaims(t *testing.T) {
	handler := newHandler(t, &stubSource{user: activeUser(t), ok: true})
	r := chi.NewRouter()
	r.Route("/auth", handler.MountProtectedRoutes)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(shared.ContextWithClaims(req.Context(), &shared.Claims{SubjectID: 1}))
	res = httptest.NewRecorder()
	r.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with claims, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "user@test.local") {
		t.Fatalf("expected profile in body, got %s", res.Body.String())
	}
}
