package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/jukebox/internal/middleware"
	"github.com/hitoshi/jukebox/internal/model"
)

func TestPageHandler_LoginPage_LinksToOAuthFlow(t *testing.T) {
	h := NewPageHandler(&mockAuthService{}, testHandlerConfig())

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()

	h.LoginPage(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "/auth/github/login") {
		t.Error("login page should link to /auth/github/login")
	}
}

func TestPageHandler_Index_ShowsLogin(t *testing.T) {
	h := NewPageHandler(&mockAuthService{}, testHandlerConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), &model.User{
		ID:    "user-1",
		Login: "alice",
	}))
	w := httptest.NewRecorder()

	h.Index(w, req)

	body, _ := io.ReadAll(w.Result().Body)
	if !strings.Contains(string(body), "alice") {
		t.Error("index page should contain the user login")
	}
}

func TestPageHandler_Forbidden_Returns403(t *testing.T) {
	h := NewPageHandler(&mockAuthService{}, testHandlerConfig())

	req := httptest.NewRequest(http.MethodGet, "/403.html", nil)
	w := httptest.NewRecorder()

	h.Forbidden(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestPageHandler_Unauthenticated_ClearsStaleSessionAndBounces(t *testing.T) {
	var deletedSessionID string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			deletedSessionID = sessionID
			return nil
		},
	}
	h := NewPageHandler(svc, testHandlerConfig())

	req := httptest.NewRequest(http.MethodGet, "/unauthenticated", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "stale-session"})
	w := httptest.NewRecorder()

	h.Unauthenticated(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if loc := resp.Header.Get("Location"); loc != "/403.html" {
		t.Errorf("Location = %q, want /403.html", loc)
	}
	if deletedSessionID != "stale-session" {
		t.Errorf("deleted session = %q, want stale-session", deletedSessionID)
	}

	cleared := findCookie(resp, "session_id")
	if cleared == nil || cleared.MaxAge != -1 {
		t.Error("stale session cookie should be cleared")
	}
}

func TestPageHandler_Unauthenticated_RedirectsHomeWithoutSession(t *testing.T) {
	h := NewPageHandler(&mockAuthService{}, testHandlerConfig())

	req := httptest.NewRequest(http.MethodGet, "/unauthenticated", nil)
	w := httptest.NewRecorder()

	h.Unauthenticated(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
}
