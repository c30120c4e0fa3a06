package http

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestRegisterLoginAndDeleteAccount(t *testing.T) {
	env := startTestServer(t)

	resp := doJSON(env, http.MethodPost, "/api/register", "", `{"username":"alice","password":"password123"}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doJSON(env, http.MethodPost, "/api/register", "", `{"username":"alice","password":"password123"}`)
	if resp.Code != http.StatusConflict {
		t.Errorf("expected status 409 for duplicate, got %d", resp.Code)
	}

	resp = doJSON(env, http.MethodPost, "/api/login", "", `{"username":"alice","password":"wrong-password"}`)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for wrong password, got %d", resp.Code)
	}

	resp = doJSON(env, http.MethodPost, "/api/login", "", `{"username":"alice","password":"password123"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var body AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	var cookie *http.Cookie
	for _, c := range resp.Result().Cookies() {
		if c.Name == CookieAccessToken {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != body.Token || !cookie.HttpOnly {
		t.Fatalf("expected http-only session cookie carrying the token, got %+v", cookie)
	}

	resp = doJSON(env, http.MethodDelete, "/api/me", body.Token, "")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d: %s", resp.Code, resp.Body.String())
	}

	// The token is still signed and unexpired, but its user is gone.
	resp = doJSON(env, http.MethodDelete, "/api/me", body.Token, "")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 after deletion, got %d", resp.Code)
	}
}

func TestCredentialFromRequestOrder(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "/ws/message?token=from-query", nil)
	if got := credentialFromRequest(req); got != "from-query" {
		t.Errorf("expected query token, got %q", got)
	}

	req.Header.Set("Authorization", "Bearer from-header")
	if got := credentialFromRequest(req); got != "from-header" {
		t.Errorf("expected header token, got %q", got)
	}

	req.AddCookie(&http.Cookie{Name: CookieAccessToken, Value: "from-cookie"})
	if got := credentialFromRequest(req); got != "from-cookie" {
		t.Errorf("expected cookie token, got %q", got)
	}
}
