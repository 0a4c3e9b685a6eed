package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"forge/api/internal/store"
)

func apiKeyRequest(method, path, key string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-API-Key", key)
	return req
}

func TestGenerateKeyReturnsRawSecretOnce(t *testing.T) {
	svc := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "*", nil)

	req := authedRequest(t, svc, http.MethodPost, "/api/keys", []byte(`{"name":"ci","scopes":["read","write"]}`))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if raw, _ := payload["key"].(string); raw == "" {
		t.Fatal("expected raw key in creation response")
	}
	if payload["prefix"] == "" {
		t.Fatal("expected key prefix")
	}
}

func TestListKeysOmitsSecrets(t *testing.T) {
	svc := newTestService(&fakeStore{})
	svc.keys = &fakeKeys{
		listFn: func(context.Context, string) ([]store.APIKey, error) {
			return []store.APIKey{{ID: "key_1", Name: "ci", Prefix: "fk_abcd1234", KeyHash: "secret-hash", Scopes: []string{"read"}}}, nil
		},
	}
	server := NewHTTPServer(svc, "*", nil)

	req := authedRequest(t, svc, http.MethodGet, "/api/keys", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "secret-hash") {
		t.Fatalf("key hash leaked in listing: %s", rr.Body.String())
	}
}

func TestAPIKeySessionCanReadProject(t *testing.T) {
	svc := newTestService(&fakeStore{})
	svc.keys = &fakeKeys{
		authenticateFn: func(context.Context, string) (store.APIKey, error) {
			return store.APIKey{ID: "key_1", UserID: "usr_1", Scopes: []string{"read"}}, nil
		},
	}
	server := NewHTTPServer(svc, "*", nil)

	req := apiKeyRequest(http.MethodGet, "/api/projects/prj_1/npcs", "fk_rawkey")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestReadOnlyKeyCannotWrite(t *testing.T) {
	svc := newTestService(&fakeStore{})
	svc.keys = &fakeKeys{
		authenticateFn: func(context.Context, string) (store.APIKey, error) {
			return store.APIKey{ID: "key_1", UserID: "usr_1", Scopes: []string{"read"}}, nil
		},
	}
	server := NewHTTPServer(svc, "*", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/projects/prj_1/npcs", strings.NewReader(`{"name":"Mara"}`))
	req.Header.Set("X-API-Key", "fk_rawkey")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["code"] != "INSUFFICIENT_SCOPE" {
		t.Fatalf("expected code INSUFFICIENT_SCOPE, got %v", payload["code"])
	}
}

func TestAPIKeyCannotManageKeys(t *testing.T) {
	svc := newTestService(&fakeStore{})
	svc.keys = &fakeKeys{
		authenticateFn: func(context.Context, string) (store.APIKey, error) {
			return store.APIKey{ID: "key_1", UserID: "usr_1", Scopes: []string{"read", "write"}}, nil
		},
	}
	server := NewHTTPServer(svc, "*", nil)

	req := apiKeyRequest(http.MethodGet, "/api/keys", "fk_rawkey")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestInvalidAPIKeyIsUnauthorized(t *testing.T) {
	svc := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "*", nil)

	req := apiKeyRequest(http.MethodGet, "/api/projects", "fk_bogus")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	assertUnauthorizedCode(t, rr)
}

func TestRevokeKeyEndpoint(t *testing.T) {
	var revokedKey string
	svc := newTestService(&fakeStore{})
	svc.keys = &fakeKeys{
		revokeFn: func(_ context.Context, _, keyID string) error {
			revokedKey = keyID
			return nil
		},
	}
	server := NewHTTPServer(svc, "*", nil)

	req := authedRequest(t, svc, http.MethodDelete, "/api/keys/key_1", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if revokedKey != "key_1" {
		t.Fatalf("expected key_1 revoked, got %q", revokedKey)
	}
}
