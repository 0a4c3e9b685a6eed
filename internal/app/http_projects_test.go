package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"forge/api/internal/store"
)

func authedRequest(t *testing.T, svc *Service, method, path string, body []byte) *http.Request {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewBuffer(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+session.Token)
	return req
}

func TestCreateProjectMakesCallerOwner(t *testing.T) {
	var inserted store.Project
	fs := &fakeStore{
		insertProjectFn: func(_ context.Context, project store.Project) error {
			inserted = project
			return nil
		},
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return inserted, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*", nil)

	req := authedRequest(t, svc, http.MethodPost, "/api/projects", []byte(`{"name":"  Emberfall  ","description":"A dark fantasy RPG"}`))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	if inserted.Name != "Emberfall" {
		t.Fatalf("expected trimmed name Emberfall, got %q", inserted.Name)
	}
	if inserted.OwnerID != "usr_1" {
		t.Fatalf("expected owner usr_1, got %q", inserted.OwnerID)
	}
	if inserted.Status != store.ProjectStatusActive {
		t.Fatalf("expected new project active, got %q", inserted.Status)
	}
}

func TestCreateProjectRequiresName(t *testing.T) {
	svc := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "*", nil)

	req := authedRequest(t, svc, http.MethodPost, "/api/projects", []byte(`{"name":"   "}`))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGetProjectIncludesMembers(t *testing.T) {
	fs := &fakeStore{
		listProjectMembersFn: func(context.Context, string) ([]store.ProjectMember, error) {
			return []store.ProjectMember{
				{UserID: "usr_1", DisplayName: "Avery", Role: "owner"},
				{UserID: "usr_2", DisplayName: "Sam", Role: "editor"},
			}, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*", nil)

	req := authedRequest(t, svc, http.MethodGet, "/api/projects/prj_1", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	members, _ := payload["members"].([]any)
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
}

func TestNonMemberIsForbidden(t *testing.T) {
	fs := &fakeStore{
		getProjectRoleFn: func(context.Context, string, string) (string, error) {
			return "", nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*", nil)

	req := authedRequest(t, svc, http.MethodGet, "/api/projects/prj_1", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestViewerCannotWrite(t *testing.T) {
	fs := &fakeStore{
		getProjectRoleFn: func(context.Context, string, string) (string, error) {
			return "viewer", nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*", nil)

	req := authedRequest(t, svc, http.MethodPut, "/api/projects/prj_1", []byte(`{"name":"Renamed"}`))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestArchivedProjectRejectsWrites(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Name: "Old World", Status: store.ProjectStatusArchived, OwnerID: "usr_1"}, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*", nil)

	req := authedRequest(t, svc, http.MethodPost, "/api/projects/prj_1/npcs", []byte(`{"name":"Mara"}`))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload["code"] != "PROJECT_ARCHIVED" {
		t.Fatalf("expected code PROJECT_ARCHIVED, got %v", payload["code"])
	}
}

func TestArchivedProjectStillReadable(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Name: "Old World", Status: store.ProjectStatusArchived, OwnerID: "usr_1"}, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*", nil)

	req := authedRequest(t, svc, http.MethodGet, "/api/projects/prj_1/npcs", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAddMemberRejectsOwnerRole(t *testing.T) {
	svc := newTestService(&fakeStore{})
	server := NewHTTPServer(svc, "*", nil)

	req := authedRequest(t, svc, http.MethodPost, "/api/projects/prj_1/members", []byte(`{"userId":"usr_2","role":"owner"}`))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRemoveMemberCannotRemoveOwner(t *testing.T) {
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, projectID string) (store.Project, error) {
			return store.Project{ID: projectID, Name: "Test", Status: store.ProjectStatusActive, OwnerID: "usr_1"}, nil
		},
	}
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*", nil)

	req := authedRequest(t, svc, http.MethodDelete, "/api/projects/prj_1/members/usr_1", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestDeleteProjectCleansUpObjectsAndIndex(t *testing.T) {
	deleted := false
	fs := &fakeStore{
		listAssetsFn: func(context.Context, string, string, string) ([]store.Asset, error) {
			return []store.Asset{{ID: "ast_1", ObjectKey: "assets/ast_1/sword.glb"}}, nil
		},
		listNPCsFn: func(context.Context, string) ([]store.NPC, error) {
			return []store.NPC{{ID: "npc_1"}}, nil
		},
		deleteProjectFn: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}
	idx := &fakeSearch{}
	world := &fakeWorld{}
	svc := newTestServiceWith(fs, idx, world)
	server := NewHTTPServer(svc, "*", nil)

	req := authedRequest(t, svc, http.MethodDelete, "/api/projects/prj_1", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if !deleted {
		t.Fatal("expected project deleted")
	}
	got := idx.deletedIDs()
	if len(got) != 2 {
		t.Fatalf("expected 2 index deletions, got %v", got)
	}
	if inv := world.invalidatedIDs(); len(inv) != 1 || inv[0] != "prj_1" {
		t.Fatalf("expected knowledge cache invalidated for prj_1, got %v", inv)
	}
}
