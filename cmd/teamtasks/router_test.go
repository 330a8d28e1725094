package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fkhayef/teamtasks/internal/config"
	"github.com/fkhayef/teamtasks/internal/realtime"
	"github.com/fkhayef/teamtasks/internal/session"
	"github.com/fkhayef/teamtasks/internal/testutil"
	"github.com/fkhayef/teamtasks/internal/user"
	mw "github.com/fkhayef/teamtasks/pkg/middleware"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := testutil.OpenDB(t)

	users := user.NewRepository(db)
	for _, u := range []*user.User{
		{ID: "admin", Name: "Ada", Email: "ada@example.com", Role: session.RoleAdmin, Status: user.StatusActive},
		{ID: "u1", Name: "Bo", Email: "bo@example.com", Role: session.RoleUser, Status: user.StatusActive},
	} {
		u.CreatedAt = time.Now().UTC()
		if err := users.Create(context.Background(), u); err != nil {
			t.Fatalf("create user %s: %v", u.ID, err)
		}
	}

	cfg := &config.Config{JWTSecret: "test-secret", DevAuth: true}
	handler, drain := newRouter(cfg, db, realtime.NewHub(), zap.NewNop())
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		drain()
	})
	return srv
}

func do(t *testing.T, method, url, userID, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if userID != "" {
		req.Header.Set(mw.TestUserHeader, userID)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := do(t, http.MethodGet, srv.URL+"/health", "", "")
	if resp.StatusCode != http.StatusOK || payload["status"] != "ok" {
		t.Fatalf("GET /health = %d %v", resp.StatusCode, payload)
	}
}

func TestAPIRequiresAuthentication(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/tasks", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("GET /tasks without credentials = %d, want 401", resp.StatusCode)
	}
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := do(t, http.MethodGet, srv.URL+"/api/v1/users/me", "u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /users/me = %d %v", resp.StatusCode, payload)
	}
	data, _ := payload["data"].(map[string]any)
	if data["id"] != "u1" {
		t.Errorf("GET /users/me data = %v", data)
	}
}

func TestBearerTokenAuthenticates(t *testing.T) {
	srv := newTestServer(t)

	token, err := mw.IssueToken([]byte("test-secret"), "admin", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/analytics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /analytics with token = %d, want 200", resp.StatusCode)
	}
}

func TestCreatedTaskIsListedForAssignee(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := do(t, http.MethodPost, srv.URL+"/api/v1/tasks", "admin",
		`{"title": "Restock shelves", "assignees": ["u1"]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /tasks = %d %v", resp.StatusCode, payload)
	}

	resp, payload = do(t, http.MethodGet, srv.URL+"/api/v1/tasks", "u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /tasks = %d %v", resp.StatusCode, payload)
	}
	tasks, _ := payload["data"].([]any)
	if len(tasks) != 1 {
		t.Fatalf("GET /tasks returned %d tasks, want 1", len(tasks))
	}

	resp, payload = do(t, http.MethodGet, srv.URL+"/api/v1/notifications", "u1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /notifications = %d %v", resp.StatusCode, payload)
	}
	if notes, _ := payload["data"].([]any); len(notes) != 1 {
		t.Errorf("assignee has %d notifications, want 1", len(notes))
	}
}

func TestInvitedUserRegistersThenSignsIn(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := do(t, http.MethodPost, srv.URL+"/api/v1/users", "admin", `{"name":"Cy","email":"cy@example.com"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /users = %d %v", resp.StatusCode, payload)
	}
	data, _ := payload["data"].(map[string]any)
	uid, _ := data["id"].(string)
	link, _ := data["registration_link"].(string)
	if uid == "" || !strings.HasPrefix(link, "/register?uid=") {
		t.Fatalf("POST /users data = %v", data)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/users/me", uid, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("GET /users/me as invited user = %d, want 401", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/register", "", `{"uid":"`+uid+`","email":"other@example.com"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("POST /register with wrong email = %d, want 404", resp.StatusCode)
	}

	resp, payload = do(t, http.MethodPost, srv.URL+"/api/v1/register", "", `{"uid":"`+uid+`","email":"cy@example.com"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /register = %d %v", resp.StatusCode, payload)
	}
	data, _ = payload["data"].(map[string]any)
	if data["status"] != "active" {
		t.Errorf("POST /register data = %v", data)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/v1/register", "", `{"uid":"`+uid+`","email":"cy@example.com"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second POST /register = %d, want 409", resp.StatusCode)
	}

	resp, payload = do(t, http.MethodGet, srv.URL+"/api/v1/users/me", uid, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /users/me after registering = %d %v", resp.StatusCode, payload)
	}

	resp, payload = do(t, http.MethodGet, srv.URL+"/api/v1/activity", "admin", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /activity = %d %v", resp.StatusCode, payload)
	}
	entries, _ := payload["data"].([]any)
	found := false
	for _, e := range entries {
		if m, _ := e.(map[string]any); m["action"] == "register-user" && m["subject_id"] == uid {
			found = true
		}
	}
	if !found {
		t.Errorf("GET /activity has no register-user entry for %s: %v", uid, entries)
	}
}
