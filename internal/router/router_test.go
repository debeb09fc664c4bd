package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/monocle-dev/taskhub/internal/attachments"
	"github.com/monocle-dev/taskhub/internal/auth"
	"github.com/monocle-dev/taskhub/internal/events"
	"github.com/monocle-dev/taskhub/internal/handlers"
	"github.com/monocle-dev/taskhub/internal/middleware"
	"github.com/monocle-dev/taskhub/internal/services"
	"github.com/monocle-dev/taskhub/internal/store"
	"github.com/monocle-dev/taskhub/internal/testutil"
)

type silentNotifier struct{}

func (silentNotifier) SendVerification(context.Context, string, string, string)  {}
func (silentNotifier) SendPasswordReset(context.Context, string, string, string) {}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     []struct {
		Field string `json:"field"`
	} `json:"errors"`
}

type testServer struct {
	t         *testing.T
	engine    *gin.Engine
	uploadDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn := testutil.NewDB(t)
	stores := services.NewStores(conn)

	tokens, err := auth.NewTokenService(auth.TokenConfig{AccessSecret: "access", RefreshSecret: "refresh"})
	if err != nil {
		t.Fatal(err)
	}

	uploadDir := t.TempDir()
	storage, err := attachments.NewLocalStorage(uploadDir, "/uploads")
	if err != nil {
		t.Fatal(err)
	}

	hub := events.NewHub()
	h := handlers.New(handlers.Config{
		DB:         conn,
		Accounts:   services.NewAccountService(stores.Users, tokens, testutil.Hasher, silentNotifier{}, services.AccountConfig{}),
		Projects:   services.NewProjectService(conn, stores, storage, nil, hub),
		Tasks:      services.NewTaskService(conn, stores, storage, hub),
		Hub:        hub,
		AccessTTL:  tokens.AccessTTL(),
		RefreshTTL: tokens.RefreshTTL(),
	})

	engine := NewRouter(Deps{
		Handler:       h,
		Authenticator: middleware.NewAuthenticator(tokens, stores.Users),
		Gate:          middleware.NewProjectGate(store.NewCachedRoles(stores.Memberships, nil), stores.Projects),
		UploadDir:     uploadDir,
		UploadPrefix:  "/uploads",
	})

	return &testServer{t: t, engine: engine, uploadDir: uploadDir}
}

func (s *testServer) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.send(req, token)
}

func (s *testServer) send(req *http.Request, token string) (int, envelope) {
	s.t.Helper()

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		s.t.Fatalf("%s %s: decode %q: %v", req.Method, req.URL.Path, w.Body.String(), err)
	}
	return w.Code, env
}

func (s *testServer) registerAndLogin(username string) string {
	s.t.Helper()

	email := username + "@example.com"
	code, env := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "username": username, "password": "Secret#123",
	})
	if code != http.StatusCreated {
		s.t.Fatalf("register %s: %d %s", username, code, env.Message)
	}

	code, env = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "Secret#123",
	})
	if code != http.StatusOK {
		s.t.Fatalf("login %s: %d %s", username, code, env.Message)
	}

	var session struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(env.Data, &session); err != nil || session.AccessToken == "" {
		s.t.Fatalf("login %s: no access token in %s", username, env.Data)
	}
	return session.AccessToken
}

func (s *testServer) createProject(token, name string) uint {
	s.t.Helper()

	code, env := s.do(http.MethodPost, "/api/v1/projects", token, map[string]string{"name": name, "description": "test project"})
	if code != http.StatusCreated {
		s.t.Fatalf("create project: %d %s", code, env.Message)
	}
	var project struct {
		ID   uint   `json:"id"`
		Role string `json:"role"`
	}
	if err := json.Unmarshal(env.Data, &project); err != nil {
		s.t.Fatal(err)
	}
	if project.Role != "project_admin" {
		s.t.Fatalf("creator role = %q", project.Role)
	}
	return project.ID
}

func TestProjectLifecycleEndToEnd(t *testing.T) {
	s := newTestServer(t)
	alice := s.registerAndLogin("alice")
	bob := s.registerAndLogin("bob")

	projectID := s.createProject(alice, "Apollo")
	projectPath := fmt.Sprintf("/api/v1/projects/%d", projectID)

	code, env := s.do(http.MethodPost, projectPath+"/members", alice, map[string]string{"email": "bob@example.com", "role": "member"})
	if code != http.StatusCreated {
		t.Fatalf("add member: %d %s", code, env.Message)
	}

	if code, _ := s.do(http.MethodGet, projectPath, bob, nil); code != http.StatusOK {
		t.Fatalf("member read: %d", code)
	}

	code, env = s.do(http.MethodDelete, projectPath, bob, nil)
	if code != http.StatusForbidden || env.Success {
		t.Fatalf("member delete: %d %+v", code, env)
	}

	if code, env := s.do(http.MethodDelete, projectPath, alice, nil); code != http.StatusOK {
		t.Fatalf("admin delete: %d %s", code, env.Message)
	}

	if code, _ := s.do(http.MethodGet, projectPath, alice, nil); code != http.StatusNotFound {
		t.Fatalf("get deleted project: %d, want 404", code)
	}
}

func TestRequestsAreValidated(t *testing.T) {
	s := newTestServer(t)
	alice := s.registerAndLogin("alice")

	code, env := s.do(http.MethodPost, "/api/v1/projects", alice, map[string]string{"name": "abc"})
	if code != http.StatusBadRequest || len(env.Errors) == 0 || env.Errors[0].Field != "name" {
		t.Fatalf("short name: %d %+v", code, env)
	}

	if code, _ := s.do(http.MethodGet, "/api/v1/projects/not-a-number", alice, nil); code != http.StatusBadRequest {
		t.Fatalf("malformed id: %d", code)
	}

	if code, _ := s.do(http.MethodGet, "/api/v1/projects", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous list: %d", code)
	}
}

func multipartTask(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("title", "Write the docs")
	_ = w.WriteField("description", "Document every endpoint")

	for name, contentType := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="attachments"; filename="%s"`, name))
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write([]byte("# heading\n"))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func TestCreateTaskWithAttachments(t *testing.T) {
	s := newTestServer(t)
	alice := s.registerAndLogin("alice")
	projectID := s.createProject(alice, "Apollo")
	tasksPath := fmt.Sprintf("/api/v1/projects/%d/tasks", projectID)

	body, contentType := multipartTask(t, map[string]string{"brief.pdf": "application/pdf"})
	req := httptest.NewRequest(http.MethodPost, tasksPath, body)
	req.Header.Set("Content-Type", contentType)
	if code, env := s.send(req, alice); code != http.StatusBadRequest {
		t.Fatalf("pdf upload: %d %s", code, env.Message)
	}
	if entries, _ := os.ReadDir(s.uploadDir); len(entries) != 0 {
		t.Fatalf("rejected upload left %d files", len(entries))
	}

	body, contentType = multipartTask(t, map[string]string{"readme.md": "text/markdown"})
	req = httptest.NewRequest(http.MethodPost, tasksPath, body)
	req.Header.Set("Content-Type", contentType)
	code, env := s.send(req, alice)
	if code != http.StatusCreated {
		t.Fatalf("markdown upload: %d %s", code, env.Message)
	}

	var task struct {
		ID          uint `json:"id"`
		Attachments []struct {
			URL      string `json:"url"`
			MimeType string `json:"mimetype"`
		} `json:"attachments"`
	}
	if err := json.Unmarshal(env.Data, &task); err != nil {
		t.Fatal(err)
	}
	if len(task.Attachments) != 1 || task.Attachments[0].MimeType != "text/markdown" {
		t.Fatalf("attachments = %+v", task.Attachments)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, task.Attachments[0].URL, nil))
	if w.Code != http.StatusOK || w.Body.String() != "# heading\n" {
		t.Fatalf("serve attachment %s: %d %q", task.Attachments[0].URL, w.Code, w.Body.String())
	}

	code, env = s.do(http.MethodGet, fmt.Sprintf("%s/%d", tasksPath, task.ID), alice, nil)
	if code != http.StatusOK {
		t.Fatalf("get task: %d %s", code, env.Message)
	}

	if code, _ := s.do(http.MethodDelete, fmt.Sprintf("%s/%d", tasksPath, task.ID), alice, nil); code != http.StatusOK {
		t.Fatalf("delete task: %d", code)
	}
	if entries, _ := os.ReadDir(s.uploadDir); len(entries) != 0 {
		t.Fatalf("blob left after task delete: %d files", len(entries))
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodGet, "/api/v1/healthcheck", "", nil)
	if code != http.StatusOK || !env.Success {
		t.Fatalf("healthcheck: %d %+v", code, env)
	}
}
