package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetrack-backend/internal/auth"
	"timetrack-backend/internal/service"
	"timetrack-backend/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := storage.OpenFileStore(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)

	s := &Server{
		users:    service.NewUserService(store),
		projects: service.NewProjectService(store),
		todos:    service.NewTodoService(store),
		sessions: auth.NewSessions("test-secret"),
		store:    store,
	}
	ts := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(ts.Close)
	return ts
}

// newClient returns an HTTP client with its own cookie jar that does not
// follow redirects, so each client acts as one browser session.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func signUp(t *testing.T, client *http.Client, baseURL, email, password string) {
	t.Helper()
	creds := map[string]string{"email": email, "password": password}
	resp, _ := doJSON(t, client, http.MethodPost, baseURL+"/api/register", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, client, http.MethodPost, baseURL+"/api/login", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	creds := map[string]string{"email": "a@x.com", "password": "pw1"}

	// Anonymous identity.
	resp, body := doJSON(t, client, http.MethodGet, ts.URL+"/api/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]any
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, false, me["ok"])

	resp, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/register", creds)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Duplicate registration conflicts.
	resp, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/register", creds)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Wrong password.
	resp, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/login", map[string]string{"email": "a@x.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/login", creds)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, client, http.MethodGet, ts.URL+"/api/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, true, me["ok"])

	resp, _ = doJSON(t, client, http.MethodGet, ts.URL+"/logout", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, body = doJSON(t, client, http.MethodGet, ts.URL+"/api/me", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, false, me["ok"])
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	resp, _ := doJSON(t, client, http.MethodPost, ts.URL+"/api/register", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Strict decoding rejects unknown fields.
	resp, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/register", map[string]string{"email": "a@x.com", "password": "pw1", "admin": "yes"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginEmptyBody(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	// No body reads as empty credentials: invalid login, not a malformed
	// request.
	resp, _ := doJSON(t, client, http.MethodPost, ts.URL+"/api/login", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAnonymousAccess(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	// List endpoints answer 401 with an empty collection body.
	resp, body := doJSON(t, client, http.MethodGet, ts.URL+"/api/todos", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, body = doJSON(t, client, http.MethodGet, ts.URL+"/api/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/todos", map[string]string{"item": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Total time never errors for anonymous callers.
	resp, body = doJSON(t, client, http.MethodGet, ts.URL+"/api/total-time", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"total_seconds": 0, "formatted": "00:00:00"}`, string(body))
}

func TestTodoLifecycle(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	signUp(t, client, ts.URL, "a@x.com", "pw1")

	resp, body := doJSON(t, client, http.MethodPost, ts.URL+"/api/todos", map[string]any{"item": "Write spec"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var todo struct {
		ID           int64  `json:"id"`
		Item         string `json:"item"`
		Status       bool   `json:"status"`
		TimeSpent    int64  `json:"timeSpent"`
		TimerRunning bool   `json:"timerRunning"`
	}
	require.NoError(t, json.Unmarshal(body, &todo))
	assert.Equal(t, "Write spec", todo.Item)
	require.NotZero(t, todo.ID)
	idPath := ts.URL + "/api/todos/" + strconv.FormatInt(todo.ID, 10)

	// Missing item text.
	resp, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/todos", map[string]any{"item": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Status must be a real boolean; truthy numbers are rejected by strict
	// decoding.
	resp, _ = doJSON(t, client, http.MethodPut, idPath, map[string]any{"status": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Partial update.
	resp, body = doJSON(t, client, http.MethodPut, idPath, map[string]any{"status": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &todo))
	assert.True(t, todo.Status)
	assert.Equal(t, "Write spec", todo.Item)

	// Timer transitions.
	resp, body = doJSON(t, client, http.MethodPost, idPath+"/action", map[string]string{"action": "start"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &todo))
	assert.True(t, todo.TimerRunning)

	resp, body = doJSON(t, client, http.MethodPost, idPath+"/action", map[string]string{"action": "pause"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &todo))
	assert.False(t, todo.TimerRunning)

	resp, _ = doJSON(t, client, http.MethodPost, idPath+"/action", map[string]string{"action": "frobnicate"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Delete, then the id is gone.
	resp, body = doJSON(t, client, http.MethodDelete, idPath, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status": "deleted"}`, string(body))

	resp, _ = doJSON(t, client, http.MethodDelete, idPath, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, client, http.MethodPut, ts.URL+"/api/todos/abc", map[string]any{"status": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTodoOwnershipOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	alice := newClient(t)
	signUp(t, alice, ts.URL, "alice@x.com", "pw1")
	mallory := newClient(t)
	signUp(t, mallory, ts.URL, "mallory@x.com", "pw2")

	resp, body := doJSON(t, alice, http.MethodPost, ts.URL+"/api/todos", map[string]any{"item": "secret"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var todo struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &todo))
	idPath := ts.URL + "/api/todos/" + strconv.FormatInt(todo.ID, 10)

	resp, body = doJSON(t, mallory, http.MethodGet, ts.URL+"/api/todos", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, _ = doJSON(t, mallory, http.MethodPut, idPath, map[string]any{"status": true})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, mallory, http.MethodDelete, idPath, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, mallory, http.MethodPost, idPath+"/action", map[string]string{"action": "start"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestProjectEndpoints(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	signUp(t, client, ts.URL, "a@x.com", "pw1")

	resp, _ := doJSON(t, client, http.MethodPost, ts.URL+"/api/projects", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, client, http.MethodPost, ts.URL+"/api/projects", map[string]string{"name": "Work"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var project struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(body, &project))
	assert.Equal(t, "Work", project.Name)
	require.NotEmpty(t, project.ID)

	// File a todo under the project, then delete the project and watch the
	// cascade.
	resp, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/todos", map[string]any{"item": "report", "project_id": project.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, client, http.MethodDelete, ts.URL+"/api/projects/no-such", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, client, http.MethodDelete, ts.URL+"/api/projects/"+project.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status": "deleted"}`, string(body))

	resp, body = doJSON(t, client, http.MethodGet, ts.URL+"/api/todos", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, body = doJSON(t, client, http.MethodGet, ts.URL+"/api/projects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestTotalTimeEndpoint(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	signUp(t, client, ts.URL, "a@x.com", "pw1")

	resp, body := doJSON(t, client, http.MethodGet, ts.URL+"/api/total-time", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var total struct {
		TotalSeconds int64  `json:"total_seconds"`
		Formatted    string `json:"formatted"`
	}
	require.NoError(t, json.Unmarshal(body, &total))
	assert.Zero(t, total.TotalSeconds)
	assert.Equal(t, "00:00:00", total.Formatted)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)

	resp, body := doJSON(t, client, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]string
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "up", health["status"])
}

func TestStorageUnavailableAnswers503(t *testing.T) {
	dataFile := filepath.Join(t.TempDir(), "data.json")
	store, err := storage.OpenFileStore(dataFile)
	require.NoError(t, err)

	s := &Server{
		users:    service.NewUserService(store),
		projects: service.NewProjectService(store),
		todos:    service.NewTodoService(store),
		sessions: auth.NewSessions("test-secret"),
		store:    store,
	}
	ts := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(ts.Close)

	client := newClient(t)
	signUp(t, client, ts.URL, "a@x.com", "pw1")

	// Yank the data file: every store access now fails and must surface as
	// service-unavailable rather than a generic 500.
	require.NoError(t, os.Remove(dataFile))

	resp, _ := doJSON(t, client, http.MethodGet, ts.URL+"/api/todos", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = doJSON(t, client, http.MethodPost, ts.URL+"/api/todos", map[string]any{"item": "task"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, body := doJSON(t, client, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var health map[string]string
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "down", health["status"])
}

func TestBadJSONBody(t *testing.T) {
	ts := newTestServer(t)
	client := newClient(t)
	signUp(t, client, ts.URL, "a@x.com", "pw1")

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/todos", bytes.NewReader([]byte(`{"item":`)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Empty body.
	resp2, _ := doJSON(t, client, http.MethodPost, ts.URL+"/api/todos", nil)
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}
