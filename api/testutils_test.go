package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// memStore is an in-memory store with the same owner scoping rules as the
// PostgreSQL storage.
type memStore struct {
	mu      sync.Mutex
	users   []*user
	tasks   []*task
	failErr error
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failErr
}

func (s *memStore) insertUser(_ context.Context, u *user) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return errDuplicateUsername
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	cp := *u
	s.users = append(s.users, &cp)
	return nil
}

func (s *memStore) getUserByUsername(_ context.Context, username string) (*user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) insertTask(_ context.Context, t *task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	cp := *t
	s.tasks = append(s.tasks, &cp)
	return nil
}

func (s *memStore) getTasksForUser(_ context.Context, userID uuid.UUID) ([]*task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	tasks := []*task{}
	for _, t := range s.tasks {
		if t.UserID == userID {
			cp := *t
			tasks = append(tasks, &cp)
		}
	}
	return tasks, nil
}

func (s *memStore) update(id, userID uuid.UUID, apply func(*task)) (*task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	for _, t := range s.tasks {
		if t.ID == id && t.UserID == userID {
			apply(t)
			cp := *t
			return &cp, nil
		}
	}
	return nil, errRecordNotFound
}

func (s *memStore) updateTaskStatus(_ context.Context, id, userID uuid.UUID, status string) (*task, error) {
	return s.update(id, userID, func(t *task) { t.Status = status })
}

func (s *memStore) updateTaskPriority(_ context.Context, id, userID uuid.UUID, priority string) (*task, error) {
	return s.update(id, userID, func(t *task) { t.Priority = priority })
}

func (s *memStore) deleteTask(_ context.Context, id, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}
	for i, t := range s.tasks {
		if t.ID == id && t.UserID == userID {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) setFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

type sentMail struct {
	to, template string
	data         any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *fakeNotifier) send(to, templateFile string, data any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{to: to, template: templateFile, data: data})
	return nil
}

const testSecret = "test-signing-secret"

func newTestConfig() config {
	var cfg config
	cfg.env = "testing"
	cfg.db.dsn = "postgres://unused"
	cfg.db.queryTimeout = time.Second
	cfg.jwt.secret = testSecret
	cfg.bcryptCost = bcrypt.MinCost
	return cfg
}

func newTestApplication(t *testing.T) (*application, *memStore) {
	t.Helper()
	s := newMemStore()
	app, err := newApplication(newTestConfig(), newLogger(io.Discard, "error", "text"), s)
	if err != nil {
		t.Fatalf("newApplication: %v", err)
	}
	return app, s
}

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T, app *application) *testServer {
	return &testServer{t: t, handler: composeRoutes(app)}
}

type testResponse struct {
	status int
	header http.Header
	body   []byte
}

func (r testResponse) decode(t *testing.T, dst any) {
	t.Helper()
	if err := json.Unmarshal(r.body, dst); err != nil {
		t.Fatalf("decode %q: %v", r.body, err)
	}
}

func (ts *testServer) do(method, path, token string, body any) testResponse {
	ts.t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = bytes.NewBufferString(b)
		default:
			js, err := json.Marshal(b)
			if err != nil {
				ts.t.Fatal(err)
			}
			rd = bytes.NewReader(js)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return testResponse{status: rr.Code, header: rr.Header(), body: rr.Body.Bytes()}
}

// registerAndLogin creates an account and returns a session token for it.
func (ts *testServer) registerAndLogin(username, password string) string {
	ts.t.Helper()
	creds := map[string]string{"username": username, "password": password}
	res := ts.do(http.MethodPost, "/register", "", creds)
	if res.status != http.StatusOK {
		ts.t.Fatalf("register %s: status %d body %s", username, res.status, res.body)
	}
	res = ts.do(http.MethodPost, "/login", "", creds)
	if res.status != http.StatusOK {
		ts.t.Fatalf("login %s: status %d body %s", username, res.status, res.body)
	}
	var out struct {
		Token string `json:"token"`
	}
	res.decode(ts.t, &out)
	if out.Token == "" {
		ts.t.Fatalf("login %s: empty token", username)
	}
	return out.Token
}

// login returns a session token for an existing account.
func (ts *testServer) login(username, password string) string {
	ts.t.Helper()
	res := ts.do(http.MethodPost, "/login", "", map[string]string{"username": username, "password": password})
	if res.status != http.StatusOK {
		ts.t.Fatalf("login status = %d, body %s", res.status, res.body)
	}
	var out struct {
		Token string `json:"token"`
	}
	res.decode(ts.t, &out)
	return out.Token
}

func (ts *testServer) createTask(token, text, status, priority string) *task {
	ts.t.Helper()
	res := ts.do(http.MethodPost, "/tasks", token, map[string]string{"text": text, "status": status, "priority": priority})
	if res.status != http.StatusCreated {
		ts.t.Fatalf("create task: status %d body %s", res.status, res.body)
	}
	var out struct {
		Task *task `json:"task"`
	}
	res.decode(ts.t, &out)
	return out.Task
}

var errStoreDown = errors.New("connection refused")
