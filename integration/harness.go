package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/trailmate/server/app"
	"github.com/trailmate/server/config"
	"github.com/trailmate/server/testutil"
)

// AdminKey is the X-Admin-Key accepted by servers from NewTestServer.
const AdminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with the full service graph.
type TestServer struct {
	App    *app.App
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>
}

// NewTestServer creates a fully wired server on an in-memory DB and local
// cache. It goes through app.New exactly like the serve command.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)

	cfg := &config.Config{
		Server: config.ServerConfig{AdminKey: AdminKey},
		Security: config.SecurityConfig{
			JWTSecret:      "integration-test-secret",
			JWTTTLH:        72 * time.Hour,
			RateLimitRPS:   1000,
			RateLimitBurst: 2000,
		},
		Quest: config.QuestConfig{
			Store:              app.StoreDB,
			FeedLength:         50,
			LeaderboardRefresh: time.Minute,
		},
	}
	a, err := app.New(cfg, db, c, pubsub, testutil.NopLogger())
	require.NoError(t, err)
	a.StartBackground()

	server := httptest.NewServer(a.Router())
	ts := &TestServer{App: a, Server: server, URL: server.URL}
	t.Cleanup(ts.Close)
	return ts
}

// Close shuts down the HTTP server and background services. Safe to call twice.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.App.Close(context.Background())
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func bearer(token string) map[string]string {
	if token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// PostJSON sends a POST request with JSON body and optional Bearer token.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, bearer(token))
}

// Put sends a PUT request with JSON body and optional Bearer token.
func (ts *TestServer) Put(t *testing.T, path string, body interface{}, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPut, path, body, bearer(token))
}

// Get sends a GET request with optional Bearer token.
func (ts *TestServer) Get(t *testing.T, path string, token string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, bearer(token))
}

// Admin sends an admin request carrying AdminKey.
func (ts *TestServer) Admin(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	return ts.do(t, method, path, body, map[string]string{"X-Admin-Key": AdminKey})
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- Auth helpers ---

// Login logs in (auto-registers on first call) and returns the token and user ID.
func (ts *TestServer) Login(t *testing.T, username, password string) (token, userID string) {
	t.Helper()
	resp := ts.PostJSON(t, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	ReadJSON(t, resp, &result)
	return result.Token, result.UserID
}

// Track posts one activity event and returns the decoded result.
func (ts *TestServer) Track(t *testing.T, token string, event map[string]interface{}) map[string]interface{} {
	t.Helper()
	resp := ts.PostJSON(t, "/api/activity", event, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]interface{}
	ReadJSON(t, resp, &out)
	return out
}

// --- SSE client ---

// Event is one server-sent event.
type Event struct {
	Name string
	Data string
}

// SSEClient reads the /sse stream in a background goroutine.
type SSEClient struct {
	t      *testing.T
	cancel context.CancelFunc
	events chan Event
}

// ConnectSSE opens the event stream with the given JWT token and waits for
// the connected event.
func (ts *TestServer) ConnectSSE(t *testing.T, token string) *SSEClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sse?token="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		require.NoError(t, err, "SSE connect failed")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		t.Fatalf("SSE connect: status %d", resp.StatusCode)
	}

	sc := &SSEClient{t: t, cancel: cancel, events: make(chan Event, 64)}
	go sc.readLoop(resp.Body)
	t.Cleanup(sc.Close)
	sc.Expect("connected", 2*time.Second)
	return sc
}

func (sc *SSEClient) readLoop(body io.ReadCloser) {
	defer body.Close()
	defer close(sc.events)
	var ev Event
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = strings.TrimPrefix(line, "data: ")
		case line == "" && ev.Name != "":
			sc.events <- ev
			ev = Event{}
		}
	}
}

// Expect reads events until one named name arrives and returns it.
func (sc *SSEClient) Expect(name string, timeout time.Duration) Event {
	sc.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-sc.events:
			if !ok {
				sc.t.Fatalf("SSE stream closed while waiting for %q", name)
			}
			if ev.Name == name {
				return ev
			}
		case <-deadline:
			sc.t.Fatalf("timed out waiting for SSE event %q", name)
			return Event{}
		}
	}
}

// Close disconnects the stream.
func (sc *SSEClient) Close() { sc.cancel() }

// --- Misc ---

var idCounter int64

// UniqueID returns a unique string with the given prefix.
func UniqueID(prefix string) string {
	n := atomic.AddInt64(&idCounter, 1)
	return fmt.Sprintf("%s%d", prefix, n)
}
