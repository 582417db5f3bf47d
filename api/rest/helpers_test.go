package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/trailmate/server/app"
	"github.com/trailmate/server/config"
	"github.com/trailmate/server/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAdminKey = "admin-key"

var testSec = config.SecurityConfig{
	JWTSecret: "test-secret",
	JWTTTLH:   72 * time.Hour,
}

// newApp wires the full service graph on an in-memory DB and local cache.
func newApp(t *testing.T, adminKey string) (*app.App, *gin.Engine) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	cfg := &config.Config{
		Server:   config.ServerConfig{AdminKey: adminKey},
		Security: testSec,
		Quest:    config.QuestConfig{Store: app.StoreDB, FeedLength: 50},
	}
	a, err := app.New(cfg, db, c, ps, testutil.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a, a.Router()
}

func doJSON(r *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewReader(b)
	} else {
		buf = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodPost, path, body, headers...)
}

// login registers (or logs in) username and returns its bearer header pair
// plus the user ID.
func login(t *testing.T, r *gin.Engine, username string) ([]string, string) {
	t.Helper()
	w := postJSON(r, "/api/auth/login", map[string]string{"username": username, "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return []string{"Authorization", "Bearer " + resp.Token}, resp.UserID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
