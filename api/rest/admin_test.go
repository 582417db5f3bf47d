package rest_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailmate/server/app"
	"github.com/trailmate/server/game/notify"
	"github.com/trailmate/server/scheduler"
)

func adminGet(r *gin.Engine, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func adminPost(r *gin.Engine, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminAuth_NoKeyConfigured(t *testing.T) {
	_, r := newApp(t, "")
	w := adminGet(r, "/api/admin/metrics", "anything")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminAuth_WrongKey(t *testing.T) {
	_, r := newApp(t, testAdminKey)
	assert.Equal(t, http.StatusUnauthorized, adminGet(r, "/api/admin/metrics", "").Code)
	assert.Equal(t, http.StatusUnauthorized, adminGet(r, "/api/admin/metrics", "nope").Code)
}

func TestAdmin_Metrics(t *testing.T) {
	_, r := newApp(t, testAdminKey)
	auth, _ := login(t, r, "metric")
	require.Equal(t, http.StatusOK, postJSON(r, "/api/quests/4/complete", nil, auth...).Code)

	w := adminGet(r, "/api/admin/metrics", testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.EqualValues(t, 1, resp["users"])
	assert.EqualValues(t, 9, resp["quests"])
	assert.EqualValues(t, 1, resp["completions"])
}

func TestAdmin_CompleteResetExport(t *testing.T) {
	_, r := newApp(t, testAdminKey)
	auth, userID := login(t, r, "managed")

	w := adminPost(r, "/api/admin/users/"+userID+"/quests/9/complete", testAdminKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	var done completeResp
	decode(t, w, &done)
	assert.True(t, done.Completed)
	assert.Equal(t, 150, done.Completion.Points)

	w = adminPost(r, "/api/admin/users/"+userID+"/quests/nope/complete", testAdminKey, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = adminGet(r, "/api/admin/users/"+userID+"/export", testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	var export struct {
		Ledger struct {
			UserID string                            `json:"userId"`
			Points int                               `json:"points"`
			Quests map[string]map[string]interface{} `json:"quests"`
		} `json:"ledger"`
	}
	decode(t, w, &export)
	assert.Equal(t, userID, export.Ledger.UserID)
	assert.Equal(t, 150, export.Ledger.Points)
	assert.Len(t, export.Ledger.Quests, 9)
	assert.Equal(t, true, export.Ledger.Quests["9"]["completed"])

	require.Equal(t, http.StatusOK, adminPost(r, "/api/admin/users/"+userID+"/reset", testAdminKey, "").Code)

	w = doJSON(r, http.MethodGet, "/api/me/stats", nil, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	var st map[string]interface{}
	decode(t, w, &st)
	assert.EqualValues(t, 0, st["points"])
}

func TestAdmin_RefreshLeaderboard(t *testing.T) {
	a, r := newApp(t, testAdminKey)
	auth, userID := login(t, r, "ranked")
	require.Equal(t, http.StatusOK, postJSON(r, "/api/quests/4/complete", nil, auth...).Code)

	// Drop the cached entry; refresh restores it from the DB.
	require.NoError(t, a.Board.Remove(t.Context(), userID))

	w := adminPost(r, "/api/admin/leaderboard/refresh", testAdminKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.EqualValues(t, 1, resp["entries"])

	top, err := a.Board.Top(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, userID, top[0].UserID)
}

func TestAdmin_SchedulerTasks(t *testing.T) {
	a, r := newApp(t, testAdminKey)
	a.Config.Quest.LeaderboardRefresh = time.Hour
	a.StartBackground()

	w := adminGet(r, "/api/admin/scheduler", testAdminKey)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Tasks []scheduler.TaskInfo `json:"tasks"`
	}
	decode(t, w, &resp)

	names := make([]string, 0, len(resp.Tasks))
	for _, ti := range resp.Tasks {
		names = append(names, ti.Name)
	}
	assert.ElementsMatch(t, []string{app.TaskLeaderboardRefresh, app.TaskLeaderboardWarmup}, names)
}

func TestAdmin_Announce(t *testing.T) {
	a, r := newApp(t, testAdminKey)

	msgs, unsub, err := a.PubSub.Subscribe(t.Context(), notify.AnnounceChannel)
	require.NoError(t, err)
	defer unsub()

	assert.Equal(t, http.StatusBadRequest, adminPost(r, "/api/admin/announce", testAdminKey, `{}`).Code)
	require.Equal(t, http.StatusOK, adminPost(r, "/api/admin/announce", testAdminKey, `{"message":"trail closed"}`).Code)

	select {
	case msg := <-msgs:
		env, err := notify.Decode(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, notify.EventAnnounce, env.Event)
		assert.JSONEq(t, `{"message":"trail closed"}`, string(env.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("announcement not published")
	}
}
