package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailmate/server/config"
	"github.com/trailmate/server/game/notify"
	mw "github.com/trailmate/server/middleware"
	"github.com/trailmate/server/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testSec = config.SecurityConfig{JWTSecret: "sse-secret", JWTTTLH: time.Hour}

func setup(t *testing.T) (*httptest.Server, *notify.Notifier, func(userID string) string) {
	t.Helper()
	c, ps := testutil.SetupTestCache(t)
	h := NewHandler(ps, c, testSec, testutil.NopLogger())
	r := gin.New()
	r.GET("/sse", h.ServeSSE)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	login := func(userID string) string {
		tok, err := mw.GenerateToken(userID, testSec.JWTSecret, testSec.JWTTTLH)
		require.NoError(t, err)
		require.NoError(t, c.Set(context.Background(), mw.SessionKey(tok), userID, time.Hour))
		return tok
	}
	return srv, notify.New(ps, testutil.NopLogger()), login
}

func TestServeSSE_MissingToken(t *testing.T) {
	srv, _, _ := setup(t)
	resp, err := http.Get(srv.URL + "/sse")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeSSE_NoSession(t *testing.T) {
	srv, _, _ := setup(t)
	tok, err := mw.GenerateToken("u-1", testSec.JWTSecret, time.Hour)
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/sse?token=" + tok)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeSSE_StreamsOwnEventsAndAnnouncements(t *testing.T) {
	srv, n, login := setup(t)
	tok := login("u-1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse?token="+tok, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if l := lines.Text(); strings.HasPrefix(l, "event: ") {
				return strings.TrimPrefix(l, "event: ")
			}
		}
		return ""
	}
	require.Equal(t, "connected", next())

	// Another user's event must not be delivered.
	require.NoError(t, n.Publish(ctx, "u-2", notify.EventQuestUpdate, map[string]int{"progress": 1}))
	require.NoError(t, n.Publish(ctx, "u-1", notify.EventQuestComplete, map[string]string{"questId": "1"}))
	assert.Equal(t, notify.EventQuestComplete, next())

	require.NoError(t, n.Announce(ctx, "hello"))
	assert.Equal(t, notify.EventAnnounce, next())
}
