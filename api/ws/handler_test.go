package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailmate/server/config"
	"github.com/trailmate/server/game/notify"
	"github.com/trailmate/server/game/quest"
	mw "github.com/trailmate/server/middleware"
	"github.com/trailmate/server/plugin/hook"
	"github.com/trailmate/server/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testSec = config.SecurityConfig{JWTSecret: "ws-secret", JWTTTLH: time.Hour}

type gateway struct {
	url   string
	login func(userID string) string
	svc   *quest.Service
	n     *notify.Notifier
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	c, ps := testutil.SetupTestCache(t)
	logger := testutil.NopLogger()

	catalog := quest.NewCatalog()
	_, err := catalog.Load(quest.DefaultQuests())
	require.NoError(t, err)
	hooks := hook.NewHookCenter()
	svc := quest.NewService(catalog, quest.NewMemoryStore(), hooks, logger)
	n := notify.New(ps, logger)
	n.Attach(hooks)

	router := NewRouter(logger)
	NewActivityHandlers(svc, nil, logger).RegisterHandlers(router)
	h := NewHandler(c, ps, testSec, router, logger)

	r := gin.New()
	r.GET("/ws", h.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &gateway{
		url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		login: func(userID string) string {
			tok, err := mw.GenerateToken(userID, testSec.JWTSecret, testSec.JWTTTLH)
			require.NoError(t, err)
			require.NoError(t, c.Set(context.Background(), mw.SessionKey(tok), userID, time.Hour))
			return tok
		},
		svc: svc,
		n:   n,
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, seq uint64, msgType string, payload interface{}) {
	t.Helper()
	raw, _ := json.Marshal(payload)
	require.NoError(t, conn.WriteJSON(Packet{Seq: seq, Type: msgType, Payload: raw}))
}

// recvType reads until a packet of msgType arrives.
func recvType(t *testing.T, conn *websocket.Conn, msgType string) Packet {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var p Packet
		require.NoError(t, conn.ReadJSON(&p))
		if p.Type == msgType {
			return p
		}
	}
}

func TestServeWS_RejectsWithoutSession(t *testing.T) {
	gw := newGateway(t)
	tok, err := mw.GenerateToken("u1", testSec.JWTSecret, time.Hour)
	require.NoError(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(gw.url+"?token="+tok, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWS_PingPong(t *testing.T) {
	gw := newGateway(t)
	conn := dial(t, gw.url+"?token="+gw.login("u1"))

	send(t, conn, 1, TypePing, nil)
	p := recvType(t, conn, TypePong)
	assert.Equal(t, uint64(1), p.Seq)
}

func TestServeWS_ActivityTracksForSessionUser(t *testing.T) {
	gw := newGateway(t)
	conn := dial(t, gw.url+"?token="+gw.login("u1"))

	send(t, conn, 1, TypeActivity, map[string]interface{}{
		"type":   "event_joined",
		"userId": "intruder",
	})

	// The reply and the pushed quest_update race; collect both.
	got := map[string]Packet{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for len(got) < 2 {
		var p Packet
		require.NoError(t, conn.ReadJSON(&p))
		got[p.Type] = p
	}

	p, ok := got[TypeActivityResult]
	require.True(t, ok)
	assert.Equal(t, uint64(1), p.Seq)
	var res quest.TrackResult
	require.NoError(t, json.Unmarshal(p.Payload, &res))
	assert.Equal(t, "u1", res.UserID)
	require.Len(t, res.Advanced, 1)
	assert.Equal(t, "4", res.Advanced[0].QuestID)

	push, ok := got[notify.EventQuestUpdate]
	require.True(t, ok)
	assert.Zero(t, push.Seq)

	row, found, err := gw.svc.Get(context.Background(), "u1", "4")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, row.Progress)
}

func TestServeWS_BadActivity(t *testing.T) {
	gw := newGateway(t)
	conn := dial(t, gw.url+"?token="+gw.login("u1"))

	send(t, conn, 1, TypeActivity, map[string]string{"type": "levitated"})
	p := recvType(t, conn, TypeError)
	assert.Equal(t, uint64(1), p.Seq)
	assert.Contains(t, string(p.Payload), "unknown activity type")
}

func TestServeWS_StatsAndAnnouncements(t *testing.T) {
	gw := newGateway(t)
	conn := dial(t, gw.url+"?token="+gw.login("u1"))

	_, err := gw.svc.CompleteQuest(context.Background(), "u1", "9")
	require.NoError(t, err)
	recvType(t, conn, notify.EventQuestComplete)

	send(t, conn, 2, TypeStats, nil)
	p := recvType(t, conn, TypeStats)
	var st quest.Stats
	require.NoError(t, json.Unmarshal(p.Payload, &st))
	assert.Equal(t, 150, st.Points)
	assert.Equal(t, 2, st.Level)

	require.NoError(t, gw.n.Announce(context.Background(), "storm warning"))
	ann := recvType(t, conn, notify.EventAnnounce)
	assert.JSONEq(t, `{"message":"storm warning"}`, string(ann.Payload))
}
