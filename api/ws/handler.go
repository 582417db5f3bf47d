// Package ws is the WebSocket activity gateway: clients stream activity
// events in and receive quest updates and announcements out.
package ws

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/trailmate/server/cache"
	"github.com/trailmate/server/config"
	"github.com/trailmate/server/game/notify"
	mw "github.com/trailmate/server/middleware"
	"go.uber.org/zap"
)

// Handler is the Gin handler for GET /ws.
type Handler struct {
	cache    cache.Cache
	pubsub   cache.PubSub
	sec      config.SecurityConfig
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler.
// sec.AllowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
func NewHandler(c cache.Cache, ps cache.PubSub, sec config.SecurityConfig, router *Router, logger *zap.Logger) *Handler {
	h := &Handler{
		cache:  c,
		pubsub: ps,
		sec:    sec,
		router: router,
		logger: logger,
	}
	allowed := sec.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return len(allowed) == 0 || slices.Contains(allowed, r.Header.Get("Origin"))
		},
	}
	return h
}

// ServeWS handles GET /ws?token=<jwt>.
func (h *Handler) ServeWS(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := mw.ParseToken(tokenStr, h.sec.JWTSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	exists, err := h.cache.Exists(ctx, mw.SessionKey(tokenStr))
	cancel()
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	sessCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Subscribe before upgrading so nothing published after the handshake is missed.
	msgs, unsub, err := h.pubsub.Subscribe(sessCtx, notify.UserChannel(claims.UserID), notify.AnnounceChannel)
	if err != nil {
		h.logger.Error("ws subscribe failed", zap.String("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	defer unsub()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	sess := NewSession(claims.UserID, conn, h.logger)
	go h.forward(sess, msgs)

	h.logger.Info("ws connected", zap.String("user_id", sess.UserID))
	h.readPump(sessCtx, sess)
}

// forward relays pub/sub envelopes to the socket as server-initiated
// packets (seq 0) typed by event name.
func (h *Handler) forward(s *Session, msgs <-chan *cache.Message) {
	for msg := range msgs {
		env, err := notify.Decode(msg.Payload)
		if err != nil || env.Event == "" {
			continue
		}
		s.SendPacket(&Packet{Type: env.Event, Payload: env.Data})
	}
}

// readPump reads messages and dispatches them until the connection closes.
func (h *Handler) readPump(ctx context.Context, s *Session) {
	defer func() {
		s.Close()
		h.logger.Info("ws disconnected", zap.String("user_id", s.UserID))
	}()

	s.setReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.setReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close", zap.String("user_id", s.UserID), zap.Error(err))
			}
			return
		}
		s.setReadDeadline()
		h.router.Dispatch(ctx, s, raw)
	}
}
