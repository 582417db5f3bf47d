// Package sse streams quest progress and announcements to browsers.
package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/trailmate/server/cache"
	"github.com/trailmate/server/config"
	"github.com/trailmate/server/game/notify"
	mw "github.com/trailmate/server/middleware"
	"go.uber.org/zap"
)

const defaultKeepalive = 30 * time.Second

// Handler handles the SSE endpoint.
type Handler struct {
	pubsub    cache.PubSub
	sec       config.SecurityConfig
	c         cache.Cache
	logger    *zap.Logger
	keepalive time.Duration
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, c: c, sec: sec, logger: logger, keepalive: defaultKeepalive}
}

// ServeSSE handles GET /sse?token=<jwt>.
// It streams the caller's quest_update and quest_complete events plus
// system announcements until the client disconnects.
func (h *Handler) ServeSSE(c *gin.Context) {
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
	exists, err := h.c.Exists(ctx, mw.SessionKey(tokenStr))
	cancel()
	if err != nil || !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, notify.UserChannel(claims.UserID), notify.AnnounceChannel)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.String("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe failed"})
		return
	}
	defer unsub()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"userId\":%q}\n\n", claims.UserID)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			env, err := notify.Decode(msg.Payload)
			if err != nil || env.Event == "" {
				h.logger.Warn("sse dropped malformed message", zap.String("channel", msg.Channel))
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", env.Event, env.Data)
			c.Writer.Flush()

		case <-ticker.C:
			// Keeps idle proxies from closing the stream.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
