package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apirest "github.com/trailmate/server/api/rest"
	"github.com/trailmate/server/api/sse"
	"github.com/trailmate/server/api/ws"
	mw "github.com/trailmate/server/middleware"
	"golang.org/x/time/rate"
)

// Router builds the gin engine with every route mounted.
func (a *App) Router() *gin.Engine {
	sec := a.Config.Security
	logger := a.logger

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	if sec.RateLimitRPS > 0 {
		r.Use(mw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "quests": a.Quests.Catalog().Len()})
	})

	authH := apirest.NewAuthHandler(a.DB, a.Cache, sec, a.Quests, logger)
	questH := apirest.NewQuestHandler(a.Quests, a.Audit, logger)
	activityH := apirest.NewActivityHandler(a.Quests, a.Feed, a.Audit, logger)
	boardH := apirest.NewLeaderboardHandler(a.Board, logger)
	adminH := apirest.NewAdminHandler(a.DB, a.Quests, a.Board, a.Notifier, a.Audit, a.Sched, logger)
	auth := mw.Auth(sec, a.Cache)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", auth, authH.Logout)
		authG.POST("/refresh", auth, authH.Refresh)

		questG := api.Group("/quests")
		questG.Use(auth)
		questG.GET("", questH.List)
		questG.POST("/reset", questH.Reset)
		questG.GET("/:id", questH.Get)
		questG.POST("/:id/complete", questH.Complete)
		questG.PUT("/:id/progress", questH.SetProgress)

		api.GET("/me/stats", auth, questH.Stats)

		actG := api.Group("/activity")
		actG.Use(auth)
		if sec.RateLimitRPS > 0 {
			actG.Use(mw.RateLimitBy(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst, mw.ByUser))
		}
		actG.POST("", activityH.Track)
		actG.POST("/checkin", activityH.Checkin)
		actG.GET("/recent", activityH.Recent)

		api.GET("/leaderboard", boardH.Top)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(sec.AdminIPs), apirest.AdminAuth(a.Config.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/users/:id/reset", adminH.ResetUser)
		adminG.GET("/users/:id/export", adminH.ExportUser)
		adminG.POST("/users/:id/quests/:qid/complete", adminH.CompleteForUser)
		adminG.POST("/leaderboard/refresh", adminH.RefreshLeaderboard)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.POST("/announce", adminH.Announce)
	}

	sseH := sse.NewHandler(a.PubSub, a.Cache, sec, logger)
	r.GET("/sse", sseH.ServeSSE)

	wsRouter := ws.NewRouter(logger)
	ws.NewActivityHandlers(a.Quests, a.Audit, logger).RegisterHandlers(wsRouter)
	wsH := ws.NewHandler(a.Cache, a.PubSub, sec, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	return r
}
