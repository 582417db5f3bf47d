package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/trailmate/server/audit"
	"github.com/trailmate/server/game/leaderboard"
	"github.com/trailmate/server/game/notify"
	"github.com/trailmate/server/game/quest"
	"github.com/trailmate/server/model"
	"github.com/trailmate/server/scheduler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	db       *gorm.DB
	quests   *quest.Service
	board    *leaderboard.Board
	notifier *notify.Notifier
	audit    *audit.Service
	sched    *scheduler.Scheduler
	logger   *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	db *gorm.DB,
	quests *quest.Service,
	board *leaderboard.Board,
	notifier *notify.Notifier,
	auditSvc *audit.Service,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		db:       db,
		quests:   quests,
		board:    board,
		notifier: notifier,
		audit:    auditSvc,
		sched:    sched,
		logger:   logger,
	}
}

// Metrics returns server health metrics.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	var users, completed int64
	if err := h.db.WithContext(c.Request.Context()).Model(&model.User{}).Count(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	h.db.WithContext(c.Request.Context()).Model(&model.UserQuestProgress{}).
		Where("completed = ?", true).Count(&completed)

	resp := gin.H{
		"users":           users,
		"quests":          h.quests.Catalog().Len(),
		"completions":     completed,
		"scheduler_tasks": h.sched.ListTickers(),
	}
	if h.audit != nil {
		resp["audit_dropped"] = h.audit.Dropped()
	}
	c.JSON(http.StatusOK, resp)
}

// ResetUser wipes one user's quest progress and points.
// POST /api/admin/users/:id/reset
func (h *AdminHandler) ResetUser(c *gin.Context) {
	userID := c.Param("id")
	if err := h.quests.Reset(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if h.audit != nil {
		h.audit.Log(audit.Entry{UserID: userID, Action: audit.ActionAdminReset, IP: c.ClientIP()})
	}
	h.logger.Info("admin reset user quests", zap.String("user_id", userID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ExportUser dumps one user's quest ledger and recent activity journal.
// GET /api/admin/users/:id/export?limit=100
func (h *AdminHandler) ExportUser(c *gin.Context) {
	userID := c.Param("id")
	ledger, err := h.quests.Export(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	resp := gin.H{"ledger": ledger}
	if h.audit != nil {
		limit, _ := strconv.Atoi(c.Query("limit"))
		logs, err := h.audit.Query(c.Request.Context(), userID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		resp["activity"] = logs
	}
	c.JSON(http.StatusOK, resp)
}

// CompleteForUser forces a quest to completion on behalf of a user.
// POST /api/admin/users/:id/quests/:qid/complete
func (h *AdminHandler) CompleteForUser(c *gin.Context) {
	userID, questID := c.Param("id"), c.Param("qid")
	if _, ok := h.quests.Catalog().Get(questID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
		return
	}
	done, err := h.quests.CompleteQuest(c.Request.Context(), userID, questID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if h.audit != nil {
		e := audit.Entry{UserID: userID, Action: audit.ActionAdminComplete, QuestID: questID, Result: done, IP: c.ClientIP()}
		if done != nil {
			e.PointsAwarded = done.Points
		}
		h.audit.Log(e)
	}
	c.JSON(http.StatusOK, gin.H{"completed": done != nil, "completion": done})
}

// RefreshLeaderboard rebuilds the cached leaderboard from the database.
// POST /api/admin/leaderboard/refresh
func (h *AdminHandler) RefreshLeaderboard(c *gin.Context) {
	n, err := h.board.Refresh(c.Request.Context())
	if err != nil {
		h.logger.Error("leaderboard refresh failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "entries": n})
}

// ListSchedulerTasks returns every registered background task with run stats.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.Tasks()})
}

// Announce broadcasts a message to every SSE subscriber.
// POST /api/admin/announce
func (h *AdminHandler) Announce(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required,max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.notifier.Announce(c.Request.Context(), req.Message); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "publish failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// If adminKey is empty all admin endpoints answer 503.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		if c.GetHeader("X-Admin-Key") != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
