package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trailmate/server/audit"
	"github.com/trailmate/server/game/quest"
	mw "github.com/trailmate/server/middleware"
	"go.uber.org/zap"
)

// QuestHandler handles quest REST endpoints for the authenticated user.
type QuestHandler struct {
	svc    *quest.Service
	audit  *audit.Service
	logger *zap.Logger
}

// NewQuestHandler creates a QuestHandler. auditSvc may be nil.
func NewQuestHandler(svc *quest.Service, auditSvc *audit.Service, logger *zap.Logger) *QuestHandler {
	return &QuestHandler{svc: svc, audit: auditSvc, logger: logger}
}

func (h *QuestHandler) journal(c *gin.Context, e audit.Entry) {
	if h.audit == nil {
		return
	}
	e.TraceID = mw.GetTraceID(c)
	e.IP = c.ClientIP()
	h.audit.Log(e)
}

// List returns every quest with the caller's progress, in catalog order.
// GET /api/quests
func (h *QuestHandler) List(c *gin.Context) {
	list, err := h.svc.ListForUser(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		h.logger.Error("list quests failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": list})
}

// Get returns one quest with the caller's progress.
// GET /api/quests/:id
func (h *QuestHandler) Get(c *gin.Context) {
	userID := mw.GetUserID(c)
	def, ok := h.svc.Catalog().Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
		return
	}
	row, found, err := h.svc.Get(c.Request.Context(), userID, def.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	status := quest.QuestStatus{Quest: def, Progress: row}
	if !found {
		status.Progress = zeroRow(userID, def.ID)
	}
	c.JSON(http.StatusOK, status)
}

// Complete forces a quest to completion.
// POST /api/quests/:id/complete
func (h *QuestHandler) Complete(c *gin.Context) {
	h.complete(c, mw.GetUserID(c), c.Param("id"), audit.ActionComplete)
}

func (h *QuestHandler) complete(c *gin.Context, userID, questID, action string) {
	if _, ok := h.svc.Catalog().Get(questID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
		return
	}
	done, err := h.svc.CompleteQuest(c.Request.Context(), userID, questID)
	if err != nil {
		h.logger.Error("complete quest failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	e := audit.Entry{UserID: userID, Action: action, QuestID: questID, Result: done}
	if done != nil {
		e.PointsAwarded = done.Points
	}
	h.journal(c, e)

	row, _, err := h.svc.Get(c.Request.Context(), userID, questID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"completed":  done != nil,
		"completion": done,
		"progress":   row,
	})
}

type setProgressRequest struct {
	Progress *int `json:"progress" binding:"required"`
}

// SetProgress sets a quest's progress, clamped to [0, total].
// PUT /api/quests/:id/progress
func (h *QuestHandler) SetProgress(c *gin.Context) {
	var req setProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := mw.GetUserID(c)
	questID := c.Param("id")
	row, err := h.svc.SetProgress(c.Request.Context(), userID, questID, *req.Progress)
	if err != nil {
		h.logger.Error("set progress failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if row == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
		return
	}
	h.journal(c, audit.Entry{UserID: userID, Action: audit.ActionSetProgress, QuestID: questID, Metadata: req, Result: row})
	c.JSON(http.StatusOK, gin.H{"progress": row})
}

// Reset wipes the caller's quest progress and points.
// POST /api/quests/reset
func (h *QuestHandler) Reset(c *gin.Context) {
	userID := mw.GetUserID(c)
	if err := h.svc.Reset(c.Request.Context(), userID); err != nil {
		h.logger.Error("reset failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	h.journal(c, audit.Entry{UserID: userID, Action: audit.ActionReset})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Stats returns points, level and completion counts.
// GET /api/me/stats
func (h *QuestHandler) Stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context(), mw.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, st)
}
