package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/trailmate/server/audit"
	"github.com/trailmate/server/game/feed"
	"github.com/trailmate/server/game/quest"
	mw "github.com/trailmate/server/middleware"
	"github.com/trailmate/server/model"
	"go.uber.org/zap"
)

// ActivityHandler ingests activity events for the authenticated user.
type ActivityHandler struct {
	svc    *quest.Service
	feed   *feed.Feed
	audit  *audit.Service
	logger *zap.Logger
}

// NewActivityHandler creates an ActivityHandler. auditSvc may be nil.
func NewActivityHandler(svc *quest.Service, f *feed.Feed, auditSvc *audit.Service, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{svc: svc, feed: f, audit: auditSvc, logger: logger}
}

type activityRequest struct {
	Type      quest.ActivityType `json:"type" binding:"required"`
	RoomID    string             `json:"roomId" binding:"max=64"`
	Timestamp *time.Time         `json:"timestamp"`
	Metadata  *quest.Metadata    `json:"metadata"`
}

// Track applies one activity event. The acting user always comes from the
// token, never from the body.
// POST /api/activity
func (h *ActivityHandler) Track(c *gin.Context) {
	var req activityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Type.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown activity type"})
		return
	}
	ev := quest.ActivityEvent{
		Type:     req.Type,
		UserID:   mw.GetUserID(c),
		RoomID:   req.RoomID,
		Metadata: req.Metadata,
	}
	if req.Timestamp != nil {
		ev.Timestamp = *req.Timestamp
	}
	h.track(c, ev, audit.ActionTrack)
}

// Checkin records the daily_active event. Only the first check-in of a UTC
// day counts.
// POST /api/activity/checkin
func (h *ActivityHandler) Checkin(c *gin.Context) {
	h.track(c, quest.ActivityEvent{Type: quest.ActivityDailyActive, UserID: mw.GetUserID(c)}, audit.ActionCheckin)
}

func (h *ActivityHandler) track(c *gin.Context, ev quest.ActivityEvent, action string) {
	res, err := h.svc.Track(c.Request.Context(), ev)
	entry := audit.Entry{
		TraceID:  mw.GetTraceID(c),
		UserID:   ev.UserID,
		Action:   action,
		RoomID:   ev.RoomID,
		Metadata: ev.Metadata,
		IP:       c.ClientIP(),
	}
	if err != nil {
		entry.Error = err.Error()
		h.log(entry)
		h.logger.Error("track failed", zap.String("user_id", ev.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	entry.Result = res
	entry.QuestsAdvanced = len(res.Advanced)
	entry.PointsAwarded = res.PointsAwarded
	h.log(entry)

	if action == audit.ActionCheckin {
		c.JSON(http.StatusOK, gin.H{"alreadyCheckedIn": res.Skipped, "result": res})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ActivityHandler) log(e audit.Entry) {
	if h.audit != nil {
		h.audit.Log(e)
	}
}

// Recent returns the caller's latest processed events.
// GET /api/activity/recent?limit=20
func (h *ActivityHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.feed.Recent(c.Request.Context(), mw.GetUserID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func zeroRow(userID, questID string) *model.UserQuestProgress {
	return &model.UserQuestProgress{UserID: userID, QuestID: questID}
}
