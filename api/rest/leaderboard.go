package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/trailmate/server/game/leaderboard"
	"go.uber.org/zap"
)

// LeaderboardHandler handles leaderboard REST endpoints.
type LeaderboardHandler struct {
	board  *leaderboard.Board
	logger *zap.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(board *leaderboard.Board, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, logger: logger}
}

// Top returns the users with the most quest points.
// GET /api/leaderboard?limit=20
func (h *LeaderboardHandler) Top(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= leaderboard.MaxTop {
		limit = l
	}
	entries, err := h.board.Top(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("leaderboard query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
