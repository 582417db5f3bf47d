// Package leaderboard ranks users by quest points.
package leaderboard

import (
	"context"
	"fmt"

	"github.com/trailmate/server/cache"
	"github.com/trailmate/server/game/quest"
	"github.com/trailmate/server/model"
	"github.com/trailmate/server/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// ZKey is the sorted set holding userID → points.
	ZKey = "leaderboard:points"
	// MaxTop bounds both queries and periodic rebuilds.
	MaxTop = 100

	hookName = "leaderboard"
)

// Entry is one row in the leaderboard.
type Entry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Points      int    `json:"points"`
	Level       int    `json:"level"`
}

// Board serves the leaderboard from the cache sorted set and falls back to
// the user_points table when the set is empty.
type Board struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *zap.Logger
}

// New creates a Board.
func New(db *gorm.DB, c cache.Cache, logger *zap.Logger) *Board {
	return &Board{db: db, cache: c, logger: logger}
}

// Attach keeps the sorted set current from quest lifecycle events.
func (b *Board) Attach(hc *hook.HookCenter) {
	hc.Register(hook.OnQuestComplete, 100, hookName, func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		if c, ok := data.(quest.Completion); ok {
			if err := b.Record(ctx, c.UserID, c.TotalPoints); err != nil {
				b.logger.Warn("leaderboard record failed", zap.String("user_id", c.UserID), zap.Error(err))
			}
		}
		return data, nil
	})
	hc.Register(hook.OnQuestReset, 100, hookName, func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		if userID, ok := data.(string); ok {
			if err := b.Remove(ctx, userID); err != nil {
				b.logger.Warn("leaderboard remove failed", zap.String("user_id", userID), zap.Error(err))
			}
		}
		return data, nil
	})
}

// Record sets the user's score.
func (b *Board) Record(ctx context.Context, userID string, points int) error {
	return b.cache.ZAdd(ctx, ZKey, float64(points), userID)
}

// Remove drops the user from the sorted set.
func (b *Board) Remove(ctx context.Context, userID string) error {
	return b.cache.ZRem(ctx, ZKey, userID)
}

// Top returns up to limit entries, highest points first.
func (b *Board) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > MaxTop {
		limit = MaxTop
	}

	members, err := b.cache.ZRevRange(ctx, ZKey, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		entries := make([]Entry, 0, len(members))
		for i, m := range members {
			score, _ := b.cache.ZScore(ctx, ZKey, m)
			entries = append(entries, Entry{Rank: i + 1, UserID: m, Points: int(score)})
		}
		b.enrich(ctx, entries)
		return entries, nil
	}

	// Fall back to DB query.
	rows, err := b.topFromDB(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{Rank: i + 1, UserID: r.UserID, Points: r.Points}
		_ = b.Record(ctx, r.UserID, r.Points)
	}
	b.enrich(ctx, entries)
	return entries, nil
}

// Refresh rebuilds the sorted set from the DB and returns the number of rows
// loaded. Called periodically by the scheduler.
func (b *Board) Refresh(ctx context.Context) (int, error) {
	rows, err := b.topFromDB(ctx, MaxTop)
	if err != nil {
		return 0, err
	}
	for _, r := range rows {
		if err := b.Record(ctx, r.UserID, r.Points); err != nil {
			return 0, fmt.Errorf("leaderboard: refresh: %w", err)
		}
	}
	return len(rows), nil
}

func (b *Board) topFromDB(ctx context.Context, limit int) ([]model.UserPoints, error) {
	var rows []model.UserPoints
	err := b.db.WithContext(ctx).
		Where("points > 0").
		Order("points DESC").Order("user_id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("leaderboard: query points: %w", err)
	}
	return rows, nil
}

// enrich fills display names and levels.
func (b *Board) enrich(ctx context.Context, entries []Entry) {
	if len(entries) == 0 {
		return
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	var users []model.User
	b.db.WithContext(ctx).Select("id, username, display_name").Where("id IN ?", ids).Find(&users)
	names := make(map[string]string, len(users))
	for _, u := range users {
		name := u.DisplayName
		if name == "" {
			name = u.Username
		}
		names[u.ID] = name
	}
	for i := range entries {
		entries[i].DisplayName = names[entries[i].UserID]
		entries[i].Level = quest.LevelFor(entries[i].Points)
	}
}

// Detach removes every hook Attach registered.
func (b *Board) Detach(hc *hook.HookCenter) {
	hc.UnregisterAll(hookName)
}
