// Package feed keeps a short per-user list of recent quest activity and
// de-duplicates daily check-ins.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trailmate/server/cache"
	"github.com/trailmate/server/game/quest"
	"github.com/trailmate/server/plugin/hook"
	"go.uber.org/zap"
)

const (
	hookName = "feed"

	// checkinTTL outlives one UTC day so late writes in the same day still collide.
	checkinTTL = 48 * time.Hour
)

// Item is one entry in a user's recent-activity list.
type Item struct {
	Type          quest.ActivityType `json:"type"`
	RoomID        string             `json:"roomId,omitempty"`
	At            time.Time          `json:"at"`
	Advanced      []string           `json:"advanced,omitempty"`
	Completed     []string           `json:"completed,omitempty"`
	PointsAwarded int                `json:"pointsAwarded,omitempty"`
}

// Feed stores Items newest first, capped at length per user.
type Feed struct {
	cache  cache.Cache
	length int
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Feed. length <= 0 defaults to 50.
func New(c cache.Cache, length int, logger *zap.Logger) *Feed {
	if length <= 0 {
		length = 50
	}
	return &Feed{cache: c, length: length, logger: logger, now: time.Now}
}

func listKey(userID string) string { return "feed:" + userID }

func checkinKey(userID string, day time.Time) string {
	return "checkin:" + userID + ":" + day.UTC().Format("2006-01-02")
}

// Push records a processed event.
func (f *Feed) Push(ctx context.Context, userID string, item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	key := listKey(userID)
	if err := f.cache.LPush(ctx, key, string(data)); err != nil {
		return fmt.Errorf("feed: push: %w", err)
	}
	return f.cache.LTrim(ctx, key, 0, int64(f.length-1))
}

// Recent returns up to n items, newest first.
func (f *Feed) Recent(ctx context.Context, userID string, n int) ([]Item, error) {
	if n <= 0 || n > f.length {
		n = f.length
	}
	raw, err := f.cache.LRange(ctx, listKey(userID), 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("feed: range: %w", err)
	}
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		var it Item
		if err := json.Unmarshal([]byte(r), &it); err != nil {
			f.logger.Warn("feed: skipping bad item", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// Clear drops the user's list.
func (f *Feed) Clear(ctx context.Context, userID string) error {
	return f.cache.Del(ctx, listKey(userID))
}

// FirstCheckin reports whether this is the user's first check-in on the UTC
// day of at, and claims the day if so.
func (f *Feed) FirstCheckin(ctx context.Context, userID string, at time.Time) (bool, error) {
	return f.cache.SetNX(ctx, checkinKey(userID, at), "1", checkinTTL)
}

// ReleaseCheckin gives back the day claimed by FirstCheckin so a failed
// check-in can be retried.
func (f *Feed) ReleaseCheckin(ctx context.Context, userID string, at time.Time) error {
	return f.cache.Del(ctx, checkinKey(userID, at))
}

// Attach registers the feed's hooks. daily_active events past the first of
// the (server) day are dropped and a failed one releases its day. Processed
// events are recorded and resets clear the list.
func (f *Feed) Attach(hc *hook.HookCenter) {
	hc.Register(hook.BeforeActivityTrack, 10, hookName, func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		ev, ok := data.(*quest.ActivityEvent)
		if !ok || ev.Type != quest.ActivityDailyActive {
			return data, nil
		}
		// The day is always the server's; client timestamps cannot pick it.
		ev.Timestamp = f.now()
		first, err := f.FirstCheckin(ctx, ev.UserID, ev.Timestamp)
		if err != nil {
			f.logger.Warn("checkin dedupe failed", zap.String("user_id", ev.UserID), zap.Error(err))
			return data, nil
		}
		if !first {
			return data, hook.ErrInterrupt
		}
		return data, nil
	})
	hc.Register(hook.ActivityTrackFailed, 10, hookName, func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		ev, ok := data.(*quest.ActivityEvent)
		if !ok || ev.Type != quest.ActivityDailyActive {
			return data, nil
		}
		if err := f.ReleaseCheckin(ctx, ev.UserID, ev.Timestamp); err != nil {
			f.logger.Warn("checkin release failed", zap.String("user_id", ev.UserID), zap.Error(err))
		}
		return data, nil
	})
	hc.Register(hook.AfterActivityTrack, 10, hookName, func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		res, ok := data.(*quest.TrackResult)
		if !ok || res.Skipped {
			return data, nil
		}
		item := Item{Type: res.Type, At: f.now(), PointsAwarded: res.PointsAwarded}
		for _, a := range res.Advanced {
			item.Advanced = append(item.Advanced, a.QuestID)
		}
		for _, c := range res.Completed {
			item.Completed = append(item.Completed, c.QuestID)
		}
		if err := f.Push(ctx, res.UserID, item); err != nil {
			f.logger.Warn("feed push failed", zap.String("user_id", res.UserID), zap.Error(err))
		}
		return data, nil
	})
	hc.Register(hook.OnQuestReset, 10, hookName, func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		if userID, ok := data.(string); ok {
			_ = f.Clear(ctx, userID)
		}
		return data, nil
	})
}

// Detach removes every hook Attach registered.
func (f *Feed) Detach(hc *hook.HookCenter) {
	hc.UnregisterAll(hookName)
}
