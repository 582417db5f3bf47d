package quest

import (
	"context"
	"errors"
	"fmt"

	"github.com/trailmate/server/plugin/hook"
	"go.uber.org/zap"
)

// QuestAdvance is one row moved forward by an event.
type QuestAdvance struct {
	QuestID   string `json:"questId"`
	Progress  int    `json:"progress"`
	Total     int    `json:"total"`
	Completed bool   `json:"completed"`
}

// TrackResult summarizes what one event did to a user's ledger.
type TrackResult struct {
	UserID        string         `json:"userId"`
	Type          ActivityType   `json:"type"`
	Advanced      []QuestAdvance `json:"advanced"`
	Completed     []Completion   `json:"completed"`
	PointsAwarded int            `json:"pointsAwarded"`
	Points        int            `json:"points"`
	// Skipped is set when the event never reached the ledger: empty user,
	// unknown type, or a before_activity_track hook interrupted it.
	Skipped bool `json:"skipped,omitempty"`
}

// Track applies one activity event to the acting user's ledger. Each quest
// row is judged independently against the same event: completed rows,
// manual-only quests, other activity types and unmet conditions are skipped;
// every other row advances by one, capped at the quest total. Points are
// awarded once, when a row first reaches its total.
func (s *Service) Track(ctx context.Context, ev ActivityEvent) (*TrackResult, error) {
	res := &TrackResult{
		UserID:    ev.UserID,
		Type:      ev.Type,
		Advanced:  []QuestAdvance{},
		Completed: []Completion{},
	}
	if ev.UserID == "" || !ev.Type.IsValid() {
		res.Skipped = true
		return res, nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	if err := s.fire(ctx, hook.BeforeActivityTrack, &ev); errors.Is(err, hook.ErrInterrupt) {
		s.logger.Debug("activity dropped by hook",
			zap.String("user_id", ev.UserID), zap.String("type", string(ev.Type)))
		res.Skipped = true
		return res, nil
	}

	if err := s.apply(ctx, ev, res); err != nil {
		_ = s.fire(ctx, hook.ActivityTrackFailed, &ev)
		return nil, err
	}

	_ = s.fire(ctx, hook.AfterActivityTrack, res)
	s.fireCompletions(ctx, res.Completed)
	return res, nil
}

func (s *Service) apply(ctx context.Context, ev ActivityEvent, res *TrackResult) error {
	unlock := s.locks.lock(ev.UserID)
	defer unlock()

	l, dirty, newUser, err := s.loadOrInit(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("quest: track %s: %w", ev.UserID, err)
	}

	now := s.now()
	for _, def := range s.catalog.All() {
		row, ok := l.Rows[def.ID]
		if !ok || row.Completed {
			continue
		}
		if !def.AutoTrack || def.ActivityType != ev.Type {
			continue
		}
		if !Matches(ev, def) {
			continue
		}

		if row.Progress < def.Total {
			row.Progress++
		}
		bumpCounter(&row.ActivityData, ev.Type)
		if row.Progress >= def.Total {
			res.Completed = append(res.Completed, s.complete(l, row, def, now, false))
			res.PointsAwarded += def.Points
		}
		row.LastUpdated = now

		dirty = append(dirty, def.ID)
		res.Advanced = append(res.Advanced, QuestAdvance{
			QuestID:   def.ID,
			Progress:  row.Progress,
			Total:     def.Total,
			Completed: row.Completed,
		})
	}
	res.Points = l.Points

	savePoints := newUser || res.PointsAwarded > 0
	if len(dirty) == 0 && !savePoints {
		return nil
	}
	if err := s.store.SaveUser(ctx, l, dirty, savePoints); err != nil {
		return fmt.Errorf("quest: track %s: %w", ev.UserID, err)
	}
	return nil
}
