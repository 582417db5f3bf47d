package quest

import (
	"context"
	"fmt"
	"time"

	"github.com/trailmate/server/model"
	"go.uber.org/zap"
)

// complete performs the one-way transition of row and credits the points.
func (s *Service) complete(l *UserLedger, row *model.UserQuestProgress, def QuestDefinition, now time.Time, manual bool) Completion {
	row.Progress = def.Total
	row.Completed = true
	at := now
	row.CompletedAt = &at
	row.LastUpdated = now
	l.Points += def.Points
	return Completion{
		UserID:      l.UserID,
		QuestID:     def.ID,
		Title:       def.Title,
		Points:      def.Points,
		TotalPoints: l.Points,
		CompletedAt: now,
		Manual:      manual,
	}
}

// CompleteQuest forces a quest to completion and awards its points. It
// returns nil when the quest is unknown or was already completed.
func (s *Service) CompleteQuest(ctx context.Context, userID, questID string) (*Completion, error) {
	def, ok := s.catalog.Get(questID)
	if !ok || userID == "" {
		return nil, nil
	}

	unlock := s.locks.lock(userID)
	l, dirty, newUser, err := s.loadOrInit(ctx, userID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("quest: complete %s/%s: %w", userID, questID, err)
	}
	row := l.Rows[questID]
	var done *Completion
	if !row.Completed {
		c := s.complete(l, row, def, s.now(), true)
		done = &c
		dirty = append(dirty, questID)
	}
	if len(dirty) > 0 || newUser || done != nil {
		err = s.store.SaveUser(ctx, l, dirty, newUser || done != nil)
	}
	unlock()
	if err != nil {
		return nil, fmt.Errorf("quest: complete %s/%s: %w", userID, questID, err)
	}

	if done != nil {
		s.fireCompletions(ctx, []Completion{*done})
	}
	return done, nil
}

// SetProgress sets a row's progress to value clamped to [0, total]. Reaching
// the total completes the quest exactly like Track. Completed rows are left
// as they are. It returns the resulting row, or nil for an unknown quest.
func (s *Service) SetProgress(ctx context.Context, userID, questID string, value int) (*model.UserQuestProgress, error) {
	def, ok := s.catalog.Get(questID)
	if !ok || userID == "" {
		return nil, nil
	}
	value = max(0, min(value, def.Total))

	unlock := s.locks.lock(userID)
	l, dirty, newUser, err := s.loadOrInit(ctx, userID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("quest: set progress %s/%s: %w", userID, questID, err)
	}
	row := l.Rows[questID]
	var done *Completion
	if !row.Completed {
		now := s.now()
		row.Progress = value
		row.LastUpdated = now
		if value >= def.Total {
			c := s.complete(l, row, def, now, true)
			done = &c
		}
		dirty = append(dirty, questID)
	}
	if len(dirty) > 0 || newUser {
		err = s.store.SaveUser(ctx, l, dirty, newUser || done != nil)
	}
	out := row.Clone()
	unlock()
	if err != nil {
		return nil, fmt.Errorf("quest: set progress %s/%s: %w", userID, questID, err)
	}

	s.logger.Debug("quest progress set",
		zap.String("user_id", userID), zap.String("quest_id", questID), zap.Int("progress", out.Progress))
	if done != nil {
		s.fireCompletions(ctx, []Completion{*done})
	}
	return out, nil
}
