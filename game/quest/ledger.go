package quest

import (
	"context"
	"fmt"

	"github.com/trailmate/server/model"
	"github.com/trailmate/server/plugin/hook"
	"go.uber.org/zap"
)

// QuestStatus pairs a definition with the user's row for it.
type QuestStatus struct {
	Quest    QuestDefinition          `json:"quest"`
	Progress *model.UserQuestProgress `json:"progress"`
}

// loadOrInit returns the user's ledger, creating zero rows for every catalog
// quest the user lacks. Callers must hold the user's lock. The returned ids
// are the rows that were created; newUser is set when no points total existed.
func (s *Service) loadOrInit(ctx context.Context, userID string) (l *UserLedger, created []string, newUser bool, err error) {
	l, err = s.store.LoadUser(ctx, userID)
	if err != nil {
		return nil, nil, false, err
	}
	if l == nil {
		l = newUserLedger(userID)
		newUser = true
	}
	now := s.now()
	for _, d := range s.catalog.All() {
		if _, ok := l.Rows[d.ID]; ok {
			continue
		}
		l.Rows[d.ID] = &model.UserQuestProgress{UserID: userID, QuestID: d.ID, LastUpdated: now}
		created = append(created, d.ID)
	}
	return l, created, newUser, nil
}

// Initialize creates zero rows and a zero points total for userID. Existing
// rows are never touched, so calling it again is harmless.
func (s *Service) Initialize(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	l, created, newUser, err := s.loadOrInit(ctx, userID)
	if err != nil {
		return err
	}
	if len(created) == 0 && !newUser {
		return nil
	}
	if err := s.store.SaveUser(ctx, l, created, newUser); err != nil {
		return fmt.Errorf("quest: initialize %s: %w", userID, err)
	}
	s.logger.Debug("quest ledger initialized",
		zap.String("user_id", userID), zap.Int("rows", len(created)))
	return nil
}

// Get returns a copy of one row. found is false when the user or row is absent.
func (s *Service) Get(ctx context.Context, userID, questID string) (*model.UserQuestProgress, bool, error) {
	l, err := s.store.LoadUser(ctx, userID)
	if err != nil || l == nil {
		return nil, false, err
	}
	row, ok := l.Rows[questID]
	if !ok {
		return nil, false, nil
	}
	return row.Clone(), true, nil
}

// ListForUser returns every catalog quest in catalog order with the user's
// row, or a zero row when the user has none. It never writes.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]QuestStatus, error) {
	l, err := s.store.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defs := s.catalog.All()
	out := make([]QuestStatus, 0, len(defs))
	for _, d := range defs {
		var row *model.UserQuestProgress
		if l != nil {
			if r, ok := l.Rows[d.ID]; ok {
				row = r.Clone()
			}
		}
		if row == nil {
			row = &model.UserQuestProgress{UserID: userID, QuestID: d.ID}
		}
		out = append(out, QuestStatus{Quest: d, Progress: row})
	}
	return out, nil
}

// Reset deletes every row and the points total of userID.
func (s *Service) Reset(ctx context.Context, userID string) error {
	unlock := s.locks.lock(userID)
	err := s.store.DeleteUser(ctx, userID)
	unlock()
	if err != nil {
		return fmt.Errorf("quest: reset %s: %w", userID, err)
	}
	s.logger.Info("quest ledger reset", zap.String("user_id", userID))
	_ = s.fire(ctx, hook.OnQuestReset, userID)
	return nil
}

// Export returns the persisted ledger of userID, or an empty one.
func (s *Service) Export(ctx context.Context, userID string) (*UserLedger, error) {
	l, err := s.store.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return newUserLedger(userID), nil
	}
	return l, nil
}
