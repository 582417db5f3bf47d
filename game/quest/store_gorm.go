package quest

import (
	"context"
	"fmt"
	"time"

	"github.com/trailmate/server/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists ledgers in the user_quest_progress and user_points tables.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore. Tables must already be migrated.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) LoadUser(ctx context.Context, userID string) (*UserLedger, error) {
	var rows []model.UserQuestProgress
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("quest: load progress: %w", err)
	}
	var pts []model.UserPoints
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&pts).Error; err != nil {
		return nil, fmt.Errorf("quest: load points: %w", err)
	}
	if len(rows) == 0 && len(pts) == 0 {
		return nil, nil
	}

	l := newUserLedger(userID)
	for i := range rows {
		l.Rows[rows[i].QuestID] = &rows[i]
	}
	if len(pts) > 0 {
		l.Points = pts[0].Points
	}
	return l, nil
}

func (s *GormStore) SaveUser(ctx context.Context, l *UserLedger, questIDs []string, savePoints bool) error {
	rows := make([]*model.UserQuestProgress, 0, len(questIDs))
	seen := make(map[string]bool, len(questIDs))
	for _, id := range questIDs {
		// one upsert may not touch the same key twice
		if row, ok := l.Rows[id]; ok && !seen[id] {
			seen[id] = true
			rows = append(rows, row)
		}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
				return fmt.Errorf("quest: save progress: %w", err)
			}
		}
		if savePoints {
			pts := &model.UserPoints{UserID: l.UserID, Points: l.Points, UpdatedAt: time.Now()}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"points", "updated_at"}),
			}).Create(pts).Error; err != nil {
				return fmt.Errorf("quest: save points: %w", err)
			}
		}
		return nil
	})
}

func (s *GormStore) DeleteUser(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.UserQuestProgress{}).Error; err != nil {
			return fmt.Errorf("quest: delete progress: %w", err)
		}
		if err := tx.Where("user_id = ?", userID).Delete(&model.UserPoints{}).Error; err != nil {
			return fmt.Errorf("quest: delete points: %w", err)
		}
		return nil
	})
}
