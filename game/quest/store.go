package quest

import (
	"context"

	"github.com/trailmate/server/model"
)

// UserLedger is everything the quest engine persists for one user.
type UserLedger struct {
	UserID string                              `json:"userId"`
	Rows   map[string]*model.UserQuestProgress `json:"quests"`
	Points int                                 `json:"points"`
}

func newUserLedger(userID string) *UserLedger {
	return &UserLedger{UserID: userID, Rows: make(map[string]*model.UserQuestProgress)}
}

func (l *UserLedger) clone() *UserLedger {
	cp := &UserLedger{UserID: l.UserID, Points: l.Points, Rows: make(map[string]*model.UserQuestProgress, len(l.Rows))}
	for id, row := range l.Rows {
		cp.Rows[id] = row.Clone()
	}
	return cp
}

// CompletedCount returns the number of completed rows.
func (l *UserLedger) CompletedCount() int {
	n := 0
	for _, row := range l.Rows {
		if row.Completed {
			n++
		}
	}
	return n
}

// Store persists user ledgers. Implementations need not be safe for
// concurrent writers to the same user; the Service serializes those.
type Store interface {
	// LoadUser returns (nil, nil) when the user has never been initialized.
	LoadUser(ctx context.Context, userID string) (*UserLedger, error)
	// SaveUser writes the rows named in questIDs and, if savePoints is set,
	// the points total.
	SaveUser(ctx context.Context, l *UserLedger, questIDs []string, savePoints bool) error
	// DeleteUser removes every row and the points total for the user.
	DeleteUser(ctx context.Context, userID string) error
}
