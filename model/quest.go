package model

import "time"

// ActivityData holds informational tallies of what drove a quest's progress.
type ActivityData struct {
	MessagesSent         int `json:"messagesSent"`
	QuestionsAnswered    int `json:"questionsAnswered"`
	EventsJoined         int `json:"eventsJoined"`
	RecommendationsGiven int `json:"recommendationsGiven"`
	RoomsJoined          int `json:"roomsJoined"`
	ReactionsGiven       int `json:"reactionsGiven"`
	DailyActiveStreak    int `json:"dailyActiveStreak"`
}

// UserQuestProgress is one user's progress on one quest.
type UserQuestProgress struct {
	UserID       string       `gorm:"primaryKey;size:36" json:"userId"`
	QuestID      string       `gorm:"primaryKey;size:64" json:"questId"`
	Progress     int          `gorm:"not null;default:0" json:"progress"`
	Completed    bool         `gorm:"not null;default:false" json:"completed"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
	LastUpdated  time.Time    `json:"lastUpdated"`
	ActivityData ActivityData `gorm:"embedded;embeddedPrefix:activity_" json:"activityData"`
}

func (UserQuestProgress) TableName() string { return "user_quest_progress" }

// Clone returns a deep copy.
func (p *UserQuestProgress) Clone() *UserQuestProgress {
	cp := *p
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// UserPoints is a user's running quest point total.
type UserPoints struct {
	UserID    string    `gorm:"primaryKey;size:36" json:"userId"`
	Points    int       `gorm:"not null;default:0;index:idx_points" json:"points"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (UserPoints) TableName() string { return "user_points" }
