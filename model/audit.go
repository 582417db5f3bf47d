package model

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is the durable journal of processed activity events and manual
// quest actions.
type ActivityLog struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID        string         `gorm:"index:idx_activity_trace;size:64" json:"trace_id"`
	UserID         string         `gorm:"index:idx_activity_user;size:36;not null" json:"user_id"`
	Action         string         `gorm:"size:64;not null" json:"action"`
	QuestID        string         `gorm:"size:64" json:"quest_id,omitempty"`
	RoomID         string         `gorm:"size:64" json:"room_id,omitempty"`
	Metadata       datatypes.JSON `json:"metadata"`
	Result         datatypes.JSON `json:"result"`
	QuestsAdvanced int            `json:"quests_advanced"`
	PointsAwarded  int            `json:"points_awarded"`
	Error          string         `gorm:"type:text" json:"error,omitempty"`
	IP             string         `gorm:"size:45" json:"ip"`
	CreatedAt      time.Time      `gorm:"index:idx_activity_created;autoCreateTime:milli" json:"created_at"`
}
