package quest

import (
	"time"

	"github.com/trailmate/server/model"
)

// ActivityType is the closed set of activity kinds a quest can track.
type ActivityType string

const (
	ActivityMessageSent         ActivityType = "message_sent"
	ActivityQuestionAnswered    ActivityType = "question_answered"
	ActivityPhotoShared         ActivityType = "photo_shared"
	ActivityEventJoined         ActivityType = "event_joined"
	ActivityRecommendationGiven ActivityType = "recommendation_given"
	ActivityRoomJoined          ActivityType = "room_joined"
	ActivityDailyActive         ActivityType = "daily_active"
	ActivityReactionGiven       ActivityType = "reaction_given"
)

// AllActivityTypes lists every ActivityType in declaration order.
var AllActivityTypes = []ActivityType{
	ActivityMessageSent,
	ActivityQuestionAnswered,
	ActivityPhotoShared,
	ActivityEventJoined,
	ActivityRecommendationGiven,
	ActivityRoomJoined,
	ActivityDailyActive,
	ActivityReactionGiven,
}

// IsValid returns true if t is one of the known activity types.
func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityMessageSent, ActivityQuestionAnswered, ActivityPhotoShared,
		ActivityEventJoined, ActivityRecommendationGiven, ActivityRoomJoined,
		ActivityDailyActive, ActivityReactionGiven:
		return true
	default:
		return false
	}
}

// bumpCounter increments the activityData tally driven by t. It reports false
// for kinds that have no tally (photo_shared). Keep this switch in sync with
// AllActivityTypes; TestBumpCounter_CoversEveryType fails otherwise.
func bumpCounter(data *model.ActivityData, t ActivityType) bool {
	switch t {
	case ActivityMessageSent:
		data.MessagesSent++
	case ActivityQuestionAnswered:
		data.QuestionsAnswered++
	case ActivityEventJoined:
		data.EventsJoined++
	case ActivityRecommendationGiven:
		data.RecommendationsGiven++
	case ActivityRoomJoined:
		data.RoomsJoined++
	case ActivityReactionGiven:
		data.ReactionsGiven++
	case ActivityDailyActive:
		data.DailyActiveStreak++
	case ActivityPhotoShared:
		return false
	default:
		return false
	}
	return true
}

// Metadata carries the optional details of an activity event. Pointer fields
// distinguish "absent" from a zero value.
type Metadata struct {
	MessageLength     *int     `json:"messageLength,omitempty"`
	HasMedia          bool     `json:"hasMedia,omitempty"`
	RoomType          string   `json:"roomType,omitempty"`
	HelpfulnessRating *float64 `json:"helpfulnessRating,omitempty"`
}

// ActivityEvent is one user action fed once into the processor.
type ActivityEvent struct {
	Type      ActivityType `json:"type"`
	UserID    string       `json:"userId"`
	RoomID    string       `json:"roomId,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Metadata  *Metadata    `json:"metadata,omitempty"`
}

// IntPtr is a convenience for building Metadata literals.
func IntPtr(v int) *int { return &v }
