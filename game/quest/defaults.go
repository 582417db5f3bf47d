package quest

// DefaultQuests is the built-in catalog used when no catalog file is configured.
func DefaultQuests() []QuestDefinition {
	return []QuestDefinition{
		{
			ID:           "1",
			Title:        "Social Butterfly",
			Description:  "Send 20 thoughtful messages in community rooms",
			Points:       50,
			Total:        20,
			Category:     "social",
			Difficulty:   "easy",
			UnlockLevel:  1,
			ActivityType: ActivityMessageSent,
			AutoTrack:    true,
			Conditions:   &Conditions{MinMessageLength: IntPtr(10)},
		},
		{
			ID:           "2",
			Title:        "Helpful Traveler",
			Description:  "Answer 5 questions from fellow travelers",
			Points:       75,
			Total:        5,
			Category:     "community",
			Difficulty:   "medium",
			UnlockLevel:  1,
			ActivityType: ActivityQuestionAnswered,
			AutoTrack:    true,
			Conditions:   &Conditions{MinMessageLength: IntPtr(20)},
		},
		{
			ID:           "3",
			Title:        "Shutterbug",
			Description:  "Share 10 photos from your trips",
			Points:       60,
			Total:        10,
			Category:     "content",
			Difficulty:   "easy",
			UnlockLevel:  1,
			ActivityType: ActivityPhotoShared,
			AutoTrack:    true,
			Conditions:   &Conditions{RequiresMedia: true},
		},
		{
			ID:           "4",
			Title:        "Room Hopper",
			Description:  "Join 3 community events",
			Points:       40,
			Total:        3,
			Category:     "exploration",
			Difficulty:   "easy",
			UnlockLevel:  1,
			ActivityType: ActivityEventJoined,
			AutoTrack:    true,
		},
		{
			ID:           "5",
			Title:        "Local Guide",
			Description:  "Give 5 recommendations in local or travel-tips rooms",
			Points:       80,
			Total:        5,
			Category:     "community",
			Difficulty:   "medium",
			UnlockLevel:  2,
			ActivityType: ActivityRecommendationGiven,
			AutoTrack:    true,
			Conditions:   &Conditions{RoomTypes: []string{"local", "travel_tips"}},
		},
		{
			ID:           "6",
			Title:        "Community Explorer",
			Description:  "Join 5 different community rooms",
			Points:       30,
			Total:        5,
			Category:     "exploration",
			Difficulty:   "easy",
			UnlockLevel:  1,
			ActivityType: ActivityRoomJoined,
			AutoTrack:    true,
		},
		{
			ID:           "7",
			Title:        "Daily Wanderer",
			Description:  "Check in on 7 days",
			Points:       100,
			Total:        7,
			Category:     "engagement",
			Difficulty:   "medium",
			UnlockLevel:  1,
			ActivityType: ActivityDailyActive,
			AutoTrack:    true,
			Conditions:   &Conditions{Timeframe: TimeframeWeekly},
		},
		{
			ID:           "8",
			Title:        "Cheerleader",
			Description:  "React to 25 posts",
			Points:       25,
			Total:        25,
			Category:     "social",
			Difficulty:   "easy",
			UnlockLevel:  1,
			ActivityType: ActivityReactionGiven,
			AutoTrack:    true,
		},
		{
			ID:           "9",
			Title:        "Eco Pioneer",
			Description:  "Publish a verified low-impact itinerary (reviewed by moderators)",
			Points:       150,
			Total:        1,
			Category:     "eco",
			Difficulty:   "hard",
			UnlockLevel:  3,
			ActivityType: ActivityRecommendationGiven,
			AutoTrack:    false,
		},
	}
}
