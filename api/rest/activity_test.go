package rest_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailmate/server/game/feed"
	"github.com/trailmate/server/game/quest"
)

func TestActivity_Track(t *testing.T) {
	_, r := newApp(t, testAdminKey)
	auth, userID := login(t, r, "tracker")

	w := postJSON(r, "/api/activity", map[string]interface{}{
		"type":   "event_joined",
		"roomId": "room-1",
	}, auth...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res quest.TrackResult
	decode(t, w, &res)

	assert.Equal(t, userID, res.UserID)
	require.Len(t, res.Advanced, 1)
	assert.Equal(t, quest.QuestAdvance{QuestID: "4", Progress: 1, Total: 3}, res.Advanced[0])
	assert.Empty(t, res.Completed)
}

func TestActivity_TrackUsesTokenUser(t *testing.T) {
	a, r := newApp(t, testAdminKey)
	auth, userID := login(t, r, "owner")

	w := postJSON(r, "/api/activity", map[string]interface{}{
		"type":     "message_sent",
		"userId":   "someone-else",
		"metadata": map[string]int{"messageLength": 15},
	}, auth...)
	require.Equal(t, http.StatusOK, w.Code)

	row, found, err := a.Quests.Get(t.Context(), userID, "1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, row.Progress)

	_, found, err = a.Quests.Get(t.Context(), "someone-else", "1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestActivity_TrackRejectsBadType(t *testing.T) {
	_, r := newApp(t, testAdminKey)
	auth, _ := login(t, r, "badtype")

	w := postJSON(r, "/api/activity", map[string]string{"type": "teleported"}, auth...)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/activity", map[string]string{}, auth...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActivity_CheckinOncePerDay(t *testing.T) {
	_, r := newApp(t, testAdminKey)
	auth, _ := login(t, r, "checker")

	type checkinResp struct {
		AlreadyCheckedIn bool              `json:"alreadyCheckedIn"`
		Result           quest.TrackResult `json:"result"`
	}

	w := postJSON(r, "/api/activity/checkin", nil, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	var first checkinResp
	decode(t, w, &first)
	assert.False(t, first.AlreadyCheckedIn)
	require.Len(t, first.Result.Advanced, 1)
	assert.Equal(t, "7", first.Result.Advanced[0].QuestID)

	w = postJSON(r, "/api/activity/checkin", nil, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	var second checkinResp
	decode(t, w, &second)
	assert.True(t, second.AlreadyCheckedIn)
	assert.Empty(t, second.Result.Advanced)
}

func TestActivity_Recent(t *testing.T) {
	_, r := newApp(t, testAdminKey)
	auth, _ := login(t, r, "recent")

	require.Equal(t, http.StatusOK, postJSON(r, "/api/activity", map[string]string{"type": "room_joined"}, auth...).Code)
	require.Equal(t, http.StatusOK, postJSON(r, "/api/activity", map[string]string{"type": "reaction_given"}, auth...).Code)

	w := doJSON(r, http.MethodGet, "/api/activity/recent?limit=10", nil, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Items []feed.Item `json:"items"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, quest.ActivityReactionGiven, resp.Items[0].Type)
	assert.Equal(t, []string{"8"}, resp.Items[0].Advanced)
	assert.Equal(t, quest.ActivityRoomJoined, resp.Items[1].Type)
}

func TestActivity_BackdatedCheckinsCountOnce(t *testing.T) {
	a, r := newApp(t, testAdminKey)
	auth, userID := login(t, r, "timetraveller")

	start := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		w := postJSON(r, "/api/activity", map[string]interface{}{
			"type":      "daily_active",
			"timestamp": start.AddDate(0, 0, i),
		}, auth...)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	row, found, err := a.Quests.Get(t.Context(), userID, "7")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, row.Progress)
	assert.False(t, row.Completed)

	w := doJSON(r, http.MethodGet, "/api/me/stats", nil, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	var st quest.Stats
	decode(t, w, &st)
	assert.Equal(t, 0, st.Points)
}
