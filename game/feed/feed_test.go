package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailmate/server/game/quest"
	"github.com/trailmate/server/plugin/hook"
	"github.com/trailmate/server/testutil"
)


func newFeed(t *testing.T, length int) *Feed {
	c, _ := testutil.SetupTestCache(t)
	return New(c, length, testutil.NopLogger())
}

func TestPushRecent_CappedNewestFirst(t *testing.T) {
	f := newFeed(t, 3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, f.Push(ctx, "u1", Item{Type: quest.ActivityMessageSent, RoomID: fmt.Sprintf("r%d", i)}))
	}
	items, err := f.Recent(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "r4", items[0].RoomID)
	assert.Equal(t, "r2", items[2].RoomID)

	items, err = f.Recent(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestFirstCheckin_OncePerUTCDay(t *testing.T) {
	f := newFeed(t, 10)
	ctx := context.Background()
	morning := time.Date(2026, 5, 1, 1, 0, 0, 0, time.UTC)

	ok, err := f.FirstCheckin(ctx, "u1", morning)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.FirstCheckin(ctx, "u1", morning.Add(20*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.FirstCheckin(ctx, "u1", morning.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.FirstCheckin(ctx, "u2", morning)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAttach_WithQuestService(t *testing.T) {
	f := newFeed(t, 10)
	hc := hook.NewHookCenter()
	f.Attach(hc)

	cat := quest.NewCatalog()
	_, err := cat.Load(quest.DefaultQuests())
	require.NoError(t, err)
	svc := quest.NewService(cat, quest.NewMemoryStore(), hc, testutil.NopLogger())
	ctx := context.Background()
	day := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return day }

	res, err := svc.Track(ctx, quest.ActivityEvent{Type: quest.ActivityDailyActive, UserID: "u1", Timestamp: day})
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	res, err = svc.Track(ctx, quest.ActivityEvent{Type: quest.ActivityDailyActive, UserID: "u1", Timestamp: day.Add(time.Hour)})
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	row, _, err := svc.Get(ctx, "u1", "7")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Progress)

	items, err := f.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"7"}, items[0].Advanced)

	require.NoError(t, svc.Reset(ctx, "u1"))
	items, err = f.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func attachedService(t *testing.T, f *Feed, store quest.Store) *quest.Service {
	t.Helper()
	hc := hook.NewHookCenter()
	f.Attach(hc)
	cat := quest.NewCatalog()
	_, err := cat.Load(quest.DefaultQuests())
	require.NoError(t, err)
	return quest.NewService(cat, store, hc, testutil.NopLogger())
}

func TestAttach_CheckinDayIgnoresClientTimestamp(t *testing.T) {
	f := newFeed(t, 10)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return now }
	svc := attachedService(t, f, quest.NewMemoryStore())
	ctx := context.Background()

	backdated := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		_, err := svc.Track(ctx, quest.ActivityEvent{
			Type:      quest.ActivityDailyActive,
			UserID:    "u1",
			Timestamp: backdated.AddDate(0, 0, i),
		})
		require.NoError(t, err)
	}

	row, _, err := svc.Get(ctx, "u1", "7")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Progress)
	assert.False(t, row.Completed)

	now = now.Add(24 * time.Hour)
	res, err := svc.Track(ctx, quest.ActivityEvent{Type: quest.ActivityDailyActive, UserID: "u1", Timestamp: backdated})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	row, _, err = svc.Get(ctx, "u1", "7")
	require.NoError(t, err)
	assert.Equal(t, 2, row.Progress)
}

// flakyStore fails the first SaveUser call.
type flakyStore struct {
	quest.Store
	failed bool
}

func (s *flakyStore) SaveUser(ctx context.Context, l *quest.UserLedger, questIDs []string, savePoints bool) error {
	if !s.failed {
		s.failed = true
		return errors.New("disk full")
	}
	return s.Store.SaveUser(ctx, l, questIDs, savePoints)
}

func TestAttach_FailedCheckinCanBeRetried(t *testing.T) {
	f := newFeed(t, 10)
	day := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return day }
	svc := attachedService(t, f, &flakyStore{Store: quest.NewMemoryStore()})
	ctx := context.Background()
	ev := quest.ActivityEvent{Type: quest.ActivityDailyActive, UserID: "u1"}

	_, err := svc.Track(ctx, ev)
	require.Error(t, err)

	res, err := svc.Track(ctx, ev)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	require.Len(t, res.Advanced, 1)
	assert.Equal(t, "7", res.Advanced[0].QuestID)

	row, _, err := svc.Get(ctx, "u1", "7")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Progress)

	res, err = svc.Track(ctx, ev)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestDetach(t *testing.T) {
	f := newFeed(t, 10)
	hc := hook.NewHookCenter()
	f.Attach(hc)
	require.True(t, hc.Has(hook.BeforeActivityTrack))

	f.Detach(hc)
	for _, ev := range []string{hook.BeforeActivityTrack, hook.ActivityTrackFailed, hook.AfterActivityTrack, hook.OnQuestReset} {
		assert.False(t, hc.Has(ev), ev)
	}
}
