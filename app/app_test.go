package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trailmate/server/config"
	"github.com/trailmate/server/plugin/hook"
	"github.com/trailmate/server/testutil"
)

func newTestApp(t *testing.T, store string) *App {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Quest.Store = store
	c, ps := testutil.SetupTestCache(t)
	a, err := New(cfg, testutil.SetupTestDB(t), c, ps, testutil.NopLogger())
	require.NoError(t, err)
	return a
}

func TestNew_UnknownStore(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Quest.Store = "etcd"
	c, ps := testutil.SetupTestCache(t)
	_, err = New(cfg, testutil.SetupTestDB(t), c, ps, testutil.NopLogger())
	assert.Error(t, err)
}

func TestClose_DetachesSubscribers(t *testing.T) {
	a := newTestApp(t, StoreMemory)
	events := []string{
		hook.BeforeActivityTrack,
		hook.ActivityTrackFailed,
		hook.AfterActivityTrack,
		hook.OnQuestComplete,
		hook.OnQuestReset,
	}
	for _, ev := range events {
		assert.True(t, a.Hooks.Has(ev), ev)
	}

	a.Close(context.Background())
	for _, ev := range events {
		assert.False(t, a.Hooks.Has(ev), ev)
	}
}
