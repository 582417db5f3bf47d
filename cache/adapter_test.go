package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache_LocalWhenNoRedis(t *testing.T) {
	c, err := NewCache(CacheConfig{})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestNewPubSub_LocalRoundTrip(t *testing.T) {
	ps, err := NewPubSub(CacheConfig{LocalPubSubBuf: 4})
	require.NoError(t, err)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "quests:u1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "quests:u1", `{"type":"quest_update"}`))
	select {
	case msg := <-ch:
		assert.Equal(t, "quests:u1", msg.Channel)
		assert.JSONEq(t, `{"type":"quest_update"}`, msg.Payload)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("no message delivered")
	}
}
