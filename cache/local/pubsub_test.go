package local

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvOne(t *testing.T, ch <-chan *LocalMessage) *LocalMessage {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "stream closed")
		return msg
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func assertQuiet(t *testing.T, ch <-chan *LocalMessage) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message on %s: %s", msg.Channel, msg.Payload)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestNewPubSub_DefaultBuffer(t *testing.T) {
	assert.Equal(t, 256, NewPubSub(0).bufSize)
	assert.Equal(t, 4, NewPubSub(4).bufSize)
}

func TestSubscribe_UserAndAnnounceShareOneStream(t *testing.T) {
	ps := NewPubSub(16)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "quests:u1", "announce")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "quests:u2", `{"event":"quest_update"}`))
	require.NoError(t, ps.Publish(ctx, "quests:u1", `{"event":"quest_complete"}`))
	require.NoError(t, ps.Publish(ctx, "announce", `{"event":"announce"}`))

	first := recvOne(t, ch)
	assert.Equal(t, "quests:u1", first.Channel)
	assert.Equal(t, `{"event":"quest_complete"}`, first.Payload)

	second := recvOne(t, ch)
	assert.Equal(t, "announce", second.Channel)

	assertQuiet(t, ch)
}

func TestCancel_RemovesOnlyThatSubscriber(t *testing.T) {
	ps := NewPubSub(16)
	ctx := context.Background()

	gone, cancelGone, err := ps.Subscribe(ctx, "announce")
	require.NoError(t, err)
	kept, cancelKept, err := ps.Subscribe(ctx, "announce")
	require.NoError(t, err)
	defer cancelKept()

	cancelGone()
	_, ok := <-gone
	assert.False(t, ok, "cancelled stream should be closed")

	require.NoError(t, ps.Publish(ctx, "announce", "trail closed"))
	assert.Equal(t, "trail closed", recvOne(t, kept).Payload)

	ps.mu.RLock()
	assert.Len(t, ps.subscribers["announce"], 1)
	ps.mu.RUnlock()
}

func TestCancel_MultiChannelClearsEveryChannel(t *testing.T) {
	ps := NewPubSub(16)
	_, cancel, err := ps.Subscribe(context.Background(), "quests:u1", "announce")
	require.NoError(t, err)
	cancel()

	ps.mu.RLock()
	defer ps.mu.RUnlock()
	assert.Empty(t, ps.subscribers["quests:u1"])
	assert.Empty(t, ps.subscribers["announce"])
}

func TestPublish_FullBufferDropsWithoutBlocking(t *testing.T) {
	ps := NewPubSub(1)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "quests:slow")
	require.NoError(t, err)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			_ = ps.Publish(ctx, "quests:slow", fmt.Sprintf("m%d", i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Equal(t, "m0", recvOne(t, ch).Payload)
	assertQuiet(t, ch)
}

func TestCancel_ConcurrentWithPublish(t *testing.T) {
	ps := NewPubSub(4)
	ctx := context.Background()
	stop := make(chan struct{})

	var publishers sync.WaitGroup
	for i := 0; i < 4; i++ {
		publishers.Add(1)
		go func() {
			defer publishers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = ps.Publish(ctx, "announce", "ping")
				}
			}
		}()
	}

	var subscribers sync.WaitGroup
	for i := 0; i < 50; i++ {
		subscribers.Add(1)
		go func() {
			defer subscribers.Done()
			ch, cancel, err := ps.Subscribe(ctx, "quests:u1", "announce")
			if err != nil {
				return
			}
			select {
			case <-ch:
			case <-time.After(10 * time.Millisecond):
			}
			cancel()
		}()
	}
	subscribers.Wait()
	close(stop)
	publishers.Wait()

	ps.mu.RLock()
	defer ps.mu.RUnlock()
	assert.Empty(t, ps.subscribers["announce"])
}
