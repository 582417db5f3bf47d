// Package notify publishes quest progress to per-user pub/sub channels.
package notify

import (
	"context"
	"encoding/json"

	"github.com/trailmate/server/cache"
	"github.com/trailmate/server/game/quest"
	"github.com/trailmate/server/plugin/hook"
	"go.uber.org/zap"
)

// AnnounceChannel carries broadcasts to every connected user.
const AnnounceChannel = "announce"

// Event names carried in Envelope.Event.
const (
	EventQuestUpdate   = "quest_update"
	EventQuestComplete = "quest_complete"
	EventAnnounce      = "announce"
)

const hookName = "notify"

// UserChannel is the pub/sub channel for one user's quest events.
func UserChannel(userID string) string { return "quests:" + userID }

// Envelope is the payload published on every channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode parses a published payload.
func Decode(payload string) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal([]byte(payload), &env)
	return env, err
}

// Notifier turns quest lifecycle events into pub/sub messages.
type Notifier struct {
	pubsub cache.PubSub
	logger *zap.Logger
}

// New creates a Notifier.
func New(ps cache.PubSub, logger *zap.Logger) *Notifier {
	return &Notifier{pubsub: ps, logger: logger}
}

// Publish sends one event to userID's channel.
func (n *Notifier) Publish(ctx context.Context, userID, event string, data interface{}) error {
	return n.publish(ctx, UserChannel(userID), event, data)
}

// Announce broadcasts a system message.
func (n *Notifier) Announce(ctx context.Context, message string) error {
	return n.publish(ctx, AnnounceChannel, EventAnnounce, map[string]string{"message": message})
}

func (n *Notifier) publish(ctx context.Context, channel, event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return err
	}
	return n.pubsub.Publish(ctx, channel, string(payload))
}

// Attach registers the hooks that publish progress and completions.
func (n *Notifier) Attach(hc *hook.HookCenter) {
	hc.Register(hook.AfterActivityTrack, 50, hookName, func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		res, ok := data.(*quest.TrackResult)
		if !ok || res.Skipped || len(res.Advanced) == 0 {
			return data, nil
		}
		if err := n.Publish(ctx, res.UserID, EventQuestUpdate, res); err != nil {
			n.logger.Warn("notify update failed", zap.String("user_id", res.UserID), zap.Error(err))
		}
		return data, nil
	})
	hc.Register(hook.OnQuestComplete, 50, hookName, func(ctx context.Context, _ string, data interface{}) (interface{}, error) {
		c, ok := data.(quest.Completion)
		if !ok {
			return data, nil
		}
		if err := n.Publish(ctx, c.UserID, EventQuestComplete, c); err != nil {
			n.logger.Warn("notify completion failed", zap.String("user_id", c.UserID), zap.Error(err))
		}
		return data, nil
	})
}

// Detach removes every hook Attach registered.
func (n *Notifier) Detach(hc *hook.HookCenter) {
	hc.UnregisterAll(hookName)
}
