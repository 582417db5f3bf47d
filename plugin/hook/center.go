package hook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInterrupt signals that a Hook handler wants to stop further processing.
var ErrInterrupt = errors.New("hook interrupted")

// HookFn is a hook handler function.
// Returns (modified data, nil) to continue, or (data, ErrInterrupt) to stop.
type HookFn func(ctx context.Context, event string, data interface{}) (interface{}, error)

type hookEntry struct {
	priority int
	fn       HookFn
	name     string
}

// HookCenter manages event hook registrations. Handlers for one event run
// sequentially in priority order; the center is safe for concurrent use.
type HookCenter struct {
	mu    sync.RWMutex
	hooks map[string][]*hookEntry
}

// NewHookCenter creates a new HookCenter.
func NewHookCenter() *HookCenter {
	return &HookCenter{hooks: make(map[string][]*hookEntry)}
}

// Register adds a HookFn for the given event with the given priority (lower runs first).
// name is used for UnregisterAll.
func (hc *HookCenter) Register(event string, priority int, name string, fn HookFn) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	entries := hc.hooks[event]
	entries = append(entries, &hookEntry{priority: priority, fn: fn, name: name})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	hc.hooks[event] = entries
}

// Has reports whether any handler is registered for event.
func (hc *HookCenter) Has(event string) bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return len(hc.hooks[event]) > 0
}

// UnregisterAll removes all hooks registered with the given name across all events.
func (hc *HookCenter) UnregisterAll(name string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	for event, entries := range hc.hooks {
		n := 0
		for _, e := range entries {
			if e.name != name {
				entries[n] = e
				n++
			}
		}
		hc.hooks[event] = entries[:n]
	}
}

// Trigger executes all registered hooks for event in priority order.
// Data flows through each handler, allowing modification.
// If any handler returns ErrInterrupt, execution stops. Other handler errors
// do not stop the chain; the first one is returned, tagged with the handler name.
func (hc *HookCenter) Trigger(ctx context.Context, event string, data interface{}) (interface{}, error) {
	hc.mu.RLock()
	entries := make([]*hookEntry, len(hc.hooks[event]))
	copy(entries, hc.hooks[event])
	hc.mu.RUnlock()

	var first error
	for _, e := range entries {
		out, err := e.fn(ctx, event, data)
		data = out
		if errors.Is(err, ErrInterrupt) {
			return data, err
		}
		if err != nil && first == nil {
			first = fmt.Errorf("hook %s: %w", e.name, err)
		}
	}
	return data, first
}

// Quest lifecycle events.
const (
	// BeforeActivityTrack receives *quest.ActivityEvent before it touches the
	// ledger. Returning ErrInterrupt drops the event.
	BeforeActivityTrack = "before_activity_track"
	// ActivityTrackFailed receives the *quest.ActivityEvent when the ledger
	// could not be saved, after BeforeActivityTrack let it through.
	ActivityTrackFailed = "activity_track_failed"
	// AfterActivityTrack receives *quest.TrackResult.
	AfterActivityTrack = "after_activity_track"
	// OnQuestComplete receives quest.Completion, once per (user, quest).
	OnQuestComplete = "on_quest_complete"
	// OnQuestReset receives the user id (string) after a ledger reset.
	OnQuestReset = "on_quest_reset"
)
