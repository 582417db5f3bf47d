package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trailmate/server/audit"
	"github.com/trailmate/server/game/quest"
	"go.uber.org/zap"
)

// Message types handled by ActivityHandlers and their replies.
const (
	TypePing           = "ping"
	TypePong           = "pong"
	TypeActivity       = "activity"
	TypeActivityResult = "activity_result"
	TypeQuests         = "quests"
	TypeStats          = "stats"
)

// ActivityHandlers feeds socket messages into the quest engine.
type ActivityHandlers struct {
	svc    *quest.Service
	audit  *audit.Service
	logger *zap.Logger
}

// NewActivityHandlers creates ActivityHandlers. auditSvc may be nil.
func NewActivityHandlers(svc *quest.Service, auditSvc *audit.Service, logger *zap.Logger) *ActivityHandlers {
	return &ActivityHandlers{svc: svc, audit: auditSvc, logger: logger}
}

// RegisterHandlers registers every message type on r.
func (h *ActivityHandlers) RegisterHandlers(r *Router) {
	r.On(TypePing, h.handlePing)
	r.On(TypeActivity, h.handleActivity)
	r.On(TypeQuests, h.handleQuests)
	r.On(TypeStats, h.handleStats)
}

func (h *ActivityHandlers) handlePing(_ context.Context, s *Session, seq uint64, _ json.RawMessage) error {
	s.Send(seq, TypePong, map[string]int64{"ts": time.Now().UnixMilli()})
	return nil
}

type activityPayload struct {
	Type      quest.ActivityType `json:"type"`
	RoomID    string             `json:"roomId"`
	Timestamp *time.Time         `json:"timestamp"`
	Metadata  *quest.Metadata    `json:"metadata"`
}

// handleActivity tracks one event for the session's user. Any userId in the
// payload is ignored.
func (h *ActivityHandlers) handleActivity(ctx context.Context, s *Session, seq uint64, payload json.RawMessage) error {
	var p activityPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if !p.Type.IsValid() {
		return fmt.Errorf("%w: unknown activity type %q", ErrBadPayload, p.Type)
	}
	ev := quest.ActivityEvent{Type: p.Type, UserID: s.UserID, RoomID: p.RoomID, Metadata: p.Metadata}
	if p.Timestamp != nil {
		ev.Timestamp = *p.Timestamp
	}

	res, err := h.svc.Track(ctx, ev)
	if h.audit != nil {
		e := audit.Entry{
			TraceID:  TraceIDFromCtx(ctx),
			UserID:   s.UserID,
			Action:   audit.ActionTrack,
			RoomID:   p.RoomID,
			Metadata: p.Metadata,
		}
		if err != nil {
			e.Error = err.Error()
		} else {
			e.Result = res
			e.QuestsAdvanced = len(res.Advanced)
			e.PointsAwarded = res.PointsAwarded
		}
		h.audit.Log(e)
	}
	if err != nil {
		return err
	}
	s.Send(seq, TypeActivityResult, res)
	return nil
}

func (h *ActivityHandlers) handleQuests(ctx context.Context, s *Session, seq uint64, _ json.RawMessage) error {
	list, err := h.svc.ListForUser(ctx, s.UserID)
	if err != nil {
		return err
	}
	s.Send(seq, TypeQuests, list)
	return nil
}

func (h *ActivityHandlers) handleStats(ctx context.Context, s *Session, seq uint64, _ json.RawMessage) error {
	st, err := h.svc.Stats(ctx, s.UserID)
	if err != nil {
		return err
	}
	s.Send(seq, TypeStats, st)
	return nil
}
