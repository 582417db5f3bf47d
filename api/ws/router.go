package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TypeError is sent back when a handler fails.
const TypeError = "error"

// ErrBadPayload marks client errors whose message is safe to echo back.
var ErrBadPayload = errors.New("bad payload")

// HandlerFunc processes a decoded WS message payload. seq is the request's
// sequence number, to be echoed in any reply.
type HandlerFunc func(ctx context.Context, s *Session, seq uint64, payload json.RawMessage) error

// Router dispatches incoming WS packets to registered handlers.
type Router struct {
	handlers map[string]HandlerFunc
	logger   *zap.Logger
}

// NewRouter creates a new Router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// On registers a HandlerFunc for the given message type.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.handlers[msgType] = fn
}

// Dispatch decodes raw bytes, validates seq, and invokes the matching handler.
func (r *Router) Dispatch(ctx context.Context, s *Session, raw []byte) {
	var pkt Packet
	if err := json.Unmarshal(raw, &pkt); err != nil {
		r.logger.Warn("malformed packet", zap.String("user_id", s.UserID), zap.Error(err))
		s.Send(0, TypeError, map[string]string{"error": "malformed packet"})
		return
	}

	// Monotonic seq check (anti-replay). Seq == 0 means no seq tracking.
	if pkt.Seq != 0 && pkt.Seq <= s.LastSeq {
		r.logger.Warn("replayed or out-of-order packet",
			zap.String("user_id", s.UserID),
			zap.Uint64("seq", pkt.Seq),
			zap.Uint64("last_seq", s.LastSeq))
		return
	}
	if pkt.Seq != 0 {
		s.LastSeq = pkt.Seq
	}

	s.TraceID = uuid.NewString()
	ctx = context.WithValue(ctx, ctxKeyTraceID{}, s.TraceID)

	fn, ok := r.handlers[pkt.Type]
	if !ok {
		r.logger.Debug("unhandled message type",
			zap.String("type", pkt.Type),
			zap.String("user_id", s.UserID))
		s.Send(pkt.Seq, TypeError, map[string]string{"error": "unknown type " + pkt.Type})
		return
	}

	if err := fn(ctx, s, pkt.Seq, pkt.Payload); err != nil {
		r.logger.Error("handler error",
			zap.String("type", pkt.Type),
			zap.String("user_id", s.UserID),
			zap.String("trace_id", s.TraceID),
			zap.Error(err))
		msg := "internal error"
		if errors.Is(err, ErrBadPayload) {
			msg = err.Error()
		}
		s.Send(pkt.Seq, TypeError, map[string]string{"error": msg})
	}
}

type ctxKeyTraceID struct{}

// TraceIDFromCtx extracts the trace ID from a handler context.
func TraceIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTraceID{}).(string); ok {
		return v
	}
	return ""
}
