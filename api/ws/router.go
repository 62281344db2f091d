// Package ws carries the realtime protocol: one JSON packet envelope both
// ways. Client requests are dispatched by packet type; server events are
// pushed through the session's send channel by the zone sync pass.
package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mireska/ashfall/server/game/player"
)

// HandlerFunc processes one decoded client packet.
type HandlerFunc func(ctx context.Context, session *player.Session, payload json.RawMessage) error

// Router maps packet types to handlers and applies the per-session receive
// discipline (sequence monotonicity, trace stamping) before any handler
// runs.
type Router struct {
	verbs  map[string]HandlerFunc
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		verbs:  make(map[string]HandlerFunc),
		logger: logger,
	}
}

// On registers the handler for one packet type. Last registration wins.
func (r *Router) On(msgType string, fn HandlerFunc) {
	r.verbs[msgType] = fn
}

// Dispatch runs one raw client frame through decode, the replay check and
// the registered handler. Every failure is logged and the frame dropped;
// nothing here may take down the session's read loop.
func (r *Router) Dispatch(s *player.Session, raw []byte) {
	var pkt player.Packet
	if err := json.Unmarshal(raw, &pkt); err != nil {
		r.logger.Warn("dropping undecodable frame",
			zap.Int64("account_id", s.AccountID),
			zap.Error(err))
		return
	}

	if !acceptSeq(s, pkt.Seq) {
		r.logger.Warn("dropping replayed frame",
			zap.Int64("account_id", s.AccountID),
			zap.String("type", pkt.Type),
			zap.Uint64("seq", pkt.Seq),
			zap.Uint64("last_seq", s.LastSeq))
		return
	}

	fn := r.verbs[pkt.Type]
	if fn == nil {
		r.logger.Debug("no handler for packet type",
			zap.String("type", pkt.Type),
			zap.Int64("account_id", s.AccountID))
		return
	}

	if err := fn(newTrace(s), s, pkt.Payload); err != nil {
		r.logger.Error("packet handler failed",
			zap.String("type", pkt.Type),
			zap.Int64("account_id", s.AccountID),
			zap.String("trace_id", s.TraceID),
			zap.Error(err))
	}
}

// acceptSeq enforces strictly increasing sequence numbers per session,
// advancing the high-water mark on accept. Zero sits outside the sequence
// space: heartbeats and other fire-and-forget frames use it.
func acceptSeq(s *player.Session, seq uint64) bool {
	if seq == 0 {
		return true
	}
	if seq <= s.LastSeq {
		return false
	}
	s.LastSeq = seq
	return true
}

type ctxKeyTraceID struct{}

// newTrace stamps the session with a fresh dispatch trace id and returns a
// context carrying it, correlating handler logs with the audit trail.
func newTrace(s *player.Session) context.Context {
	s.TraceID = uuid.NewString()
	return context.WithValue(context.Background(), ctxKeyTraceID{}, s.TraceID)
}

// TraceIDFromCtx returns the dispatch trace id stamped by the router, or
// empty for contexts that never passed through Dispatch.
func TraceIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTraceID{}).(string); ok {
		return v
	}
	return ""
}
