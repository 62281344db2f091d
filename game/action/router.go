package action

import (
	"errors"

	"go.uber.org/zap"
)

// Router dispatches requests to registered endpoints. One router serves one
// zone; Dispatch is only called from that zone's goroutine, so there is no
// locking.
type Router struct {
	endpoints map[string]*Endpoint
	logger    *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		endpoints: make(map[string]*Endpoint),
		logger:    logger,
	}
}

// Register wires an endpoint. Registering the same verb twice is a
// programming error and panics at startup.
func (r *Router) Register(ep *Endpoint) {
	if ep == nil || ep.Verb == "" || ep.Apply == nil {
		panic("action: endpoint needs a verb and an apply func")
	}
	if _, dup := r.endpoints[ep.Verb]; dup {
		panic("action: duplicate endpoint " + ep.Verb)
	}
	r.endpoints[ep.Verb] = ep
}

// Verbs lists the registered endpoint names.
func (r *Router) Verbs() []string {
	out := make([]string, 0, len(r.endpoints))
	for v := range r.endpoints {
		out = append(out, v)
	}
	return out
}

// Dispatch runs one request. Unknown verbs and validation failures are
// dropped silently apart from a log line; policy rejections are pushed back
// to the requester and reported to the caller.
func (r *Router) Dispatch(ctx *Ctx) error {
	ep, ok := r.endpoints[ctx.Verb]
	if !ok {
		r.logger.Debug("unknown action verb",
			zap.String("verb", ctx.Verb),
			zap.Int64("actor", ctx.ActorID))
		return Invalid("unknown verb %s", ctx.Verb)
	}

	if ep.Validate != nil {
		if err := ep.Validate(ctx); err != nil {
			r.logger.Debug("action rejected by validation",
				zap.String("verb", ctx.Verb),
				zap.Int64("actor", ctx.ActorID),
				zap.Error(err))
			return err
		}
	}

	if err := ep.Apply(ctx); err != nil {
		var rej *Rejection
		if errors.As(err, &rej) {
			ctx.Notice("action_rejected", map[string]any{
				"verb":   ctx.Verb,
				"reason": rej.Reason,
			})
			r.logger.Debug("action rejected by policy",
				zap.String("verb", ctx.Verb),
				zap.Int64("actor", ctx.ActorID),
				zap.String("reason", rej.Reason))
			return err
		}
		r.logger.Debug("action dropped",
			zap.String("verb", ctx.Verb),
			zap.Int64("actor", ctx.ActorID),
			zap.Error(err))
		return err
	}
	return nil
}
