// Package action implements the request/validate/apply dispatch every
// player-initiated gameplay verb goes through. Clients never mutate game
// state directly: a request arrives over the session transport, is handed
// to the owning zone, and runs here against the authoritative copy.
package action

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Rejection is a policy failure: the request was well formed but the game
// state does not permit it (inventory full, out of range, no ammo). The
// reason is pushed back to the requester as a transient notice.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

// Reject builds a policy rejection.
func Reject(format string, args ...any) error {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}

// ErrInvalid marks a structurally broken request: missing target, malformed
// payload, stale entity reference. Invalid requests are dropped without a
// reply.
var ErrInvalid = errors.New("invalid request")

// Invalid wraps ErrInvalid with detail for the log line.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Ctx carries one request through validate and apply.
type Ctx struct {
	// ActorID is the requesting character.
	ActorID int64
	// Verb is the endpoint name the request targets.
	Verb string
	// Payload is the raw request body; handlers decode it with Bind.
	Payload json.RawMessage

	// Notify pushes a one-way event back to the requesting session. May be
	// nil for server-local calls.
	Notify func(event string, data any)
}

// Bind decodes the payload into v. A decode failure is a validation
// rejection.
func (c *Ctx) Bind(v any) error {
	if len(c.Payload) == 0 {
		return Invalid("empty payload")
	}
	if err := json.Unmarshal(c.Payload, v); err != nil {
		return Invalid("bad payload: %v", err)
	}
	return nil
}

// Notice sends a transient message to the requester when a transport is
// attached.
func (c *Ctx) Notice(event string, data any) {
	if c.Notify != nil {
		c.Notify(event, data)
	}
}

// Endpoint is one gameplay verb. Validate rejects structurally invalid
// requests; Apply re-checks game-state legality itself and mutates. The
// split exists because a request valid at send time may be stale by the
// time it executes.
type Endpoint struct {
	Verb     string
	Validate func(*Ctx) error
	Apply    func(*Ctx) error
}
