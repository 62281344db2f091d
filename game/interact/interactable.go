// Package interact implements the focus/hold/perform lifecycle for world
// objects a character can use: pickups, loot containers, doors. The
// interactable holds aggregate state only; hold timers belong to the
// interacting character.
package interact

import "time"

// Interactor is the character-side handle an interactable tracks. The
// concrete character type lives a layer above; the interactable only needs
// a stable identity.
type Interactor interface {
	InteractorID() int64
}

// Config is the static tuning of one interactable.
type Config struct {
	// HoldTime is how long the interactor must hold before the interaction
	// completes. Zero means instant.
	HoldTime float64
	// Distance is the maximum range at which this object may be focused,
	// independent of the character's own scan reach.
	Distance float64
	// AllowMultiple permits concurrent interactors. When false a second
	// BeginInteract is rejected until the first ends.
	AllowMultiple bool

	Name       string
	ActionText string
}

type holdState struct {
	actor   Interactor
	beganAt time.Time
}

// Interactable tracks who is focusing and holding on a world object and
// broadcasts lifecycle notifications. All mutation happens on the zone
// goroutine; there is no locking here.
type Interactable struct {
	cfg    Config
	active bool

	interactors []holdState

	onFocusStart []func(Interactor)
	onFocusStop  []func(Interactor)
	onBegin      []func(Interactor)
	onEnd        []func(Interactor)
	onInteract   []func(Interactor)

	now func() time.Time
}

func New(cfg Config) *Interactable {
	if cfg.Distance <= 0 {
		cfg.Distance = 2
	}
	return &Interactable{cfg: cfg, active: true, now: time.Now}
}

func (in *Interactable) Config() Config { return in.cfg }
func (in *Interactable) Active() bool   { return in.active }

// Interactors returns the characters currently holding an interaction.
func (in *Interactable) Interactors() []Interactor {
	out := make([]Interactor, len(in.interactors))
	for i, h := range in.interactors {
		out[i] = h.actor
	}
	return out
}

// Notification registration. Handlers run synchronously on the zone
// goroutine in registration order.

func (in *Interactable) OnFocusStart(fn func(Interactor)) {
	in.onFocusStart = append(in.onFocusStart, fn)
}

func (in *Interactable) OnFocusStop(fn func(Interactor)) {
	in.onFocusStop = append(in.onFocusStop, fn)
}

func (in *Interactable) OnBeginInteract(fn func(Interactor)) {
	in.onBegin = append(in.onBegin, fn)
}

func (in *Interactable) OnEndInteract(fn func(Interactor)) {
	in.onEnd = append(in.onEnd, fn)
}

// OnInteract fires when a hold completes. Downstream gameplay (loot, pickup)
// subscribes here.
func (in *Interactable) OnInteract(fn func(Interactor)) {
	in.onInteract = append(in.onInteract, fn)
}

// CanInteract reports whether actor may begin (or complete) an interaction.
// An actor already holding counts as allowed so a completing hold is not
// rejected by its own membership.
func (in *Interactable) CanInteract(actor Interactor) bool {
	if !in.active || actor == nil {
		return false
	}
	if in.cfg.AllowMultiple {
		return true
	}
	switch len(in.interactors) {
	case 0:
		return true
	case 1:
		return in.interactors[0].actor.InteractorID() == actor.InteractorID()
	}
	return false
}

func (in *Interactable) StartFocus(actor Interactor) bool {
	if !in.active || actor == nil {
		return false
	}
	for _, fn := range in.onFocusStart {
		fn(actor)
	}
	return true
}

// StopFocus drops an actor's focus. If the actor was mid-hold the
// interaction ends too.
func (in *Interactable) StopFocus(actor Interactor) {
	if actor == nil {
		return
	}
	if in.holding(actor) {
		in.EndInteract(actor)
	}
	for _, fn := range in.onFocusStop {
		fn(actor)
	}
}

// BeginInteract starts a hold. With zero hold time the interaction completes
// inline; otherwise the caller owns the completion timer and invokes
// Interact when it fires.
func (in *Interactable) BeginInteract(actor Interactor) bool {
	if !in.CanInteract(actor) {
		return false
	}
	if in.holding(actor) {
		return false
	}
	in.interactors = append(in.interactors, holdState{actor: actor, beganAt: in.now()})
	for _, fn := range in.onBegin {
		fn(actor)
	}
	if in.cfg.HoldTime <= 0 {
		in.Interact(actor)
	}
	return true
}

// EndInteract removes an actor's hold. Idempotent for actors not holding.
func (in *Interactable) EndInteract(actor Interactor) {
	if actor == nil {
		return
	}
	if !in.removeInteractor(actor) {
		return
	}
	for _, fn := range in.onEnd {
		fn(actor)
	}
}

// Interact completes a hold and broadcasts to gameplay subscribers. The
// actor's hold membership is released first so single-interactor objects
// free up immediately.
func (in *Interactable) Interact(actor Interactor) bool {
	if !in.CanInteract(actor) {
		return false
	}
	in.EndInteract(actor)
	for _, fn := range in.onInteract {
		fn(actor)
	}
	return true
}

// InteractPercentage reports hold progress in [0,1] for the first
// interactor, 0 when nobody is holding.
func (in *Interactable) InteractPercentage() float64 {
	if len(in.interactors) == 0 || in.cfg.HoldTime <= 0 {
		return 0
	}
	elapsed := in.now().Sub(in.interactors[0].beganAt).Seconds()
	p := elapsed / in.cfg.HoldTime
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Deactivate force-stops every interactor and refuses all future
// interaction. Used when a pickup is taken or a container despawns.
func (in *Interactable) Deactivate() {
	for len(in.interactors) > 0 {
		actor := in.interactors[0].actor
		in.EndInteract(actor)
		for _, fn := range in.onFocusStop {
			fn(actor)
		}
	}
	in.active = false
}

func (in *Interactable) holding(actor Interactor) bool {
	for _, h := range in.interactors {
		if h.actor.InteractorID() == actor.InteractorID() {
			return true
		}
	}
	return false
}

func (in *Interactable) removeInteractor(actor Interactor) bool {
	for i, h := range in.interactors {
		if h.actor.InteractorID() == actor.InteractorID() {
			in.interactors = append(in.interactors[:i], in.interactors[i+1:]...)
			return true
		}
	}
	return false
}
