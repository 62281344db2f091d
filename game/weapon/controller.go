// Package weapon implements the firing state machine layered on an
// inventory weapon item: burst fire, magazine and reserve ammo, reload and
// equip timing. The controller is authoritative; remote observers replay
// shots off the replicated burst counter.
package weapon

import (
	"time"

	"go.uber.org/zap"

	"github.com/mireska/ashfall/server/game/item"
	"github.com/mireska/ashfall/server/game/replication"
	"github.com/mireska/ashfall/server/scheduler"
)

// State is the controller's firing phase.
type State int8

const (
	StateIdle State = iota
	StateFiring
	StateReloading
	StateEquipping
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateFiring:    "firing",
	StateReloading: "reloading",
	StateEquipping: "equipping",
}

func (s State) String() string { return stateNames[s] }

// Owner is the character holding the weapon. The controller draws reserve
// ammo from the owner's inventory and never mutates it except through
// ConsumeAmmo.
type Owner interface {
	OwnerID() int64
	// AmmoReserve reports how many rounds of the given ammo def the owner
	// carries outside the magazine.
	AmmoReserve(defID string) int
	// ConsumeAmmo removes up to n rounds and returns how many were taken.
	ConsumeAmmo(defID string, n int) int
}

// Hit is the outcome of one shot's line trace.
type Hit struct {
	Target   Damageable
	Bone     string
	Distance float64
}

// Damageable receives weapon damage. The character type implements it.
type Damageable interface {
	TakeDamage(amount float64, instigator int64)
}

// Tracer resolves the forward line query for a shot. The zone implements it
// against its spatial state; tests fake it.
type Tracer interface {
	TraceShot(shooter Owner, maxRange float64) *Hit
}

// Controller runs one equipped weapon's firing logic. All entry points run
// on the zone goroutine; timer callbacks re-enter through the run executor.
type Controller struct {
	weapon *item.Item
	spec   *item.WeaponSpec
	owner  Owner
	tracer Tracer
	logger *zap.Logger

	state         State
	ammo          *replication.Value[int]
	pendingReload bool
	wantsToFire   bool

	burst *replication.Value[int]

	refireTimer *scheduler.Timer
	reloadTimer *scheduler.Timer
	equipTimer  *scheduler.Timer

	lastShot time.Time
	now      func() time.Time
	// run marshals timer callbacks back onto the zone goroutine.
	run func(func())

	observers []func()
}

// New builds a controller for a weapon item. The magazine starts full.
func New(weapon *item.Item, owner Owner, tracer Tracer, run func(func()), logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if run == nil {
		run = func(fn func()) { fn() }
	}
	spec := weapon.Def().Weapon
	return &Controller{
		weapon:      weapon,
		spec:        spec,
		owner:       owner,
		tracer:      tracer,
		logger:      logger,
		state:       StateIdle,
		ammo:        replication.NewValue(spec.MagCapacity),
		burst:       replication.NewValue(0),
		refireTimer: &scheduler.Timer{},
		reloadTimer: &scheduler.Timer{},
		equipTimer:  &scheduler.Timer{},
		now:         time.Now,
		run:         run,
	}
}

func (c *Controller) Weapon() *item.Item { return c.weapon }
func (c *Controller) State() State       { return c.state }
func (c *Controller) AmmoInMag() int     { return c.ammo.Get() }

// Ammo exposes the replicated magazine count. Synced to the owner only.
func (c *Controller) Ammo() *replication.Value[int] { return c.ammo }

// SetAmmoInMag restores persisted magazine state, clamped to capacity.
func (c *Controller) SetAmmoInMag(n int) {
	if n < 0 {
		n = 0
	}
	if n > c.spec.MagCapacity {
		n = c.spec.MagCapacity
	}
	c.ammo.Set(n)
	c.notify()
}

// BurstCounter exposes the replicated shot counter. Observers pulse one
// shot effect per increment.
func (c *Controller) BurstCounter() *replication.Value[int] { return c.burst }

// AmmoReserve is the owner's loose ammo for this weapon.
func (c *Controller) AmmoReserve() int {
	if c.owner == nil {
		return 0
	}
	return c.owner.AmmoReserve(c.spec.AmmoDefID)
}

// Observe registers a state-change callback.
func (c *Controller) Observe(fn func()) { c.observers = append(c.observers, fn) }

func (c *Controller) notify() {
	for _, fn := range c.observers {
		fn()
	}
}

// CanFire reports whether a shot may be taken right now. Ammo is checked at
// shot time, not here, so the dry-fire click still reaches the client.
func (c *Controller) CanFire() bool {
	if c.owner == nil || c.pendingReload {
		return false
	}
	return c.state == StateIdle || c.state == StateFiring
}

// CanReload reports whether a reload may begin.
func (c *Controller) CanReload() bool {
	if c.owner == nil {
		return false
	}
	if c.state != StateIdle && c.state != StateFiring {
		return false
	}
	return c.ammo.Get() < c.spec.MagCapacity && c.AmmoReserve() > 0
}

// StartFire begins firing. The first shot honors the refire interval left
// over from the previous trigger pull so rapid tapping cannot exceed the
// weapon's rate of fire.
func (c *Controller) StartFire() {
	c.wantsToFire = true
	if !c.CanFire() {
		return
	}
	c.state = StateFiring
	c.notify()

	delay := time.Duration(0)
	if sinceLast := c.now().Sub(c.lastShot); sinceLast < c.spec.RefireInterval() {
		delay = c.spec.RefireInterval() - sinceLast
	}
	c.refireTimer.Arm(delay, func() { c.run(c.handleFiring) })
}

// StopFire releases the trigger.
func (c *Controller) StopFire() {
	c.wantsToFire = false
	c.refireTimer.Cancel()
	if c.state == StateFiring {
		c.state = StateIdle
		c.notify()
	}
}

// handleFiring performs one discrete shot and, for automatic weapons while
// the trigger is held, schedules the next one.
func (c *Controller) handleFiring() {
	if !c.wantsToFire || !c.CanFire() {
		c.StopFire()
		return
	}
	if c.ammo.Get() <= 0 {
		// Dry trigger: stop and try an automatic reload.
		c.StopFire()
		c.StartReload()
		return
	}

	c.FireShot()

	if c.spec.Automatic && c.wantsToFire {
		// Subtract scheduler overrun from the next interval so sustained
		// fire does not drift below the configured rate.
		elapsed := c.now().Sub(c.lastShot)
		next := c.spec.RefireInterval() - elapsed
		if next < 0 {
			next = 0
		}
		c.refireTimer.Arm(next, func() { c.run(c.handleFiring) })
	} else if !c.spec.Automatic {
		c.StopFire()
	}
}

// FireShot spends one round, runs the line trace and applies damage. The
// caller must have checked CanFire; an empty magazine is a no-op.
func (c *Controller) FireShot() {
	if c.ammo.Get() <= 0 {
		return
	}
	c.ammo.Set(c.ammo.Get() - 1)
	c.lastShot = c.now()
	c.burst.Set(c.burst.Get() + 1)
	c.notify()

	if c.tracer == nil {
		return
	}
	hit := c.tracer.TraceShot(c.owner, c.spec.MaxRange)
	if hit == nil || hit.Target == nil {
		return
	}
	dmg := c.spec.Damage * c.boneMultiplier(hit.Bone)
	hit.Target.TakeDamage(dmg, c.owner.OwnerID())
}

// boneMultiplier looks up the per-bone damage table. Exact name match,
// first row wins, 1.0 when absent.
func (c *Controller) boneMultiplier(bone string) float64 {
	for _, row := range c.spec.BoneDamage {
		if row.Bone == bone {
			return row.Multiplier
		}
	}
	return 1
}

// StartReload begins a reload if one is possible. The magazine fills when
// the reload timer completes.
func (c *Controller) StartReload() bool {
	if !c.CanReload() {
		return false
	}
	c.refireTimer.Cancel()
	c.state = StateReloading
	c.pendingReload = true
	c.notify()

	c.reloadTimer.Arm(time.Duration(c.spec.ReloadTime*float64(time.Second)), func() {
		c.run(c.ReloadWeapon)
	})
	return true
}

// ReloadWeapon moves rounds from the owner's reserve into the magazine and
// returns the controller to idle. Exposed separately from StartReload so
// persistence restore can fill instantly.
func (c *Controller) ReloadWeapon() {
	need := c.spec.MagCapacity - c.ammo.Get()
	if need > 0 && c.owner != nil {
		got := c.owner.ConsumeAmmo(c.spec.AmmoDefID, need)
		if got > 0 {
			c.ammo.Set(c.ammo.Get() + got)
		}
	}
	c.pendingReload = false
	c.state = StateIdle
	c.notify()

	if c.wantsToFire {
		c.StartFire()
	}
}

// BeginEquip runs the draw animation delay. When it completes the weapon
// auto-reloads if the magazine is short and ammo is available.
func (c *Controller) BeginEquip() {
	c.state = StateEquipping
	c.notify()
	c.equipTimer.Arm(time.Duration(c.spec.EquipTime*float64(time.Second)), func() {
		c.run(c.finishEquip)
	})
}

func (c *Controller) finishEquip() {
	c.state = StateIdle
	c.notify()
	if c.ammo.Get() < c.spec.MagCapacity && c.AmmoReserve() > 0 {
		c.StartReload()
	}
}

// Suspend cancels any armed timers and drops back to idle without touching
// the magazine. Called when the owner leaves the zone: a timer completing
// after the character was captured would mutate already-persisted ammo.
func (c *Controller) Suspend() {
	c.wantsToFire = false
	c.refireTimer.Cancel()
	c.reloadTimer.Cancel()
	c.equipTimer.Cancel()
	c.pendingReload = false
	if c.state != StateIdle {
		c.state = StateIdle
		c.notify()
	}
}

// Unequip cancels all pending work and returns the magazine's rounds so the
// holster path can bank them back into the owner's inventory.
func (c *Controller) Unequip() int {
	c.wantsToFire = false
	c.refireTimer.Cancel()
	c.reloadTimer.Cancel()
	c.equipTimer.Cancel()
	c.pendingReload = false
	c.state = StateIdle

	mag := c.ammo.Get()
	c.ammo.Set(0)
	c.notify()
	return mag
}
