// Package world runs the zone simulation: one goroutine per zone owns every
// character, pickup and container inside it. All gameplay mutation is
// serialized through that goroutine, which is why none of the entity types
// carry locks.
package world

import (
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/mireska/ashfall/server/config"
	"github.com/mireska/ashfall/server/game/action"
	"github.com/mireska/ashfall/server/game/character"
	"github.com/mireska/ashfall/server/game/geo"
	"github.com/mireska/ashfall/server/game/interact"
	"github.com/mireska/ashfall/server/game/item"
	"github.com/mireska/ashfall/server/game/replication"
	"github.com/mireska/ashfall/server/game/weapon"
	"github.com/mireska/ashfall/server/resource"
	"github.com/mireska/ashfall/server/scheduler"
)

// Session is the transport half of a connected player. The player package
// implements it over a websocket; tests implement it in memory.
type Session interface {
	SessionCharID() int64
	View() *replication.View
	Push(event string, data any)
}

// aimConeCos gates the hit test: a target must be within ~10 degrees of the
// aim direction.
const aimConeCos = 0.985

// Zone is one simulated region with its own tick loop.
type Zone struct {
	def    *resource.ZoneDef
	cfg    config.GameConfig
	defs   *resource.Loader
	logger *zap.Logger
	rng    *rand.Rand

	chars    map[int64]*character.Character
	charList replication.KeyedList
	sessions map[int64]Session
	aimPitch map[int64]float64

	pickups    map[int64]*Pickup
	pickupList replication.KeyedList

	containers    map[int64]*LootContainer
	containerList replication.KeyedList

	spawners []*LootSpawner

	router *action.Router

	respawnTimers map[int64]*scheduler.Timer
	deathHooks    []func(victim *character.Character, instigator int64)

	cmds   chan func()
	stopCh chan struct{}
	now    func() time.Time

	sinceScan  time.Duration
	sinceDrain time.Duration
}

func NewZone(def *resource.ZoneDef, cfg config.GameConfig, defs *resource.Loader, logger *zap.Logger) *Zone {
	if logger == nil {
		logger = zap.NewNop()
	}
	z := &Zone{
		def:           def,
		cfg:           cfg,
		defs:          defs,
		logger:        logger.With(zap.String("zone", def.ID)),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		chars:         make(map[int64]*character.Character),
		sessions:      make(map[int64]Session),
		aimPitch:      make(map[int64]float64),
		pickups:       make(map[int64]*Pickup),
		containers:    make(map[int64]*LootContainer),
		respawnTimers: make(map[int64]*scheduler.Timer),
		router:        action.NewRouter(logger),
		cmds:          make(chan func(), 256),
		stopCh:        make(chan struct{}),
		now:           time.Now,
	}
	z.registerEndpoints()

	for _, ct := range def.Containers {
		c := NewLootContainer(ct, defs.Table(ct.LootTableID), defs, z.rng)
		z.containers[c.ID()] = c
		z.containerList.Bump()
	}
	for _, sp := range def.Spawners {
		s := newLootSpawner(sp, z)
		s.spawn()
		z.spawners = append(z.spawners, s)
	}
	return z
}

func (z *Zone) ID() string             { return z.def.ID }
func (z *Zone) Name() string           { return z.def.Name }
func (z *Zone) SpawnPoint() geo.Vec3   { return z.def.SpawnPoint }
func (z *Zone) Router() *action.Router { return z.router }

func (z *Zone) tickInterval() time.Duration {
	ms := z.cfg.ZoneTickMs
	if ms <= 0 {
		ms = 50
	}
	return time.Duration(ms) * time.Millisecond
}

// Run starts the zone loop. Call in a goroutine.
func (z *Zone) Run() {
	interval := z.tickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			z.tick(interval)
		case fn := <-z.cmds:
			fn()
		case <-z.stopCh:
			return
		}
	}
}

// Stop signals the zone loop to exit.
func (z *Zone) Stop() {
	select {
	case <-z.stopCh:
	default:
		close(z.stopCh)
	}
}

// Do queues fn onto the zone goroutine. Safe to call from any goroutine;
// the queue is dropped once the zone stops.
func (z *Zone) Do(fn func()) {
	select {
	case z.cmds <- fn:
	case <-z.stopCh:
	}
}

// HandleAction queues a player request for dispatch on the zone goroutine.
func (z *Zone) HandleAction(sess Session, verb string, payload json.RawMessage) {
	z.Do(func() {
		ctx := &action.Ctx{
			ActorID: sess.SessionCharID(),
			Verb:    verb,
			Payload: payload,
			Notify:  sess.Push,
		}
		// Dispatch handles its own logging and requester notices.
		_ = z.router.Dispatch(ctx)
	})
}

// Join places a character and its session into the zone. Must run on the
// zone goroutine (wrap in Do when calling from outside).
func (z *Zone) Join(c *character.Character, sess Session) {
	c.SetRunner(z.Do)
	c.SetShotTracer(z)
	if sess != nil {
		c.OnNotice(sess.Push)
		z.sessions[c.ID()] = sess
	}
	c.OnDeath(z.handleDeath)
	if c.Position().Get() == (geo.Vec3{}) {
		c.SetTransform(z.def.SpawnPoint, 0)
	}
	z.chars[c.ID()] = c
	z.charList.Bump()
	z.logger.Info("character joined",
		zap.Int64("char_id", c.ID()),
		zap.String("name", c.Name()))
}

// Leave removes a character. The caller persists it.
func (z *Zone) Leave(charID int64) *character.Character {
	c := z.chars[charID]
	if c == nil {
		return nil
	}
	c.SetFocus(nil)
	c.SetLootSource(nil)
	if ctrl := c.WeaponCtrl(); ctrl != nil {
		ctrl.Suspend()
	}
	delete(z.chars, charID)
	z.charList.Bump()
	delete(z.sessions, charID)
	delete(z.aimPitch, charID)
	if tm := z.respawnTimers[charID]; tm != nil {
		tm.Cancel()
		delete(z.respawnTimers, charID)
	}
	z.logger.Info("character left", zap.Int64("char_id", charID))
	return c
}

// Character returns a zone member by id.
func (z *Zone) Character(id int64) *character.Character { return z.chars[id] }

// Characters returns all zone members.
func (z *Zone) Characters() []*character.Character {
	out := make([]*character.Character, 0, len(z.chars))
	for _, c := range z.chars {
		out = append(out, c)
	}
	return out
}

// SpawnPickup places an item stack on the ground.
func (z *Zone) SpawnPickup(def *item.Def, quantity int, pos geo.Vec3, lifetime time.Duration) *Pickup {
	p := NewPickup(def, quantity, pos, lifetime)
	p.Interactable().OnInteract(func(who interact.Interactor) {
		if c, ok := who.(*character.Character); ok {
			z.takePickup(p, c)
		}
	})
	p.OnTaken(func(taken *Pickup) { z.despawnPickup(taken.ID()) })
	z.pickups[p.ID()] = p
	z.pickupList.Bump()
	return p
}

func (z *Zone) takePickup(p *Pickup, c *character.Character) {
	given := p.Take(c)
	if given <= 0 {
		if sess := z.sessions[c.ID()]; sess != nil {
			sess.Push("pickup_failed", map[string]any{"pickup_id": p.ID()})
		}
		return
	}
	// A partial take shrinks the ground stack in place. Observer views only
	// walk the pickups when the list key moves, so move it.
	if p.Item().Quantity() > 0 {
		z.pickupList.Bump()
	}
}

func (z *Zone) despawnPickup(id int64) {
	if _, ok := z.pickups[id]; !ok {
		return
	}
	delete(z.pickups, id)
	z.pickupList.Bump()
	for _, c := range z.chars {
		if f := c.Focused(); f != nil && !f.Active() {
			c.SetFocus(nil)
		}
	}
}

// OnDeath registers a hook invoked on the zone goroutine whenever a
// character dies. Used for the kill feed and kill/death counters.
func (z *Zone) OnDeath(fn func(victim *character.Character, instigator int64)) {
	z.deathHooks = append(z.deathHooks, fn)
}

// handleDeath drops the dead character's belongings into a corpse container
// and schedules a respawn.
func (z *Zone) handleDeath(c *character.Character, instigator int64) {
	z.logger.Info("character died",
		zap.Int64("char_id", c.ID()),
		zap.Int64("instigator", instigator))

	for _, fn := range z.deathHooks {
		fn(c, instigator)
	}

	// Unequip everything first: banking a weapon's magazine can grow an ammo
	// stack or add a new one, and the corpse must hold the final contents.
	var equipped []*item.Item
	for _, it := range c.Inventory().Items() {
		if it.Equipped() {
			equipped = append(equipped, it)
		}
	}
	for _, it := range equipped {
		c.SetEquipped(it, false)
	}

	items := append([]*item.Item(nil), c.Inventory().Items()...)
	if len(items) > 0 {
		corpse := &LootContainer{
			id:   nextEntityID.Add(1),
			name: c.Name() + "'s corpse",
			pos:  c.Position().Get(),
			inv:  item.NewInventory(len(items), 0),
			inter: interact.New(interact.Config{
				HoldTime:      1,
				Distance:      2.5,
				AllowMultiple: true,
				Name:          c.Name() + "'s corpse",
				ActionText:    "Loot",
			}),
		}
		for _, it := range items {
			corpse.inv.TryAddItem(it)
		}
		c.Inventory().Clear()
		corpse.inter.OnInteract(func(who interact.Interactor) {
			if looter, ok := who.(*character.Character); ok {
				looter.SetLootSource(corpse.inv)
			}
		})
		z.containers[corpse.id] = corpse
		z.containerList.Bump()
	}

	if sess := z.sessions[c.ID()]; sess != nil {
		sess.Push("you_died", map[string]any{"instigator": instigator})
	}

	delay := time.Duration(z.cfg.RespawnDelayS) * time.Second
	tm := &scheduler.Timer{}
	z.respawnTimers[c.ID()] = tm
	tm.Arm(delay, func() {
		z.Do(func() {
			delete(z.respawnTimers, c.ID())
			if z.chars[c.ID()] == nil {
				return
			}
			c.Respawn()
			c.SetTransform(z.def.SpawnPoint, 0)
			if sess := z.sessions[c.ID()]; sess != nil {
				sess.Push("respawned", nil)
			}
		})
	})
}

// tick advances the simulation one frame.
func (z *Zone) tick(dt time.Duration) {
	z.sinceScan += dt
	if hz := z.cfg.InteractCheckHz; hz > 0 {
		if z.sinceScan >= time.Duration(float64(time.Second)/hz) {
			z.sinceScan = 0
			z.scanInteractions()
		}
	}

	z.sinceDrain += dt
	if s := z.cfg.VitalsDrainS; s > 0 {
		if z.sinceDrain >= time.Duration(s)*time.Second {
			z.sinceDrain = 0
			for _, c := range z.chars {
				c.DrainVitals(z.cfg.HungerDrain, z.cfg.ThirstDrain, z.cfg.StarvationDamage)
			}
		}
	}

	z.expirePickups()
	z.syncSessions()
}

func (z *Zone) expirePickups() {
	now := z.now()
	for id, p := range z.pickups {
		if p.Expired(now) {
			p.Interactable().Deactivate()
			delete(z.pickups, id)
			z.pickupList.Bump()
		}
	}
}

// scanInteractions refreshes every character's focus target: the nearest
// active interactable within both the scan reach and the target's own
// interaction distance.
func (z *Zone) scanInteractions() {
	for _, c := range z.chars {
		if c.Dead() {
			c.SetFocus(nil)
			continue
		}
		c.SetFocus(z.findTarget(c.Position().Get()))
	}
}

func (z *Zone) findTarget(from geo.Vec3) *interact.Interactable {
	var best *interact.Interactable
	bestDist := z.cfg.InteractCheckDist
	if bestDist <= 0 {
		bestDist = 10
	}

	consider := func(in *interact.Interactable, pos geo.Vec3) {
		if !in.Active() {
			return
		}
		d := from.DistanceTo(pos)
		if d <= in.Config().Distance && d < bestDist {
			best = in
			bestDist = d
		}
	}
	for _, p := range z.pickups {
		consider(p.Interactable(), p.Position())
	}
	for _, ct := range z.containers {
		consider(ct.Interactable(), ct.Position())
	}
	return best
}

// TraceShot implements weapon.Tracer: a cone test against living
// characters, nearest hit wins. The hit bone follows the shooter's aim
// pitch since the server has no skeletal geometry.
func (z *Zone) TraceShot(shooter weapon.Owner, maxRange float64) *weapon.Hit {
	sc := z.chars[shooter.OwnerID()]
	if sc == nil {
		return nil
	}
	origin := sc.Position().Get()
	dir := geo.YawDir(sc.Yaw())

	var best *character.Character
	bestDist := maxRange
	for id, c := range z.chars {
		if id == sc.ID() || c.Dead() {
			continue
		}
		to := c.Position().Get().Sub(origin)
		d := to.Length()
		if d == 0 || d > bestDist {
			continue
		}
		if dir.Dot(to.Normalized()) < aimConeCos {
			continue
		}
		best = c
		bestDist = d
	}
	if best == nil {
		return nil
	}
	return &weapon.Hit{
		Target:   best,
		Bone:     z.boneForPitch(z.aimPitch[sc.ID()]),
		Distance: bestDist,
	}
}

func (z *Zone) boneForPitch(pitch float64) string {
	switch {
	case pitch > 15:
		return "head"
	case pitch < -20:
		return "thigh_l"
	default:
		return "spine_01"
	}
}

// distance2D ignores height when range-checking actions.
func distance2D(a, b geo.Vec3) float64 {
	dx, dy := a.X-b.X, a.Y-b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
