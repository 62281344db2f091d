// Package character implements the server-side player character: vitals,
// inventory and equipment, looting, interaction targeting and the equipped
// weapon. All mutation runs on the owning zone's goroutine.
package character

import (
	"time"

	"go.uber.org/zap"

	"github.com/mireska/ashfall/server/game/action"
	"github.com/mireska/ashfall/server/game/geo"
	"github.com/mireska/ashfall/server/game/interact"
	"github.com/mireska/ashfall/server/game/item"
	"github.com/mireska/ashfall/server/game/replication"
	"github.com/mireska/ashfall/server/game/weapon"
	"github.com/mireska/ashfall/server/scheduler"
)

// DefSource resolves item def ids. The resource registry implements it.
type DefSource interface {
	ItemDef(id string) *item.Def
}

// Config is the per-character gameplay tuning taken from server config.
type Config struct {
	InventoryCapacity int
	WeightCapacity    float64
}

// Character is one player's authoritative in-world state.
type Character struct {
	id        int64
	accountID int64
	name      string
	logger    *zap.Logger

	pos *replication.Value[geo.Vec3]
	yaw float64

	health  *replication.Value[float64]
	stamina *replication.Value[float64]
	hunger  *replication.Value[float64]
	thirst  *replication.Value[float64]
	dead    bool

	inventory *item.Inventory
	equipment *item.Equipment
	weapon    *weapon.Controller

	defs   DefSource
	tracer weapon.Tracer
	// run marshals timer callbacks back onto the zone goroutine.
	run func(func())

	lootSource *item.Inventory

	focused   *interact.Interactable
	holdTimer scheduler.Timer

	onDeath  []func(*Character, int64)
	onNotice func(event string, data any)
}

func New(id, accountID int64, name string, cfg Config, defs DefSource, logger *zap.Logger) *Character {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Character{
		id:        id,
		accountID: accountID,
		name:      name,
		logger:    logger,
		pos:       replication.NewValue(geo.Vec3{}),
		health:    replication.NewValue(MaxHealth),
		stamina:   replication.NewValue(MaxStamina),
		hunger:    replication.NewValue(MaxHunger),
		thirst:    replication.NewValue(MaxThirst),
		inventory: item.NewInventory(cfg.InventoryCapacity, cfg.WeightCapacity),
		equipment: item.NewEquipment(),
		defs:      defs,
		run:       func(fn func()) { fn() },
	}
	c.inventory.OnItemAdded(func(it *item.Item) { it.AddedToInventory(c) })
	return c
}

func (c *Character) ID() int64        { return c.id }
func (c *Character) AccountID() int64 { return c.accountID }
func (c *Character) Name() string     { return c.name }

// InteractorID satisfies interact.Interactor.
func (c *Character) InteractorID() int64 { return c.id }

// OwnerID satisfies weapon.Owner.
func (c *Character) OwnerID() int64 { return c.id }

func (c *Character) Inventory() *item.Inventory     { return c.inventory }
func (c *Character) Equipment() *item.Equipment     { return c.equipment }
func (c *Character) WeaponCtrl() *weapon.Controller { return c.weapon }

func (c *Character) Position() *replication.Value[geo.Vec3] { return c.pos }

func (c *Character) Yaw() float64 { return c.yaw }

// SetTransform applies authoritative movement. Movement itself is
// client-simulated and server-accepted; the server only needs the position
// for range checks and drop placement.
func (c *Character) SetTransform(pos geo.Vec3, yaw float64) {
	c.yaw = yaw
	if pos != c.pos.Get() {
		c.pos.Set(pos)
	}
}

// SetRunner installs the zone's callback executor. Timer completions for
// interaction holds go through it.
func (c *Character) SetRunner(run func(func())) {
	if run != nil {
		c.run = run
	}
}

// SetShotTracer installs the zone's line-trace implementation for the
// equipped weapon.
func (c *Character) SetShotTracer(t weapon.Tracer) { c.tracer = t }

// OnNotice installs the session push used for transient player messages.
func (c *Character) OnNotice(fn func(event string, data any)) { c.onNotice = fn }

// OnDeath registers a death callback receiving the character and the
// instigator id (0 for environment deaths).
func (c *Character) OnDeath(fn func(*Character, int64)) {
	c.onDeath = append(c.onDeath, fn)
}

func (c *Character) notice(event string, data any) {
	if c.onNotice != nil {
		c.onNotice(event, data)
	}
}

// SetEquipped satisfies item.User. Equipping a weapon builds its fire
// controller; unequipping banks the magazine back into the inventory.
func (c *Character) SetEquipped(it *item.Item, equip bool) bool {
	if it == nil || c.dead {
		return false
	}
	if !equip {
		if c.weapon != nil && c.weapon.Weapon() == it {
			c.bankMagazine(c.weapon)
			c.weapon = nil
		}
		return c.equipment.Unequip(it)
	}

	displaced, ok := c.equipment.Equip(it)
	if !ok {
		return false
	}
	if displaced != nil && c.weapon != nil && c.weapon.Weapon() == displaced {
		c.bankMagazine(c.weapon)
		c.weapon = nil
	}
	if it.Def().Kind == item.KindWeapon {
		c.weapon = weapon.New(it, c, c.tracer, c.run, c.logger)
		c.weapon.BeginEquip()
	}
	return true
}

// bankMagazine returns the unequipped weapon's chambered rounds to the
// inventory. Rounds that do not fit are lost with a notice rather than
// duplicated.
func (c *Character) bankMagazine(ctrl *weapon.Controller) {
	mag := ctrl.Unequip()
	if mag <= 0 || c.defs == nil {
		return
	}
	ammoDef := c.defs.ItemDef(ctrl.Weapon().Def().Weapon.AmmoDefID)
	if ammoDef == nil {
		return
	}
	res := c.inventory.TryAddItemFromDef(ammoDef, mag)
	if res.Given < mag {
		c.notice("ammo_lost", map[string]any{"quantity": mag - res.Given})
	}
}

// AmmoReserve satisfies weapon.Owner: loose rounds across all stacks.
func (c *Character) AmmoReserve(defID string) int {
	total := 0
	for _, it := range c.inventory.Items() {
		if it.Def().ID == defID {
			total += it.Quantity()
		}
	}
	return total
}

// ConsumeAmmo satisfies weapon.Owner.
func (c *Character) ConsumeAmmo(defID string, n int) int {
	taken := 0
	for _, it := range c.inventory.Items() {
		if taken >= n {
			break
		}
		if it.Def().ID == defID {
			taken += c.inventory.ConsumeQuantity(it, n-taken)
		}
	}
	return taken
}

// IsLooting satisfies item.User.
func (c *Character) IsLooting() bool { return c.lootSource != nil }

// LootSource returns the container inventory currently open, nil otherwise.
func (c *Character) LootSource() *item.Inventory { return c.lootSource }

// SetLootSource opens a container for looting. Passing nil closes it.
func (c *Character) SetLootSource(src *item.Inventory) {
	c.lootSource = src
	if src != nil {
		c.notice("loot_opened", map[string]any{"inventory": src.SyncName()})
	} else {
		c.notice("loot_closed", nil)
	}
}

// LootItem transfers one stack from the open loot source into the
// character's inventory. Partial fits consume only what was granted.
func (c *Character) LootItem(itemID int64) (int, error) {
	if c.lootSource == nil {
		return 0, action.Invalid("no loot source open")
	}
	it := c.lootSource.FindItemByID(itemID)
	if it == nil {
		return 0, action.Invalid("item %d not in loot source", itemID)
	}
	if !c.lootSource.HasItemQuantity(it.Def().ID, 1) {
		return 0, action.Reject("that item is gone")
	}
	res := c.inventory.TryAddItem(it)
	if res.Given <= 0 {
		return 0, action.Reject("%s", res.Err)
	}
	c.lootSource.ConsumeQuantity(it, res.Given)
	return res.Given, nil
}

// UseItem performs an inventory item's use behavior.
func (c *Character) UseItem(itemID int64) error {
	if c.dead {
		return action.Reject("you are dead")
	}
	it := c.inventory.FindItemByID(itemID)
	if it == nil {
		return action.Invalid("item %d not in inventory", itemID)
	}
	it.Use(c)
	return nil
}

// DropItem consumes up to qty from an inventory stack and returns what was
// dropped so the zone can spawn a world pickup. An equipped item is
// unequipped first.
func (c *Character) DropItem(itemID int64, qty int) (*item.Def, int, error) {
	if qty <= 0 {
		return nil, 0, action.Invalid("non-positive drop quantity")
	}
	it := c.inventory.FindItemByID(itemID)
	if it == nil {
		return nil, 0, action.Invalid("item %d not in inventory", itemID)
	}
	if it.Equipped() && !c.SetEquipped(it, false) {
		return nil, 0, action.Reject("cannot unequip that")
	}
	def := it.Def()
	consumed := c.inventory.ConsumeQuantity(it, qty)
	if consumed <= 0 {
		return nil, 0, action.Reject("nothing to drop")
	}
	return def, consumed, nil
}

// SetFocus switches the interaction target found by the zone's scan.
// Passing nil clears focus. Switching away force-ends any running hold.
func (c *Character) SetFocus(target *interact.Interactable) {
	if c.focused == target {
		return
	}
	if c.focused != nil {
		c.holdTimer.Cancel()
		c.focused.StopFocus(c)
	}
	c.focused = target
	if target != nil {
		target.StartFocus(c)
	}
}

// Focused returns the current interaction target.
func (c *Character) Focused() *interact.Interactable { return c.focused }

// BeginInteract starts holding on the focused target. Timed holds arm the
// character's own timer; the interactable fires when it elapses.
func (c *Character) BeginInteract() error {
	if c.dead {
		return action.Reject("you are dead")
	}
	target := c.focused
	if target == nil {
		return action.Invalid("nothing focused")
	}
	if !target.BeginInteract(c) {
		return action.Reject("someone else is using that")
	}
	if hold := target.Config().HoldTime; hold > 0 {
		c.holdTimer.Arm(time.Duration(hold*float64(time.Second)), func() {
			c.run(func() {
				if c.focused == target {
					target.Interact(c)
				}
			})
		})
	}
	return nil
}

// EndInteract releases the hold before it completes.
func (c *Character) EndInteract() {
	c.holdTimer.Cancel()
	if c.focused != nil {
		c.focused.EndInteract(c)
	}
}

// StartFire, StopFire and Reload delegate to the equipped weapon.

func (c *Character) StartFire() error {
	if c.dead {
		return action.Reject("you are dead")
	}
	if c.weapon == nil {
		return action.Invalid("no weapon equipped")
	}
	c.weapon.StartFire()
	return nil
}

func (c *Character) StopFire() {
	if c.weapon != nil {
		c.weapon.StopFire()
	}
}

func (c *Character) Reload() error {
	if c.weapon == nil {
		return action.Invalid("no weapon equipped")
	}
	if !c.weapon.StartReload() {
		return action.Reject("cannot reload now")
	}
	return nil
}
