package item

import (
	"sync/atomic"

	"github.com/mireska/ashfall/server/game/replication"
)

var nextItemID atomic.Int64

// User is what an item needs from whoever uses it. Characters implement it;
// tests can implement it with a stub.
type User interface {
	// RestoreVitals applies a food item's restoration.
	RestoreVitals(spec FoodSpec)
	// SetEquipped equips or unequips an equippable item, returning false if
	// the change was rejected (slot conflict, not owned).
	SetEquipped(it *Item, equipped bool) bool
	// IsLooting reports whether the user currently has a loot source open.
	// Items auto-equipped on pickup skip users who are mid-loot.
	IsLooting() bool
}

// Item is one replicated item stack. Quantity and equip state are mutated
// only on the authoritative side; every mutation bumps the item's revision
// key and the owning inventory's collection key.
type Item struct {
	id       int64
	def      *Def
	quantity int
	equipped bool
	key      replication.Key
	owner    *Inventory // weak back-reference, lookup only

	observers []func()
}

// New creates an item stack of the given def and quantity. Quantity is
// clamped to [0, StackLimit].
func New(def *Def, quantity int) *Item {
	it := &Item{
		id:  nextItemID.Add(1),
		def: def,
		key: 1,
	}
	it.quantity = clampQuantity(def, quantity)
	return it
}

// NewFromDef creates an item with the def's spawn quantity (minimum 1).
func NewFromDef(def *Def) *Item {
	qty := def.SpawnQuantity
	if qty < 1 {
		qty = 1
	}
	return New(def, qty)
}

func clampQuantity(def *Def, q int) int {
	if q < 0 {
		return 0
	}
	if limit := def.StackLimit(); q > limit {
		return limit
	}
	return q
}

// SyncID implements replication.Tracked.
func (it *Item) SyncID() int64 { return it.id }

// SyncKey implements replication.Tracked.
func (it *Item) SyncKey() replication.Key { return it.key }

func (it *Item) Def() *Def             { return it.def }
func (it *Item) Quantity() int         { return it.quantity }
func (it *Item) Equipped() bool        { return it.equipped }
func (it *Item) Inventory() *Inventory { return it.owner }

// StackWeight is the item's contribution to its inventory's current weight.
func (it *Item) StackWeight() float64 {
	return float64(it.quantity) * it.def.Weight
}

// ShouldShowInInventory hides equipped items from the bag listing; they are
// shown in the equipment panel instead.
func (it *Item) ShouldShowInInventory() bool {
	return !it.equipped
}

// SetQuantity sets the stack size, clamped to [0, StackLimit], and marks the
// item dirty. Authoritative side only.
func (it *Item) SetQuantity(q int) {
	q = clampQuantity(it.def, q)
	if q == it.quantity {
		return
	}
	it.quantity = q
	it.MarkDirty()
}

// setEquipped flips the replicated equip flag. Called by the character's
// equipment map, never directly.
func (it *Item) setEquipped(equipped bool) {
	if it.equipped == equipped {
		return
	}
	it.equipped = equipped
	it.MarkDirty()
}

// Use performs the item's kind-specific behavior for u. The caller (the
// server's use-item action) is responsible for authority; Use itself only
// mutates through the inventory and user.
func (it *Item) Use(u User) {
	switch it.def.Kind {
	case KindFood:
		u.RestoreVitals(*it.def.Food)
		if it.owner != nil {
			it.owner.ConsumeQuantity(it, 1)
		}
	case KindGear, KindWeapon, KindThrowable:
		u.SetEquipped(it, !it.equipped)
	default:
		// Generic and ammo items have no direct use.
	}
}

// AddedToInventory runs post-add hooks: equippables auto-equip when the
// receiving user has the slot free and is not filling their bags from a loot
// container.
func (it *Item) AddedToInventory(u User) {
	if u == nil || !it.def.Equippable() {
		return
	}
	if !u.IsLooting() {
		u.SetEquipped(it, true)
	}
}

// Observe registers a callback fired after every mutation of this item.
// Observers drive derived state (UI refresh, pickup visuals) and must not
// mutate the item.
func (it *Item) Observe(fn func()) {
	it.observers = append(it.observers, fn)
}

// MarkDirty bumps the item's revision key and the owning collection's key,
// then notifies observers. Must be called after mutating any replicated
// field.
func (it *Item) MarkDirty() {
	it.key++
	if it.owner != nil {
		it.owner.markItemDirty()
	}
	for _, fn := range it.observers {
		fn()
	}
}

// clone returns a fresh item of the same def and quantity with a new
// identity and no owner. Used when ownership transfers between inventories.
func (it *Item) clone() *Item {
	return New(it.def, it.quantity)
}
