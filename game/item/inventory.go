package item

import (
	"fmt"
	"sync/atomic"

	"github.com/mireska/ashfall/server/game/replication"
)

var nextInventoryID atomic.Int64

// Outcome classifies a TryAddItem attempt.
type Outcome int8

const (
	OutcomeNone Outcome = iota
	OutcomeSome
	OutcomeAll
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSome:
		return "some"
	case OutcomeAll:
		return "all"
	default:
		return "none"
	}
}

// AddResult reports how much of a requested add was actually granted.
// Callers must branch on Outcome: a Some result means the ungranted
// remainder was NOT placed anywhere and is the caller's to deal with.
type AddResult struct {
	Requested int
	Given     int
	Outcome   Outcome
	Err       string
}

func addedNone(requested int, why string) AddResult {
	return AddResult{Requested: requested, Outcome: OutcomeNone, Err: why}
}

func addedSome(requested, given int, why string) AddResult {
	return AddResult{Requested: requested, Given: given, Outcome: OutcomeSome, Err: why}
}

func addedAll(requested int) AddResult {
	return AddResult{Requested: requested, Given: requested, Outcome: OutcomeAll}
}

// Inventory owns an ordered, bounded collection of item stacks. It is the
// sole owner of its Items: removing an item orphans it, destroying the
// inventory destroys its contents.
//
// All mutating methods assume the authoritative (server) context and are
// confined to the owning zone's goroutine; remote callers reach them through
// the action round trip, never directly. There is no internal locking
// because there is only ever one mutator.
type Inventory struct {
	id             int64
	items          []*Item
	capacity       int
	weightCapacity float64
	list           replication.KeyedList

	observers   []func()
	onItemAdded func(*Item)
}

// NewInventory creates an empty inventory with the given slot capacity and
// advisory weight capacity.
func NewInventory(capacity int, weightCapacity float64) *Inventory {
	return &Inventory{
		id:             nextInventoryID.Add(1),
		capacity:       capacity,
		weightCapacity: weightCapacity,
	}
}

// ID is the inventory's stable identity, used to address it in packets.
func (inv *Inventory) ID() int64 { return inv.id }

// SyncName is the replication list name for this inventory.
func (inv *Inventory) SyncName() string { return fmt.Sprintf("inv:%d", inv.id) }

// ListKey returns the collection-level revision key.
func (inv *Inventory) ListKey() replication.Key { return inv.list.Key() }

// Items returns the backing slice. Callers must not mutate it.
func (inv *Inventory) Items() []*Item { return inv.items }

// Tracked returns the contents as replication entries for a view sync pass.
func (inv *Inventory) Tracked() []replication.Tracked {
	out := make([]replication.Tracked, len(inv.items))
	for i, it := range inv.items {
		out[i] = it
	}
	return out
}

func (inv *Inventory) Capacity() int           { return inv.capacity }
func (inv *Inventory) WeightCapacity() float64 { return inv.weightCapacity }

// SetCapacity changes the slot capacity. Existing contents are never
// evicted, even if they now exceed the new capacity.
func (inv *Inventory) SetCapacity(capacity int) {
	inv.capacity = capacity
	inv.notify()
}

// SetWeightCapacity changes the advisory weight capacity. Weight is never an
// add-rejection condition; the client uses it for encumbrance display only.
func (inv *Inventory) SetWeightCapacity(w float64) {
	inv.weightCapacity = w
	inv.notify()
}

// CurrentWeight sums quantity × unit weight over all contained stacks.
func (inv *Inventory) CurrentWeight() float64 {
	var total float64
	for _, it := range inv.items {
		total += it.StackWeight()
	}
	return total
}

// OnItemAdded installs a hook run after a new stack lands in the inventory
// (not on merges into an existing stack). The character layer uses it for
// auto-equip.
func (inv *Inventory) OnItemAdded(fn func(*Item)) { inv.onItemAdded = fn }

// Observe registers a callback fired after every inventory mutation.
func (inv *Inventory) Observe(fn func()) {
	inv.observers = append(inv.observers, fn)
}

func (inv *Inventory) notify() {
	for _, fn := range inv.observers {
		fn()
	}
}

// markItemDirty bumps the collection key when a contained item changed, so
// observers re-walk the collection and pick up only that item's state.
func (inv *Inventory) markItemDirty() {
	inv.list.Bump()
	inv.notify()
}

// TryAddItem attempts to add src's stack to this inventory, transferring
// ownership of the granted quantity. src itself is never stored; a clone
// owned by this inventory is.
//
// Policy:
//   - a full inventory rejects the add outright, even when a merge into an
//     existing stack would not need a new slot;
//   - stackable items merge into the first existing stack of the same def,
//     clamped by the stack limit. Leftover beyond the limit is reported via
//     a Some outcome but is NOT granted a new slot; callers see the exact
//     granted amount and keep the remainder.
func (inv *Inventory) TryAddItem(src *Item) AddResult {
	if src == nil || src.Quantity() <= 0 {
		return addedNone(0, "nothing to add")
	}
	requested := src.Quantity()

	if len(inv.items)+1 > inv.capacity {
		return addedNone(requested, "inventory is full")
	}

	if src.Def().Stackable {
		if existing := inv.FindItemByDef(src.Def().ID); existing != nil {
			spare := existing.Def().StackLimit() - existing.Quantity()
			actual := requested
			if actual > spare {
				actual = spare
			}
			if actual <= 0 {
				return addedNone(requested, "stack is full")
			}
			existing.SetQuantity(existing.Quantity() + actual)
			if actual < requested {
				return addedSome(requested, actual, "not everything fit")
			}
			return addedAll(requested)
		}
	}

	granted := inv.adopt(src.clone())
	if granted.Quantity() < requested {
		// Fresh stack clamped by the stack limit; remainder not granted.
		return addedSome(requested, granted.Quantity(), "not everything fit")
	}
	return addedAll(requested)
}

// TryAddItemFromDef creates a stack of the given def and quantity and adds
// it. Used when granting items that do not yet exist as instances (ammo
// returns, admin grants, loot rolls).
func (inv *Inventory) TryAddItemFromDef(def *Def, quantity int) AddResult {
	if def == nil || quantity <= 0 {
		return addedNone(quantity, "nothing to add")
	}
	return inv.TryAddItem(New(def, quantity))
}

// adopt appends a fresh item, taking ownership. Never call append directly.
func (inv *Inventory) adopt(it *Item) *Item {
	it.owner = inv
	inv.items = append(inv.items, it)
	inv.list.Bump()
	it.MarkDirty()
	if inv.onItemAdded != nil {
		inv.onItemAdded(it)
	}
	inv.notify()
	return it
}

// ConsumeQuantity removes up to n from the stack, returning the amount
// actually removed. The stack is removed from the inventory when it reaches
// zero. Quantity never goes negative.
func (inv *Inventory) ConsumeQuantity(it *Item, n int) int {
	if it == nil || n <= 0 || inv.FindItem(it) == nil {
		return 0
	}
	actual := n
	if actual > it.Quantity() {
		actual = it.Quantity()
	}
	it.SetQuantity(it.Quantity() - actual)
	if it.Quantity() <= 0 {
		inv.RemoveItem(it)
	}
	return actual
}

// ConsumeAll removes the entire stack.
func (inv *Inventory) ConsumeAll(it *Item) int {
	if it == nil {
		return 0
	}
	return inv.ConsumeQuantity(it, it.Quantity())
}

// RemoveItem unconditionally removes the item from the inventory, clearing
// its back-reference. Returns false if the item is not here.
func (inv *Inventory) RemoveItem(it *Item) bool {
	for i, have := range inv.items {
		if have == it {
			inv.items = append(inv.items[:i], inv.items[i+1:]...)
			it.owner = nil
			inv.list.Bump()
			inv.notify()
			return true
		}
	}
	return false
}

// Clear removes every item. Used when the owning actor is destroyed.
func (inv *Inventory) Clear() {
	for _, it := range inv.items {
		it.owner = nil
	}
	inv.items = nil
	inv.list.Bump()
	inv.notify()
}

// FindItem returns it if this inventory owns exactly that instance.
func (inv *Inventory) FindItem(it *Item) *Item {
	for _, have := range inv.items {
		if have == it {
			return have
		}
	}
	return nil
}

// FindItemByID returns the contained item with the given sync ID.
func (inv *Inventory) FindItemByID(id int64) *Item {
	for _, have := range inv.items {
		if have.SyncID() == id {
			return have
		}
	}
	return nil
}

// FindItemByDef returns the first stack of the exact def, or nil.
func (inv *Inventory) FindItemByDef(defID string) *Item {
	for _, have := range inv.items {
		if have.Def().ID == defID {
			return have
		}
	}
	return nil
}

// FindAllItemsByKind returns every stack whose def has the given kind.
func (inv *Inventory) FindAllItemsByKind(kind Kind) []*Item {
	var out []*Item
	for _, have := range inv.items {
		if have.Def().Kind == kind {
			out = append(out, have)
		}
	}
	return out
}

// HasItemQuantity reports whether the inventory holds at least n of the def,
// summed across stacks.
func (inv *Inventory) HasItemQuantity(defID string, n int) bool {
	total := 0
	for _, have := range inv.items {
		if have.Def().ID == defID {
			total += have.Quantity()
			if total >= n {
				return true
			}
		}
	}
	return false
}
