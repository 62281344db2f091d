package item

// Equipment is a character's slot map. At most one item occupies a slot;
// equipping into an occupied slot displaces the previous item. Equip state
// drives inventory visibility: an equipped item reports
// ShouldShowInInventory false.
type Equipment struct {
	slots     map[Slot]*Item
	observers []func(slot Slot, it *Item, equipped bool)
}

func NewEquipment() *Equipment {
	return &Equipment{slots: make(map[Slot]*Item)}
}

// InSlot returns the item occupying a slot, nil when empty.
func (e *Equipment) InSlot(s Slot) *Item { return e.slots[s] }

// Items returns a copy of the slot map.
func (e *Equipment) Items() map[Slot]*Item {
	out := make(map[Slot]*Item, len(e.slots))
	for s, it := range e.slots {
		out[s] = it
	}
	return out
}

// Observe registers a callback fired after every equip and unequip.
func (e *Equipment) Observe(fn func(slot Slot, it *Item, equipped bool)) {
	e.observers = append(e.observers, fn)
}

func (e *Equipment) notify(slot Slot, it *Item, equipped bool) {
	for _, fn := range e.observers {
		fn(slot, it, equipped)
	}
}

// Equip places it into its def's slot, displacing any current occupant.
// Returns the displaced item and whether the equip happened.
func (e *Equipment) Equip(it *Item) (displaced *Item, ok bool) {
	if it == nil || !it.def.Equippable() || it.def.Slot == "" {
		return nil, false
	}
	slot := it.def.Slot
	if cur := e.slots[slot]; cur != nil {
		if cur == it {
			return nil, true
		}
		displaced = cur
		cur.setEquipped(false)
		e.notify(slot, cur, false)
	}
	e.slots[slot] = it
	it.setEquipped(true)
	e.notify(slot, it, true)
	return displaced, true
}

// Unequip clears it from its slot. Returns false when it was not equipped
// here.
func (e *Equipment) Unequip(it *Item) bool {
	if it == nil {
		return false
	}
	slot := it.def.Slot
	if e.slots[slot] != it {
		return false
	}
	delete(e.slots, slot)
	it.setEquipped(false)
	e.notify(slot, it, false)
	return true
}

// DamageReduction sums equipped gear's absorption fraction, capped below
// full immunity.
func (e *Equipment) DamageReduction() float64 {
	total := 0.0
	for _, it := range e.slots {
		if it.def.Gear != nil {
			total += it.def.Gear.DamageReduction
		}
	}
	if total > 0.9 {
		total = 0.9
	}
	return total
}
