package replication

import "fmt"

// View tracks, for a single observer, the last revision it has been sent of
// every replicated list, entity and scalar field. One View lives on each
// player session; the zone's sync pass walks it every tick and only the
// deltas it reports are put on the wire.
type View struct {
	lists   map[string]Key                // list name → last-seen collection key
	members map[string]map[int64]struct{} // list name → last-sent id set
	entries map[string]Key                // list-scoped entity id → last-seen entity key
	fields  map[string]Key                // scoped field name → last-seen value key
}

// NewView returns an empty View; everything needs syncing on first pass.
func NewView() *View {
	return &View{
		lists:   make(map[string]Key),
		members: make(map[string]map[int64]struct{}),
		entries: make(map[string]Key),
		fields:  make(map[string]Key),
	}
}

// ListDelta is the result of one sync pass over a replicated collection.
type ListDelta struct {
	// MembershipChanged is true when entities joined or left the collection
	// since the observer's last pass. Members holds the full current set
	// whenever the collection was walked at all.
	MembershipChanged bool
	Members           []Tracked
	// Changed holds the entries whose own key moved; only these need their
	// full state re-sent.
	Changed []Tracked
}

// Empty reports whether the delta carries nothing to send.
func (d ListDelta) Empty() bool {
	return !d.MembershipChanged && len(d.Changed) == 0
}

func entryKey(list string, id int64) string {
	return fmt.Sprintf("%s/%d", list, id)
}

// SyncList performs the two-level dirty check for one collection and
// advances the observer's seen keys to match the authoritative state.
// When the collection key is unchanged nothing is walked and an empty delta
// is returned; every membership change and every entry mutation bumps the
// collection key, so this single comparison is sufficient. A moved
// collection key alone does not imply a membership change: the walk compares
// the current id set against the one last sent to this observer.
func (v *View) SyncList(name string, listKey Key, entries []Tracked) ListDelta {
	var d ListDelta
	if !NeedsSync(v.lists[name], listKey) {
		return d
	}
	v.lists[name] = listKey

	seen := v.members[name]
	current := make(map[int64]struct{}, len(entries))
	d.Members = make([]Tracked, 0, len(entries))
	for _, e := range entries {
		id := e.SyncID()
		d.Members = append(d.Members, e)
		current[id] = struct{}{}
		if _, ok := seen[id]; !ok {
			d.MembershipChanged = true
		}
		ek := entryKey(name, id)
		if NeedsSync(v.entries[ek], e.SyncKey()) {
			v.entries[ek] = e.SyncKey()
			d.Changed = append(d.Changed, e)
		}
	}
	if len(seen) != len(current) {
		d.MembershipChanged = true
	}

	// Forget entities that left the collection so a later re-add with a
	// reset key is not mistaken for already-seen state.
	for id := range seen {
		if _, ok := current[id]; !ok {
			delete(v.entries, entryKey(name, id))
		}
	}
	v.members[name] = current
	return d
}

// SyncField reports whether the scalar identified by name must be re-sent,
// advancing the seen key when it must. Use for per-entity replicated values
// (vitals, ammo, burst counters) outside any collection.
func (v *View) SyncField(name string, cur Key) bool {
	if !NeedsSync(v.fields[name], cur) {
		return false
	}
	v.fields[name] = cur
	return true
}

// ForgetField drops the observer's memory of a scalar, forcing a re-send on
// the next pass. Used when an entity is torn down and later replaced.
func (v *View) ForgetField(name string) {
	delete(v.fields, name)
}

// ForgetList drops all memory of a collection and its entries.
func (v *View) ForgetList(name string) {
	for id := range v.members[name] {
		delete(v.entries, entryKey(name, id))
	}
	delete(v.members, name)
	delete(v.lists, name)
}
