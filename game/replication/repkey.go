package replication

// Key is a monotonically increasing revision counter attached to replicated
// state. The authoritative side bumps it on every mutation; observers compare
// it against the last revision they have seen to decide whether a fresh
// snapshot is needed.
type Key int32

// NeedsSync reports whether an observer that last saw lastSeen must be sent
// the current state.
func NeedsSync(lastSeen, current Key) bool {
	return lastSeen != current
}

// Tracked is implemented by replicated entities (items, weapons, characters).
// SyncID must be stable for the entity's lifetime.
type Tracked interface {
	SyncID() int64
	SyncKey() Key
}

// KeyedList is the collection-level revision counter for a replicated
// collection. Mutating any contained entity bumps both the entity's own key
// and the list key, so an observer pass first checks the list key and only
// then walks entries. Membership snapshots are cheap (ids only); full entity
// state is gated by each entry's own key.
type KeyedList struct {
	key Key
}

// Bump increments the collection revision. Call after any membership change
// or after marking a contained entity dirty.
func (l *KeyedList) Bump() { l.key++ }

// Key returns the current collection revision.
func (l *KeyedList) Key() Key { return l.key }

// Value is a single replicated scalar with its own revision counter.
// Only the authoritative side may call Set.
type Value[T any] struct {
	v   T
	key Key
}

// NewValue returns a Value holding v at revision 1, so a fresh observer
// (last seen 0) always syncs the initial state.
func NewValue[T any](v T) *Value[T] {
	return &Value[T]{v: v, key: 1}
}

// Set stores v and bumps the revision.
func (r *Value[T]) Set(v T) {
	r.v = v
	r.key++
}

// Get returns the current value.
func (r *Value[T]) Get() T { return r.v }

// Key returns the current revision.
func (r *Value[T]) Key() Key { return r.key }
