package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEntity is a minimal Tracked implementation for view tests.
type fakeEntity struct {
	id  int64
	key Key
}

func (f *fakeEntity) SyncID() int64 { return f.id }
func (f *fakeEntity) SyncKey() Key  { return f.key }

func (f *fakeEntity) markDirty(list *KeyedList) {
	f.key++
	list.Bump()
}

func memberIDs(d ListDelta) []int64 {
	ids := make([]int64, 0, len(d.Members))
	for _, m := range d.Members {
		ids = append(ids, m.SyncID())
	}
	return ids
}

func TestNeedsSync(t *testing.T) {
	assert.False(t, NeedsSync(0, 0))
	assert.True(t, NeedsSync(0, 1))
	assert.True(t, NeedsSync(3, 7))
}

func TestSyncList_FirstPassSendsEverything(t *testing.T) {
	var list KeyedList
	a := &fakeEntity{id: 1, key: 1}
	b := &fakeEntity{id: 2, key: 1}
	list.Bump()

	v := NewView()
	d := v.SyncList("inventory", list.Key(), []Tracked{a, b})
	require.True(t, d.MembershipChanged)
	assert.ElementsMatch(t, []int64{1, 2}, memberIDs(d))
	assert.Len(t, d.Changed, 2)
}

func TestSyncList_NoChangeSendsNothing(t *testing.T) {
	var list KeyedList
	a := &fakeEntity{id: 1, key: 1}
	list.Bump()

	v := NewView()
	_ = v.SyncList("inventory", list.Key(), []Tracked{a})

	d := v.SyncList("inventory", list.Key(), []Tracked{a})
	assert.True(t, d.Empty(), "observer in sync must get an empty delta")
}

func TestSyncList_SingleEntityMutation(t *testing.T) {
	var list KeyedList
	a := &fakeEntity{id: 1, key: 1}
	b := &fakeEntity{id: 2, key: 1}
	list.Bump()

	v := NewView()
	_ = v.SyncList("inventory", list.Key(), []Tracked{a, b})

	// Mutating one entity bumps its key and the list key; only that entity's
	// state should be re-sent.
	a.markDirty(&list)
	d := v.SyncList("inventory", list.Key(), []Tracked{a, b})
	assert.False(t, d.MembershipChanged, "mutation is not a membership change")
	require.Len(t, d.Changed, 1)
	assert.Equal(t, int64(1), d.Changed[0].SyncID())
}

func TestSyncList_MembershipChange(t *testing.T) {
	var list KeyedList
	a := &fakeEntity{id: 1, key: 1}
	list.Bump()

	v := NewView()
	_ = v.SyncList("inventory", list.Key(), []Tracked{a})

	b := &fakeEntity{id: 2, key: 1}
	list.Bump()
	d := v.SyncList("inventory", list.Key(), []Tracked{a, b})
	require.True(t, d.MembershipChanged)
	assert.ElementsMatch(t, []int64{1, 2}, memberIDs(d))
	require.Len(t, d.Changed, 1, "only the newcomer needs full state")
	assert.Equal(t, int64(2), d.Changed[0].SyncID())

	list.Bump()
	d = v.SyncList("inventory", list.Key(), []Tracked{b})
	require.True(t, d.MembershipChanged, "removal changes membership")
	assert.ElementsMatch(t, []int64{2}, memberIDs(d))
	assert.Empty(t, d.Changed)
}

func TestSyncList_TwoListsDoNotInterfere(t *testing.T) {
	var invList, lootList KeyedList
	mine := &fakeEntity{id: 1, key: 1}
	theirs := &fakeEntity{id: 2, key: 1}
	invList.Bump()
	lootList.Bump()

	v := NewView()
	_ = v.SyncList("inventory", invList.Key(), []Tracked{mine})
	_ = v.SyncList("loot", lootList.Key(), []Tracked{theirs})

	// Walking one list must not forget what was seen of the other.
	mine.markDirty(&invList)
	_ = v.SyncList("inventory", invList.Key(), []Tracked{mine})

	assert.True(t, v.SyncList("loot", lootList.Key(), []Tracked{theirs}).Empty())
}

func TestSyncList_RemovalForgetsEntity(t *testing.T) {
	var list KeyedList
	a := &fakeEntity{id: 1, key: 5}
	list.Bump()

	v := NewView()
	_ = v.SyncList("inventory", list.Key(), []Tracked{a})

	// Remove the entity, then re-add it with a reset key. The observer must
	// be sent the fresh state even though 1 < 5.
	list.Bump()
	_ = v.SyncList("inventory", list.Key(), nil)

	fresh := &fakeEntity{id: 1, key: 1}
	list.Bump()
	d := v.SyncList("inventory", list.Key(), []Tracked{fresh})
	require.Len(t, d.Changed, 1)
}

func TestSyncList_IndependentObservers(t *testing.T) {
	var list KeyedList
	a := &fakeEntity{id: 1, key: 1}
	list.Bump()

	v1 := NewView()
	v2 := NewView()
	_ = v1.SyncList("inventory", list.Key(), []Tracked{a})

	// v2 never synced; it still sees the full state while v1 sees nothing.
	assert.True(t, v1.SyncList("inventory", list.Key(), []Tracked{a}).Empty())
	assert.False(t, v2.SyncList("inventory", list.Key(), []Tracked{a}).Empty())
}

func TestSyncField(t *testing.T) {
	v := NewView()
	val := NewValue(30)

	assert.True(t, v.SyncField("weapon:1:ammo", val.Key()), "initial state must sync")
	assert.False(t, v.SyncField("weapon:1:ammo", val.Key()))

	val.Set(29)
	assert.True(t, v.SyncField("weapon:1:ammo", val.Key()))
	assert.Equal(t, 29, val.Get())
}

func TestValue_MonotonicKeys(t *testing.T) {
	val := NewValue(0)
	prev := val.Key()
	for i := 1; i <= 10; i++ {
		val.Set(i)
		require.Greater(t, val.Key(), prev)
		prev = val.Key()
	}
}
