package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUser struct {
	restored []FoodSpec
	equipped []*Item
	looting  bool
	refuse   bool
}

func (u *fakeUser) RestoreVitals(f FoodSpec) { u.restored = append(u.restored, f) }

func (u *fakeUser) SetEquipped(it *Item, equip bool) bool {
	if u.refuse {
		return false
	}
	it.setEquipped(equip)
	if equip {
		u.equipped = append(u.equipped, it)
	}
	return true
}

func (u *fakeUser) IsLooting() bool { return u.looting }

func TestNew_ClampsQuantity(t *testing.T) {
	it := New(berryDef(), 200)
	assert.Equal(t, 50, it.Quantity())

	it = New(berryDef(), -3)
	assert.Equal(t, 0, it.Quantity())

	it = New(helmetDef(), 10)
	assert.Equal(t, 1, it.Quantity(), "non-stackable items hold a single unit")
}

func TestNewFromDef_SpawnQuantity(t *testing.T) {
	def := berryDef()
	def.SpawnQuantity = 12
	assert.Equal(t, 12, NewFromDef(def).Quantity())

	def.SpawnQuantity = 0
	assert.Equal(t, 1, NewFromDef(def).Quantity(), "spawn quantity defaults to one")
}

func TestSetQuantity_Clamped(t *testing.T) {
	it := New(berryDef(), 10)
	it.SetQuantity(999)
	assert.Equal(t, 50, it.Quantity())
	it.SetQuantity(-1)
	assert.Equal(t, 0, it.Quantity())
}

func TestUse_FoodConsumesOneUnit(t *testing.T) {
	inv := NewInventory(20, 80)
	inv.TryAddItem(New(berryDef(), 3))
	it := inv.FindItemByDef("berries")
	u := &fakeUser{}

	it.Use(u)
	require.Len(t, u.restored, 1)
	assert.Equal(t, 10.0, u.restored[0].Hunger)
	assert.Equal(t, 2, it.Quantity())

	it.Use(u)
	it.Use(u)
	assert.Len(t, u.restored, 3)
	assert.Nil(t, inv.FindItemByDef("berries"), "the emptied stack is removed")
}

func TestUse_GearTogglesEquip(t *testing.T) {
	it := New(helmetDef(), 1)
	u := &fakeUser{}

	it.Use(u)
	assert.True(t, it.Equipped())
	require.Len(t, u.equipped, 1)

	it.Use(u)
	assert.False(t, it.Equipped())
}

func TestUse_EquipRefusedLeavesStateAlone(t *testing.T) {
	it := New(helmetDef(), 1)
	u := &fakeUser{refuse: true}

	it.Use(u)
	assert.False(t, it.Equipped())
}

func TestAddedToInventory_AutoEquip(t *testing.T) {
	it := New(helmetDef(), 1)
	u := &fakeUser{}
	it.AddedToInventory(u)
	assert.True(t, it.Equipped(), "gear picked up outside looting auto-equips")

	loot := New(helmetDef(), 1)
	lu := &fakeUser{looting: true}
	loot.AddedToInventory(lu)
	assert.False(t, loot.Equipped(), "items taken from a container stay unequipped")
}

func TestShouldShowInInventory(t *testing.T) {
	it := New(helmetDef(), 1)
	assert.True(t, it.ShouldShowInInventory())
	it.setEquipped(true)
	assert.False(t, it.ShouldShowInInventory())
}

func TestDef_Validate(t *testing.T) {
	assert.NoError(t, berryDef().Validate())
	assert.NoError(t, helmetDef().Validate())

	bad := berryDef()
	bad.ID = ""
	assert.Error(t, bad.Validate())

	noFood := berryDef()
	noFood.Food = nil
	assert.Error(t, noFood.Validate())

	badStack := berryDef()
	badStack.MaxStackSize = 0
	assert.Error(t, badStack.Validate())
}

func TestDef_StackLimit(t *testing.T) {
	assert.Equal(t, 50, berryDef().StackLimit())
	assert.Equal(t, 1, helmetDef().StackLimit())
}
