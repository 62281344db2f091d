package world

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mireska/ashfall/server/config"
	"github.com/mireska/ashfall/server/game/action"
	"github.com/mireska/ashfall/server/game/character"
	"github.com/mireska/ashfall/server/game/geo"
	"github.com/mireska/ashfall/server/game/item"
	"github.com/mireska/ashfall/server/game/replication"
	"github.com/mireska/ashfall/server/game/weapon"
	"github.com/mireska/ashfall/server/resource"
)

func testLoader() *resource.Loader {
	l := resource.NewLoader("")
	l.Items = map[string]*item.Def{
		"berries": {
			ID: "berries", Name: "Berries", Kind: item.KindFood,
			Weight: 0.1, Stackable: true, MaxStackSize: 50, SpawnQuantity: 5,
			Food: &item.FoodSpec{Hunger: 10},
		},
		"bandage": {
			ID: "bandage", Name: "Bandage", Kind: item.KindFood,
			Weight: 0.2, Stackable: true, MaxStackSize: 10, SpawnQuantity: 1,
			Food: &item.FoodSpec{Health: 25},
		},
		"rifle": {
			ID: "rifle", Name: "Rifle", Kind: item.KindWeapon,
			Weight: 6, Slot: item.SlotPrimaryWeapon,
			Weapon: &item.WeaponSpec{
				MagCapacity: 30, Damage: 20, MaxRange: 150,
				TimeBetweenShots: 0.1, ReloadTime: 0.2, AmmoDefID: "rifle_ammo",
				BoneDamage: []item.BoneDamage{{Bone: "head", Multiplier: 4}},
			},
		},
		"rifle_ammo": {
			ID: "rifle_ammo", Name: "Rifle Ammo", Kind: item.KindAmmo,
			Weight: 0.02, Stackable: true, MaxStackSize: 120, SpawnQuantity: 30,
		},
	}
	l.LootTables = map[string]*resource.LootTable{
		"scraps": {ID: "scraps", Rows: []resource.LootRow{
			{Items: []string{"berries"}, Probability: 1.0},
		}},
	}
	return l
}

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		ZoneTickMs:        50,
		InteractCheckDist: 10,
		InteractCheckHz:   4,
		VitalsDrainS:      10,
		HungerDrain:       1,
		ThirstDrain:       1.5,
		StarvationDamage:  2,
		InventoryCapacity: 20,
		WeightCapacity:    80,
		PickupLifetimeS:   300,
		RespawnDelayS:     1,
	}
}

type fakeSession struct {
	charID int64
	view   *replication.View
	events []pushed
}

type pushed struct {
	event string
	data  any
}

func newFakeSession(charID int64) *fakeSession {
	return &fakeSession{charID: charID, view: replication.NewView()}
}

func (s *fakeSession) SessionCharID() int64     { return s.charID }
func (s *fakeSession) View() *replication.View  { return s.view }
func (s *fakeSession) Push(event string, d any) { s.events = append(s.events, pushed{event, d}) }

func (s *fakeSession) count(event string) int {
	n := 0
	for _, e := range s.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func (s *fakeSession) reset() { s.events = nil }

func newTestZone(t *testing.T) *Zone {
	t.Helper()
	def := &resource.ZoneDef{ID: "meadow", Name: "Meadow", SpawnPoint: geo.Vec3{X: 5, Y: 5}}
	return NewZone(def, testGameConfig(), testLoader(), zap.NewNop())
}

func joinChar(t *testing.T, z *Zone, id int64) (*character.Character, *fakeSession) {
	t.Helper()
	c := character.New(id, id*100, fmt.Sprintf("player%d", id), character.Config{
		InventoryCapacity: 20, WeightCapacity: 80,
	}, z.defs, zap.NewNop())
	sess := newFakeSession(id)
	z.Join(c, sess)
	return c, sess
}

func dispatch(t *testing.T, z *Zone, sess *fakeSession, verb string, payload any) error {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return z.router.Dispatch(&action.Ctx{
		ActorID: sess.charID,
		Verb:    verb,
		Payload: raw,
		Notify:  sess.Push,
	})
}

func TestZone_PickupFlow(t *testing.T) {
	z := newTestZone(t)
	c, sess := joinChar(t, z, 1)

	p := z.SpawnPickup(z.defs.ItemDef("berries"), 5, geo.Vec3{X: 6, Y: 5}, 0)
	require.Len(t, z.pickups, 1)

	// The scan focuses the nearby pickup, the interact completes instantly
	// and the stack lands in the inventory.
	z.scanInteractions()
	require.Same(t, p.Interactable(), c.Focused())

	require.NoError(t, dispatch(t, z, sess, "begin_interact", struct{}{}))
	it := c.Inventory().FindItemByDef("berries")
	require.NotNil(t, it)
	assert.Equal(t, 5, it.Quantity())
	assert.Empty(t, z.pickups, "an emptied pickup despawns")
}

func TestZone_PartialPickupLeavesRemainder(t *testing.T) {
	z := newTestZone(t)
	c, sess := joinChar(t, z, 1)

	// Pre-fill so only 10 berries fit the single 40/50 stack.
	c.Inventory().TryAddItemFromDef(z.defs.ItemDef("berries"), 40)

	z.SpawnPickup(z.defs.ItemDef("berries"), 30, geo.Vec3{X: 6, Y: 5}, 0)
	z.scanInteractions()
	require.NoError(t, dispatch(t, z, sess, "begin_interact", struct{}{}))

	assert.Equal(t, 50, c.Inventory().FindItemByDef("berries").Quantity())
	require.Len(t, z.pickups, 1, "the remainder stays on the ground")
	for _, p := range z.pickups {
		assert.Equal(t, 20, p.Item().Quantity())
	}
}

func TestZone_DropSpawnsPickup(t *testing.T) {
	z := newTestZone(t)
	c, sess := joinChar(t, z, 1)
	c.Inventory().TryAddItemFromDef(z.defs.ItemDef("berries"), 10)
	it := c.Inventory().FindItemByDef("berries")

	require.NoError(t, dispatch(t, z, sess, "drop_item", map[string]any{
		"item_id": it.SyncID(), "quantity": 4,
	}))

	assert.Equal(t, 6, it.Quantity())
	require.Len(t, z.pickups, 1)
	for _, p := range z.pickups {
		assert.Equal(t, "berries", p.Item().Def().ID)
		assert.Equal(t, 4, p.Item().Quantity())
		assert.Equal(t, c.Position().Get(), p.Position())
	}
}

func TestZone_ContainerLooting(t *testing.T) {
	def := &resource.ZoneDef{
		ID: "camp", Name: "Camp", SpawnPoint: geo.Vec3{X: 5, Y: 5},
		Containers: []resource.ContainerDef{{
			Name: "Crate", LootTableID: "scraps",
			Position: geo.Vec3{X: 6, Y: 5}, Capacity: 8, HoldTime: 0,
		}},
	}
	z := NewZone(def, testGameConfig(), testLoader(), zap.NewNop())
	c, sess := joinChar(t, z, 1)

	z.scanInteractions()
	require.NotNil(t, c.Focused())
	require.NoError(t, dispatch(t, z, sess, "begin_interact", struct{}{}))
	require.NotNil(t, c.LootSource(), "interacting with a container opens it")

	berries := c.LootSource().FindItemByDef("berries")
	require.NotNil(t, berries)
	require.NoError(t, dispatch(t, z, sess, "loot_item", map[string]any{"item_id": berries.SyncID()}))

	assert.NotNil(t, c.Inventory().FindItemByDef("berries"))
	assert.Nil(t, c.LootSource().FindItemByDef("berries"))

	require.NoError(t, dispatch(t, z, sess, "close_loot", struct{}{}))
	assert.Nil(t, c.LootSource())
}

func TestContainer_RollsLootTableInRange(t *testing.T) {
	defs := testLoader()

	// Fixed roll count: three passes over a certain single-row table.
	ct := NewLootContainer(resource.ContainerDef{
		Name: "Crate", LootTableID: "scraps", Capacity: 8,
		LootRollsMin: 3, LootRollsMax: 3,
	}, defs.Table("scraps"), defs, rand.New(rand.NewSource(1)))
	berries := ct.Inventory().FindItemByDef("berries")
	require.NotNil(t, berries)
	assert.Equal(t, 15, berries.Quantity(), "three rolls of five berries each")

	// Unspecified rolls fall back to a single pass.
	ct = NewLootContainer(resource.ContainerDef{
		Name: "Crate", LootTableID: "scraps", Capacity: 8,
	}, defs.Table("scraps"), defs, rand.New(rand.NewSource(1)))
	assert.Equal(t, 5, ct.Inventory().FindItemByDef("berries").Quantity())
}

func TestZone_LootRejectedWhenTooFar(t *testing.T) {
	def := &resource.ZoneDef{
		ID: "camp", Name: "Camp", SpawnPoint: geo.Vec3{X: 5, Y: 5},
		Containers: []resource.ContainerDef{{
			Name: "Crate", LootTableID: "scraps",
			Position: geo.Vec3{X: 6, Y: 5}, Capacity: 8,
		}},
	}
	z := NewZone(def, testGameConfig(), testLoader(), zap.NewNop())
	c, sess := joinChar(t, z, 1)

	z.scanInteractions()
	require.NoError(t, dispatch(t, z, sess, "begin_interact", struct{}{}))
	berries := c.LootSource().FindItemByDef("berries")

	// Walk away, then try to keep looting.
	require.NoError(t, dispatch(t, z, sess, "move", map[string]any{
		"pos": geo.Vec3{X: 50, Y: 50}, "yaw": 0,
	}))
	err := dispatch(t, z, sess, "loot_item", map[string]any{"item_id": berries.SyncID()})
	require.Error(t, err)
	assert.Nil(t, c.LootSource(), "drifting out of range closes the container")
	assert.Nil(t, c.Inventory().FindItemByDef("berries"))
}

func TestZone_SpawnerInitialSpawn(t *testing.T) {
	def := &resource.ZoneDef{
		ID: "field", Name: "Field", SpawnPoint: geo.Vec3{},
		Spawners: []resource.SpawnerDef{{
			LootTableID: "scraps", Position: geo.Vec3{X: 20, Y: 20},
			Radius: 5, RespawnSeconds: 60,
		}},
	}
	z := NewZone(def, testGameConfig(), testLoader(), zap.NewNop())

	require.Len(t, z.pickups, 1)
	for _, p := range z.pickups {
		assert.Equal(t, "berries", p.Item().Def().ID)
		assert.LessOrEqual(t, p.Position().DistanceTo(geo.Vec3{X: 20, Y: 20}), 5.0)
	}
}

// drain runs whatever the zone loop would have picked up: timer callbacks
// and other queued work.
func drain(z *Zone) {
	for {
		select {
		case fn := <-z.cmds:
			fn()
		default:
			return
		}
	}
}

func TestZone_FireHitsTargetInCone(t *testing.T) {
	z := newTestZone(t)
	shooter, sess := joinChar(t, z, 1)
	victim, _ := joinChar(t, z, 2)

	shooter.Inventory().TryAddItemFromDef(z.defs.ItemDef("rifle_ammo"), 60)
	shooter.Inventory().TryAddItemFromDef(z.defs.ItemDef("rifle"), 1)
	require.NotNil(t, shooter.WeaponCtrl(), "picking up a weapon auto-equips it")
	drain(z) // finish the equip delay

	// Victim due east, shooter aiming straight at them.
	shooter.SetTransform(geo.Vec3{X: 0, Y: 0}, 0)
	victim.SetTransform(geo.Vec3{X: 20, Y: 0}, 0)

	require.NoError(t, dispatch(t, z, sess, "start_fire", map[string]any{"yaw": 0.0, "pitch": 0.0}))
	drain(z) // run the queued shot
	require.NoError(t, dispatch(t, z, sess, "stop_fire", struct{}{}))

	assert.Less(t, victim.Health(), character.MaxHealth, "the shot must land")
	assert.Equal(t, 29, shooter.WeaponCtrl().AmmoInMag())
}

func TestZone_FireMissesOutsideCone(t *testing.T) {
	z := newTestZone(t)
	shooter, sess := joinChar(t, z, 1)
	victim, _ := joinChar(t, z, 2)

	shooter.Inventory().TryAddItemFromDef(z.defs.ItemDef("rifle"), 1)
	drain(z)
	shooter.SetTransform(geo.Vec3{X: 0, Y: 0}, 0)
	victim.SetTransform(geo.Vec3{X: 0, Y: 20}, 0) // due north, aim due east

	require.NoError(t, dispatch(t, z, sess, "start_fire", map[string]any{"yaw": 0.0, "pitch": 0.0}))
	drain(z)
	require.NoError(t, dispatch(t, z, sess, "stop_fire", struct{}{}))

	assert.InDelta(t, character.MaxHealth, victim.Health(), 1e-9)
}

func TestZone_DeathDropsCorpseContainer(t *testing.T) {
	z := newTestZone(t)
	c, sess := joinChar(t, z, 1)
	c.Inventory().TryAddItemFromDef(z.defs.ItemDef("berries"), 10)

	before := len(z.containers)
	c.TakeDamage(1000, 7)
	require.True(t, c.Dead())

	assert.Empty(t, c.Inventory().Items(), "belongings move to the corpse")
	require.Len(t, z.containers, before+1)
	assert.Equal(t, 1, sess.count("you_died"))

	var corpse *LootContainer
	for _, ct := range z.containers {
		corpse = ct
	}
	assert.NotNil(t, corpse.Inventory().FindItemByDef("berries"))
}

func TestZone_LeaveCancelsWeaponTimers(t *testing.T) {
	z := newTestZone(t)
	c, _ := joinChar(t, z, 1)
	c.Inventory().TryAddItemFromDef(z.defs.ItemDef("rifle_ammo"), 60)
	c.Inventory().TryAddItemFromDef(z.defs.ItemDef("rifle"), 1)
	time.Sleep(10 * time.Millisecond)
	drain(z) // finish the equip delay

	c.WeaponCtrl().FireShot()
	require.True(t, c.WeaponCtrl().StartReload())
	require.Equal(t, weapon.StateReloading, c.WeaponCtrl().State())

	z.Leave(c.ID())
	assert.Equal(t, weapon.StateIdle, c.WeaponCtrl().State())

	// The cancelled reload must never complete and eat the reserve: the
	// character was already captured for persistence when it left.
	time.Sleep(300 * time.Millisecond)
	drain(z)
	assert.Equal(t, 60, c.AmmoReserve("rifle_ammo"))
	assert.Equal(t, 29, c.WeaponCtrl().AmmoInMag())
}

func TestZone_DeathBanksMagazineIntoCorpse(t *testing.T) {
	z := newTestZone(t)
	c, _ := joinChar(t, z, 1)
	c.Inventory().TryAddItemFromDef(z.defs.ItemDef("rifle_ammo"), 10)
	c.Inventory().TryAddItemFromDef(z.defs.ItemDef("rifle"), 1)
	require.NotNil(t, c.WeaponCtrl())
	require.Equal(t, 30, c.WeaponCtrl().AmmoInMag())

	c.TakeDamage(1000, 7)
	require.True(t, c.Dead())

	var corpse *LootContainer
	for _, ct := range z.containers {
		corpse = ct
	}
	require.NotNil(t, corpse)
	ammo := corpse.Inventory().FindItemByDef("rifle_ammo")
	require.NotNil(t, ammo)
	assert.Equal(t, 40, ammo.Quantity(), "chambered rounds join the loose stack before the corpse is filled")
	assert.NotNil(t, corpse.Inventory().FindItemByDef("rifle"))
}

func TestZone_UnknownActorInvalid(t *testing.T) {
	z := newTestZone(t)
	sess := newFakeSession(999)
	err := dispatch(t, z, sess, "use_item", map[string]any{"item_id": int64(1)})
	assert.ErrorIs(t, err, action.ErrInvalid)
}
