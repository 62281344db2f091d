package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mireska/ashfall/server/game/geo"
	"github.com/mireska/ashfall/server/resource"
)

func TestSync_FirstPassThenQuiet(t *testing.T) {
	z := newTestZone(t)
	c, sess := joinChar(t, z, 1)
	c.Inventory().TryAddItemFromDef(z.defs.ItemDef("berries"), 10)

	z.syncSessions()
	assert.Equal(t, 1, sess.count("inventory_sync"), "first pass sends the inventory")
	assert.Equal(t, 1, sess.count("vitals_sync"))
	assert.Equal(t, 1, sess.count("chars_sync"))

	sess.reset()
	z.syncSessions()
	z.syncSessions()
	assert.Empty(t, sess.events, "an unchanged world syncs nothing")
}

func TestSync_QuantityChangeSendsDeltaOnly(t *testing.T) {
	z := newTestZone(t)
	c, sess := joinChar(t, z, 1)
	c.Inventory().TryAddItemFromDef(z.defs.ItemDef("berries"), 10)
	z.syncSessions()
	sess.reset()

	it := c.Inventory().FindItemByDef("berries")
	c.Inventory().ConsumeQuantity(it, 3)
	z.syncSessions()

	require.Equal(t, 1, sess.count("inventory_sync"))
	for _, e := range sess.events {
		if e.event != "inventory_sync" {
			continue
		}
		payload := e.data.(map[string]any)
		_, full := payload["items"]
		assert.False(t, full, "a quantity change must not resend membership")
		changed := payload["changed"].([]itemSnapshot)
		require.Len(t, changed, 1)
		assert.Equal(t, 7, changed[0].Quantity)
	}
}

func TestSync_VitalsDeltaOnly(t *testing.T) {
	z := newTestZone(t)
	c, sess := joinChar(t, z, 1)
	z.syncSessions()
	sess.reset()

	c.DrainVitals(5, 0, 0)
	z.syncSessions()

	require.Equal(t, 1, sess.count("vitals_sync"))
	for _, e := range sess.events {
		if e.event != "vitals_sync" {
			continue
		}
		changed := e.data.(map[string]float64)
		assert.Contains(t, changed, "hunger")
		assert.NotContains(t, changed, "health", "untouched vitals are not resent")
	}
}

func TestSync_LootSourceVisibleToLooterOnly(t *testing.T) {
	z := newTestZone(t)
	looter, looterSess := joinChar(t, z, 1)
	_, otherSess := joinChar(t, z, 2)

	chest := NewLootContainer(resource.ContainerDef{
		Name: "Crate", LootTableID: "scraps", Position: geo.Vec3{X: 6, Y: 5}, HoldTime: 1,
	}, z.defs.Table("scraps"), z.defs, z.rng)
	z.containers[chest.ID()] = chest
	z.containerList.Bump()
	looter.SetLootSource(chest.Inventory())
	z.syncSessions()

	assert.Positive(t, looterSess.count("loot_sync"))
	assert.Zero(t, otherSess.count("loot_sync"), "container contents stay private")
}

func TestSync_WeaponAmmoToOwnerBurstToOthers(t *testing.T) {
	z := newTestZone(t)
	shooter, shooterSess := joinChar(t, z, 1)
	observer, observerSess := joinChar(t, z, 2)
	observer.SetTransform(geo.Vec3{X: 5, Y: 60}, 0)

	shooter.Inventory().TryAddItemFromDef(z.defs.ItemDef("rifle"), 1)
	drain(z)
	z.syncSessions()
	shooterSess.reset()
	observerSess.reset()

	shooter.WeaponCtrl().FireShot()
	z.syncSessions()

	assert.Equal(t, 1, shooterSess.count("ammo_sync"), "magazine state goes to the owner")
	assert.Zero(t, shooterSess.count("burst_sync"), "the owner does not replay its own shots")
	assert.Equal(t, 1, observerSess.count("burst_sync"), "observers get the counter pulse")
	assert.Zero(t, observerSess.count("ammo_sync"), "ammo is owner-only state")
}

func TestSync_PartialTakeReplicatesRemainder(t *testing.T) {
	z := newTestZone(t)
	taker, takerSess := joinChar(t, z, 1)
	_, otherSess := joinChar(t, z, 2)

	// Only 10 berries fit the taker's 40/50 stack; 20 stay on the ground.
	taker.Inventory().TryAddItemFromDef(z.defs.ItemDef("berries"), 40)
	z.SpawnPickup(z.defs.ItemDef("berries"), 30, geo.Vec3{X: 6, Y: 5}, 0)
	z.syncSessions()
	takerSess.reset()
	otherSess.reset()

	z.scanInteractions()
	require.NoError(t, dispatch(t, z, takerSess, "begin_interact", struct{}{}))
	z.syncSessions()

	for _, sess := range []*fakeSession{takerSess, otherSess} {
		require.Equal(t, 1, sess.count("pickups_sync"), "every observer sees the shrunken stack")
		for _, e := range sess.events {
			if e.event != "pickups_sync" {
				continue
			}
			payload := e.data.(map[string]any)
			_, full := payload["pickups"]
			assert.False(t, full, "same pickup on the ground, no membership resend")
			changed := payload["changed"].([]pickupSnapshot)
			require.Len(t, changed, 1)
			assert.Equal(t, 20, changed[0].Quantity)
		}
	}
}

func TestSync_PickupRemovalUpdatesMembership(t *testing.T) {
	z := newTestZone(t)
	_, sess := joinChar(t, z, 1)

	z.SpawnPickup(z.defs.ItemDef("berries"), 5, geo.Vec3{X: 6, Y: 5}, 0)
	z.syncSessions()
	sess.reset()

	z.scanInteractions()
	require.NoError(t, dispatch(t, z, sess, "begin_interact", struct{}{}))
	z.syncSessions()

	found := false
	for _, e := range sess.events {
		if e.event != "pickups_sync" {
			continue
		}
		found = true
		payload := e.data.(map[string]any)
		assert.Equal(t, true, payload["full"])
		assert.Empty(t, payload["pickups"].([]pickupSnapshot))
	}
	assert.True(t, found, "taking the pickup must resend membership")
}
