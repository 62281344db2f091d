package resource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mireska/ashfall/server/game/item"
)

const itemsJSON = `[
  {"id":"berries","name":"Berries","kind":"food","weight":0.1,"stackable":true,"max_stack_size":50,"spawn_quantity":5,"food":{"hunger":10}},
  {"id":"rifle_ammo","name":"Rifle Ammo","kind":"ammo","weight":0.02,"stackable":true,"max_stack_size":120,"spawn_quantity":30},
  {"id":"rifle","name":"Rifle","kind":"weapon","weight":6,"slot":"primary_weapon","weapon":{"mag_capacity":30,"damage":20,"max_range":150,"time_between_shots":0.1,"reload_time":2,"equip_time":1,"automatic":true,"ammo_def_id":"rifle_ammo","bone_damage":[{"bone":"head","multiplier":4}]}}
]`

const lootTablesJSON = `[
  {"id":"field_scraps","rows":[
    {"items":["berries"],"probability":1.0},
    {"items":["rifle","rifle_ammo"],"probability":0.2}
  ]}
]`

const zonesJSON = `[
  {"id":"meadow","name":"Meadow","spawn_point":{"x":10,"y":20,"z":0},
   "spawners":[{"loot_table_id":"field_scraps","position":{"x":50,"y":50,"z":0},"radius":6,"respawn_seconds":120}],
   "containers":[{"name":"Supply Crate","loot_table_id":"field_scraps","position":{"x":30,"y":40,"z":0},"capacity":8,"hold_time":2}]}
]`

func writeDataDir(t *testing.T, items, tables, zones string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "items.json"), []byte(items), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "loot_tables.json"), []byte(tables), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zones.json"), []byte(zones), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	l := NewLoader(writeDataDir(t, itemsJSON, lootTablesJSON, zonesJSON))
	require.NoError(t, l.Load())

	berries := l.ItemDef("berries")
	require.NotNil(t, berries)
	assert.Equal(t, item.KindFood, berries.Kind)
	assert.Equal(t, 5, berries.SpawnQuantity)

	rifle := l.ItemDef("rifle")
	require.NotNil(t, rifle)
	require.NotNil(t, rifle.Weapon)
	assert.Equal(t, 30, rifle.Weapon.MagCapacity)
	assert.True(t, rifle.Equippable())

	tbl := l.Table("field_scraps")
	require.NotNil(t, tbl)
	assert.Len(t, tbl.Rows, 2)

	z := l.Zone("meadow")
	require.NotNil(t, z)
	assert.Equal(t, 10.0, z.SpawnPoint.X)
	require.Len(t, z.Spawners, 1)
	assert.Equal(t, "field_scraps", z.Spawners[0].LootTableID)
	require.Len(t, z.Containers, 1)
	assert.Equal(t, 8, z.Containers[0].Capacity)
}

func TestLoad_UnknownLootItemRejected(t *testing.T) {
	bad := `[{"id":"t","rows":[{"items":["no_such_item"],"probability":1.0}]}]`
	l := NewLoader(writeDataDir(t, itemsJSON, bad, zonesJSON))
	err := l.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_item")
}

func TestLoad_BadProbabilityRejected(t *testing.T) {
	bad := `[{"id":"field_scraps","rows":[{"items":["berries"],"probability":1.5}]}]`
	l := NewLoader(writeDataDir(t, itemsJSON, bad, zonesJSON))
	assert.Error(t, l.Load())
}

func TestLoad_InvalidItemDefRejected(t *testing.T) {
	bad := `[{"id":"berries","name":"Berries","kind":"food","weight":0.1,"stackable":true,"max_stack_size":50}]`
	tables := `[{"id":"field_scraps","rows":[{"items":["berries"],"probability":1.0}]}]`
	l := NewLoader(writeDataDir(t, bad, tables, zonesJSON))
	assert.Error(t, l.Load(), "food items without a food spec must fail validation")
}

func TestLoad_UnknownZoneTableRejected(t *testing.T) {
	badZones := `[{"id":"meadow","name":"Meadow","spawn_point":{"x":0,"y":0,"z":0},
	  "spawners":[{"loot_table_id":"missing","position":{"x":0,"y":0,"z":0},"radius":5,"respawn_seconds":60}]}]`
	l := NewLoader(writeDataDir(t, itemsJSON, lootTablesJSON, badZones))
	assert.Error(t, l.Load())
}

func TestLoad_MissingFile(t *testing.T) {
	l := NewLoader(t.TempDir())
	assert.Error(t, l.Load())
}
