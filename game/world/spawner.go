package world

import (
	"math"
	"math/rand"
	"time"

	"github.com/mireska/ashfall/server/game/geo"
	"github.com/mireska/ashfall/server/resource"
	"github.com/mireska/ashfall/server/scheduler"
)

// LootSpawner keeps one loot-table roll's worth of pickups alive at a world
// point. When the last of its pickups is taken it re-rolls after the
// respawn delay.
type LootSpawner struct {
	def   resource.SpawnerDef
	tbl   *resource.LootTable
	defs  *resource.Loader
	rng   *rand.Rand
	zone  *Zone
	alive int
	timer scheduler.Timer
}

func newLootSpawner(def resource.SpawnerDef, z *Zone) *LootSpawner {
	return &LootSpawner{
		def:  def,
		tbl:  z.defs.Table(def.LootTableID),
		defs: z.defs,
		rng:  z.rng,
		zone: z,
	}
}

// spawn rolls the table and drops one pickup per granted item at a random
// point inside the spawner's radius. Spawned pickups never expire; only
// player drops rot away.
func (sp *LootSpawner) spawn() {
	ids := RollLoot(sp.tbl, sp.rng)
	for _, id := range ids {
		def := sp.defs.ItemDef(id)
		if def == nil {
			continue
		}
		qty := def.SpawnQuantity
		if qty < 1 {
			qty = 1
		}
		p := sp.zone.SpawnPickup(def, qty, sp.scatter(), 0)
		sp.alive++
		p.OnTaken(func(*Pickup) { sp.pickupTaken() })
	}
}

func (sp *LootSpawner) pickupTaken() {
	sp.alive--
	if sp.alive > 0 {
		return
	}
	delay := time.Duration(sp.def.RespawnSeconds * float64(time.Second))
	sp.timer.Arm(delay, func() {
		sp.zone.Do(sp.spawn)
	})
}

// scatter picks a uniform point inside the spawn circle.
func (sp *LootSpawner) scatter() geo.Vec3 {
	r := sp.def.Radius * math.Sqrt(sp.rng.Float64())
	theta := sp.rng.Float64() * 2 * math.Pi
	return sp.def.Position.Add(geo.Vec3{X: r * math.Cos(theta), Y: r * math.Sin(theta)})
}
