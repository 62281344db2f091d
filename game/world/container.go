package world

import (
	"math/rand"

	"github.com/mireska/ashfall/server/game/character"
	"github.com/mireska/ashfall/server/game/geo"
	"github.com/mireska/ashfall/server/game/interact"
	"github.com/mireska/ashfall/server/game/item"
	"github.com/mireska/ashfall/server/resource"
)

// LootContainer is a fixed chest or crate. Interacting opens its inventory
// as the character's loot source; multiple characters may rummage at once.
type LootContainer struct {
	id    int64
	name  string
	pos   geo.Vec3
	inv   *item.Inventory
	inter *interact.Interactable
}

func NewLootContainer(def resource.ContainerDef, tbl *resource.LootTable, defs *resource.Loader, rng *rand.Rand) *LootContainer {
	capacity := def.Capacity
	if capacity <= 0 {
		capacity = 8
	}
	ct := &LootContainer{
		id:   nextEntityID.Add(1),
		name: def.Name,
		pos:  def.Position,
		inv:  item.NewInventory(capacity, 0),
		inter: interact.New(interact.Config{
			HoldTime:      def.HoldTime,
			Distance:      2.5,
			AllowMultiple: true,
			Name:          def.Name,
			ActionText:    "Loot",
		}),
	}
	rolls := def.LootRollsMin
	if def.LootRollsMax > def.LootRollsMin {
		rolls += rng.Intn(def.LootRollsMax - def.LootRollsMin + 1)
	}
	if rolls < 1 {
		rolls = 1
	}
	for i := 0; i < rolls; i++ {
		FillFromTable(ct.inv, tbl, defs, rng)
	}
	ct.inter.OnInteract(func(who interact.Interactor) {
		if c, ok := who.(*character.Character); ok {
			c.SetLootSource(ct.inv)
		}
	})
	return ct
}

func (ct *LootContainer) ID() int64                          { return ct.id }
func (ct *LootContainer) Name() string                       { return ct.name }
func (ct *LootContainer) Position() geo.Vec3                 { return ct.pos }
func (ct *LootContainer) Inventory() *item.Inventory         { return ct.inv }
func (ct *LootContainer) Interactable() *interact.Interactable { return ct.inter }
