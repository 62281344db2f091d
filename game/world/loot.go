package world

import (
	"math/rand"

	"github.com/mireska/ashfall/server/game/item"
	"github.com/mireska/ashfall/server/resource"
)

// RollLoot draws one row from a weighted loot table by rejection sampling:
// pick a uniform row, pick a uniform threshold, and redraw both until the
// threshold lands inside the row's probability. A row can be drawn and then
// rejected by its own check. This is deliberately not a normalized weighted
// pick; switching to one would change the loot distribution players see.
func RollLoot(tbl *resource.LootTable, rng *rand.Rand) []string {
	if tbl == nil || len(tbl.Rows) == 0 {
		return nil
	}
	for {
		row := tbl.Rows[rng.Intn(len(tbl.Rows))]
		if rng.Float64() <= row.Probability {
			return row.Items
		}
	}
}

// FillFromTable rolls a loot table once and grants the result into inv at
// each item's spawn quantity.
func FillFromTable(inv *item.Inventory, tbl *resource.LootTable, defs *resource.Loader, rng *rand.Rand) {
	for _, id := range RollLoot(tbl, rng) {
		def := defs.ItemDef(id)
		if def == nil {
			continue
		}
		qty := def.SpawnQuantity
		if qty < 1 {
			qty = 1
		}
		inv.TryAddItemFromDef(def, qty)
	}
}
