// Package resource reads the game's static data files: item definitions,
// loot tables and zone layouts. Everything is loaded once at startup and
// immutable afterwards.
package resource

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mireska/ashfall/server/game/geo"
	"github.com/mireska/ashfall/server/game/item"
)

// LootRow is one weighted row of a loot table. A roll that lands on this
// row and passes its probability check grants one of each listed item at
// its spawn quantity.
type LootRow struct {
	Items       []string `json:"items"`
	Probability float64  `json:"probability"`
}

// LootTable is a named set of weighted rows.
type LootTable struct {
	ID   string    `json:"id"`
	Rows []LootRow `json:"rows"`
}

// SpawnerDef places a loot spawner in a zone.
type SpawnerDef struct {
	LootTableID    string   `json:"loot_table_id"`
	Position       geo.Vec3 `json:"position"`
	Radius         float64  `json:"radius"`
	RespawnSeconds float64  `json:"respawn_seconds"`
}

// ContainerDef places a lootable container (chest, crate) in a zone. The
// container rolls its loot table a uniform number of times in
// [LootRollsMin, LootRollsMax]; zero for both means a single roll.
type ContainerDef struct {
	Name         string   `json:"name"`
	LootTableID  string   `json:"loot_table_id"`
	Position     geo.Vec3 `json:"position"`
	Capacity     int      `json:"capacity"`
	HoldTime     float64  `json:"hold_time"`
	LootRollsMin int      `json:"loot_rolls_min"`
	LootRollsMax int      `json:"loot_rolls_max"`
}

// ZoneDef is one zone's static layout.
type ZoneDef struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	SpawnPoint geo.Vec3       `json:"spawn_point"`
	Spawners   []SpawnerDef   `json:"spawners"`
	Containers []ContainerDef `json:"containers"`
}

// Loader reads and holds all data files.
type Loader struct {
	DataPath string

	Items      map[string]*item.Def
	LootTables map[string]*LootTable
	Zones      map[string]*ZoneDef
}

func NewLoader(dataPath string) *Loader {
	return &Loader{
		DataPath:   dataPath,
		Items:      make(map[string]*item.Def),
		LootTables: make(map[string]*LootTable),
		Zones:      make(map[string]*ZoneDef),
	}
}

// Load reads all data files and cross-validates references.
func (l *Loader) Load() error {
	loaders := []func() error{
		l.loadItems,
		l.loadLootTables,
		l.loadZones,
	}
	for _, fn := range loaders {
		if err := fn(); err != nil {
			return err
		}
	}
	return l.validate()
}

func (l *Loader) path(file string) string {
	return filepath.Join(l.DataPath, file)
}

func loadJSONArray[T any](path string) ([]*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resource: read %s: %w", path, err)
	}
	var arr []*T
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("resource: parse %s: %w", path, err)
	}
	return arr, nil
}

func (l *Loader) loadItems() error {
	defs, err := loadJSONArray[item.Def](l.path("items.json"))
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("resource: %w", err)
		}
		if _, dup := l.Items[def.ID]; dup {
			return fmt.Errorf("resource: duplicate item def %s", def.ID)
		}
		l.Items[def.ID] = def
	}
	return nil
}

func (l *Loader) loadLootTables() error {
	tables, err := loadJSONArray[LootTable](l.path("loot_tables.json"))
	if err != nil {
		return err
	}
	for _, tbl := range tables {
		if _, dup := l.LootTables[tbl.ID]; dup {
			return fmt.Errorf("resource: duplicate loot table %s", tbl.ID)
		}
		l.LootTables[tbl.ID] = tbl
	}
	return nil
}

func (l *Loader) loadZones() error {
	zones, err := loadJSONArray[ZoneDef](l.path("zones.json"))
	if err != nil {
		return err
	}
	for _, z := range zones {
		if _, dup := l.Zones[z.ID]; dup {
			return fmt.Errorf("resource: duplicate zone %s", z.ID)
		}
		l.Zones[z.ID] = z
	}
	return nil
}

// validate cross-checks loot rows and zone placements against loaded defs.
func (l *Loader) validate() error {
	for _, tbl := range l.LootTables {
		if len(tbl.Rows) == 0 {
			return fmt.Errorf("resource: loot table %s has no rows", tbl.ID)
		}
		for _, row := range tbl.Rows {
			if row.Probability <= 0 || row.Probability > 1 {
				return fmt.Errorf("resource: loot table %s: probability %v out of (0,1]", tbl.ID, row.Probability)
			}
			if len(row.Items) == 0 {
				return fmt.Errorf("resource: loot table %s has an empty row", tbl.ID)
			}
			for _, id := range row.Items {
				if l.Items[id] == nil {
					return fmt.Errorf("resource: loot table %s references unknown item %s", tbl.ID, id)
				}
			}
		}
	}
	for _, z := range l.Zones {
		for _, sp := range z.Spawners {
			if l.LootTables[sp.LootTableID] == nil {
				return fmt.Errorf("resource: zone %s spawner references unknown loot table %s", z.ID, sp.LootTableID)
			}
		}
		for _, ct := range z.Containers {
			if l.LootTables[ct.LootTableID] == nil {
				return fmt.Errorf("resource: zone %s container references unknown loot table %s", z.ID, ct.LootTableID)
			}
			if ct.LootRollsMin < 0 || ct.LootRollsMax < ct.LootRollsMin {
				return fmt.Errorf("resource: zone %s container %s has invalid loot rolls [%d,%d]",
					z.ID, ct.Name, ct.LootRollsMin, ct.LootRollsMax)
			}
		}
	}
	for _, def := range l.Items {
		if def.Kind == item.KindWeapon && l.Items[def.Weapon.AmmoDefID] == nil {
			return fmt.Errorf("resource: weapon %s references unknown ammo def %s", def.ID, def.Weapon.AmmoDefID)
		}
	}
	return nil
}

// ItemDef looks up an item definition by id, nil when absent.
func (l *Loader) ItemDef(id string) *item.Def { return l.Items[id] }

// LootTable looks up a loot table by id, nil when absent.
func (l *Loader) Table(id string) *LootTable { return l.LootTables[id] }

// Zone looks up a zone layout by id, nil when absent.
func (l *Loader) Zone(id string) *ZoneDef { return l.Zones[id] }
