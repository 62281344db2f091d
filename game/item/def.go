package item

import (
	"fmt"
	"time"
)

// Rarity buckets for tooltip coloring and loot weighting on the client.
type Rarity int8

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityVeryRare
	RarityLegendary
)

var rarityNames = map[Rarity]string{
	RarityCommon:    "common",
	RarityUncommon:  "uncommon",
	RarityRare:      "rare",
	RarityVeryRare:  "very_rare",
	RarityLegendary: "legendary",
}

func (r Rarity) String() string { return rarityNames[r] }

// Kind is the closed set of item behaviors. Dispatch in Item.Use switches on
// it; no runtime type inspection.
type Kind string

const (
	KindGeneric   Kind = "generic"
	KindFood      Kind = "food"
	KindGear      Kind = "gear"
	KindWeapon    Kind = "weapon"
	KindThrowable Kind = "throwable"
	KindAmmo      Kind = "ammo"
)

// Slot identifies where an equippable item attaches on a character.
// At most one item may occupy a slot.
type Slot string

const (
	SlotHead          Slot = "head"
	SlotHelmet        Slot = "helmet"
	SlotChest         Slot = "chest"
	SlotVest          Slot = "vest"
	SlotLegs          Slot = "legs"
	SlotFeet          Slot = "feet"
	SlotHands         Slot = "hands"
	SlotBackpack      Slot = "backpack"
	SlotPrimaryWeapon Slot = "primary_weapon"
	SlotThrowable     Slot = "throwable"
)

// FoodSpec is the vitals restoration applied when a food item is consumed.
type FoodSpec struct {
	Health  float64 `json:"health"`
	Stamina float64 `json:"stamina"`
	Hunger  float64 `json:"hunger"`
	Thirst  float64 `json:"thirst"`
}

// GearSpec configures wearable equipment.
type GearSpec struct {
	// DamageReduction is the fraction of incoming damage absorbed while the
	// gear is equipped (0.05 = 5%).
	DamageReduction float64 `json:"damage_reduction"`
}

// BoneDamage is one row of a weapon's per-bone damage multiplier table.
// Lookup is by exact bone name, first match wins.
type BoneDamage struct {
	Bone       string  `json:"bone"`
	Multiplier float64 `json:"multiplier"`
}

// WeaponSpec is the static configuration of a firearm. Runtime firing state
// lives on the weapon controller, not here.
type WeaponSpec struct {
	MagCapacity      int          `json:"mag_capacity"`
	Damage           float64      `json:"damage"`
	MaxRange         float64      `json:"max_range"`
	TimeBetweenShots float64      `json:"time_between_shots"` // seconds
	ReloadTime       float64      `json:"reload_time"`        // seconds
	EquipTime        float64      `json:"equip_time"`         // seconds
	Automatic        bool         `json:"automatic"`
	AmmoDefID        string       `json:"ammo_def_id"`
	BoneDamage       []BoneDamage `json:"bone_damage,omitempty"`
}

// RefireInterval returns TimeBetweenShots as a duration.
func (w *WeaponSpec) RefireInterval() time.Duration {
	return time.Duration(w.TimeBetweenShots * float64(time.Second))
}

// ThrowableSpec configures a thrown weapon (grenade, rock).
type ThrowableSpec struct {
	Damage     float64 `json:"damage"`
	Radius     float64 `json:"radius"`
	FuseTime   float64 `json:"fuse_time"` // seconds
	ThrowForce float64 `json:"throw_force"`
}

// Def is the static, non-replicated definition of an item type, loaded from
// the data files. Runtime Items reference a Def and never copy it.
type Def struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// UseText is the verb shown for the use action ("Consume", "Equip").
	UseText string `json:"use_text"`

	Rarity       Rarity  `json:"rarity"`
	Weight       float64 `json:"weight"`
	Stackable    bool    `json:"stackable"`
	MaxStackSize int     `json:"max_stack_size"`
	// SpawnQuantity is the stack size granted when the item is rolled from a
	// loot table. Defaults to 1.
	SpawnQuantity int `json:"spawn_quantity"`

	Kind Kind `json:"kind"`
	Slot Slot `json:"slot,omitempty"`

	Food      *FoodSpec      `json:"food,omitempty"`
	Gear      *GearSpec      `json:"gear,omitempty"`
	Weapon    *WeaponSpec    `json:"weapon,omitempty"`
	Throwable *ThrowableSpec `json:"throwable,omitempty"`
}

// Equippable reports whether items of this def occupy an equipment slot.
func (d *Def) Equippable() bool {
	switch d.Kind {
	case KindGear, KindWeapon, KindThrowable:
		return true
	}
	return false
}

// StackLimit returns the maximum quantity a single stack may hold.
func (d *Def) StackLimit() int {
	if d.Stackable {
		return d.MaxStackSize
	}
	return 1
}

// Validate checks the def's structural invariants.
func (d *Def) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("item def: missing id")
	}
	if d.Weight < 0 {
		return fmt.Errorf("item def %s: negative weight", d.ID)
	}
	if d.Stackable && d.MaxStackSize < 2 {
		return fmt.Errorf("item def %s: stackable items need max_stack_size >= 2", d.ID)
	}
	if d.Equippable() && d.Slot == "" {
		return fmt.Errorf("item def %s: equippable items need a slot", d.ID)
	}
	switch d.Kind {
	case KindFood:
		if d.Food == nil {
			return fmt.Errorf("item def %s: food items need a food spec", d.ID)
		}
	case KindGear:
		if d.Gear == nil {
			return fmt.Errorf("item def %s: gear items need a gear spec", d.ID)
		}
	case KindWeapon:
		if d.Weapon == nil {
			return fmt.Errorf("item def %s: weapons need a weapon spec", d.ID)
		}
		if d.Weapon.MagCapacity <= 0 {
			return fmt.Errorf("item def %s: mag_capacity must be positive", d.ID)
		}
	case KindThrowable:
		if d.Throwable == nil {
			return fmt.Errorf("item def %s: throwables need a throwable spec", d.ID)
		}
	}
	return nil
}
