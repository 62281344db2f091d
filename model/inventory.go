package model

import "time"

// InventoryItem represents a single item stack in a character's bag.
type InventoryItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CharID    int64     `gorm:"index:idx_char_inventory;not null" json:"char_id"`
	DefID     string    `gorm:"size:64;not null" json:"def_id"`
	Qty       int       `gorm:"default:1" json:"qty"`
	Equipped  bool      `gorm:"default:false" json:"equipped"`
	Slot      string    `gorm:"size:32;default:''" json:"slot"` // empty = not equipped
	AmmoInMag int       `gorm:"default:0" json:"ammo_in_mag"`   // equipped weapons only
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
