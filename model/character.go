package model

import "time"

// Character represents a player's survivor.
type Character struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64     `gorm:"index:idx_account;not null" json:"account_id"`
	Name      string    `gorm:"uniqueIndex;size:32;not null" json:"name"`
	Health    float64   `gorm:"not null" json:"health"`
	Stamina   float64   `gorm:"not null" json:"stamina"`
	Hunger    float64   `gorm:"not null" json:"hunger"`
	Thirst    float64   `gorm:"not null" json:"thirst"`
	ZoneID    string    `gorm:"size:32;default:''" json:"zone_id"`
	PosX      float64   `gorm:"default:0" json:"pos_x"`
	PosY      float64   `gorm:"default:0" json:"pos_y"`
	PosZ      float64   `gorm:"default:0" json:"pos_z"`
	Yaw       float64   `gorm:"default:0" json:"yaw"`
	Deaths    int       `gorm:"default:0" json:"deaths"`
	Kills     int       `gorm:"default:0" json:"kills"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
