package persist

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mireska/ashfall/server/config"
	"github.com/mireska/ashfall/server/game/character"
	"github.com/mireska/ashfall/server/game/geo"
	"github.com/mireska/ashfall/server/model"
	"github.com/mireska/ashfall/server/resource"
)

// ErrCharacterNotFound is returned when the requested character row does
// not exist or belongs to another account.
var ErrCharacterNotFound = errors.New("persist: character not found")

// Service loads characters out of the database into live zone entities and
// writes their state back. Captures must be taken on the zone goroutine;
// the database work itself can run anywhere.
type Service struct {
	db     *gorm.DB
	defs   *resource.Loader
	cfg    config.GameConfig
	logger *zap.Logger
}

// New creates a persistence Service.
func New(db *gorm.DB, defs *resource.Loader, cfg config.GameConfig, logger *zap.Logger) *Service {
	return &Service{db: db, defs: defs, cfg: cfg, logger: logger}
}

// ItemRow is one persisted inventory stack. AmmoInMag is only meaningful on
// an equipped weapon row.
type ItemRow struct {
	DefID     string
	Qty       int
	Equipped  bool
	AmmoInMag int
}

// Snapshot is the persistable state of a live character. Build it with
// Capture on the zone goroutine, then hand it to Save from anywhere.
type Snapshot struct {
	CharID  int64
	ZoneID  string
	Health  float64
	Stamina float64
	Hunger  float64
	Thirst  float64
	Pos     geo.Vec3
	Yaw     float64
	Items   []ItemRow
}

// Load fetches a character row owned by accountID.
func (s *Service) Load(ctx context.Context, accountID, charID int64) (*model.Character, []model.InventoryItem, error) {
	var mc model.Character
	err := s.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", charID, accountID).
		First(&mc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrCharacterNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("persist: load character: %w", err)
	}

	var items []model.InventoryItem
	if err := s.db.WithContext(ctx).
		Where("char_id = ?", charID).Find(&items).Error; err != nil {
		return nil, nil, fmt.Errorf("persist: load inventory: %w", err)
	}
	return &mc, items, nil
}

// Build turns persisted rows into a live Character. Unknown item defs are
// skipped with a warning; they stay in the database untouched until a data
// fix restores them.
func (s *Service) Build(mc *model.Character, rows []model.InventoryItem) *character.Character {
	c := character.New(mc.ID, mc.AccountID, mc.Name, character.Config{
		InventoryCapacity: s.cfg.InventoryCapacity,
		WeightCapacity:    s.cfg.WeightCapacity,
	}, s.defs, s.logger)

	c.RestoreVitalState(mc.Health, mc.Stamina, mc.Hunger, mc.Thirst)
	c.SetTransform(geo.Vec3{X: mc.PosX, Y: mc.PosY, Z: mc.PosZ}, mc.Yaw)

	for _, row := range rows {
		def := s.defs.ItemDef(row.DefID)
		if def == nil {
			s.logger.Warn("skipping unknown item def on load",
				zap.Int64("char_id", mc.ID),
				zap.String("def_id", row.DefID))
			continue
		}
		res := c.Inventory().TryAddItemFromDef(def, row.Qty)
		if res.Given == 0 {
			continue
		}
		if row.Equipped {
			if it := c.Inventory().FindItemByDef(row.DefID); it != nil && !it.Equipped() {
				c.SetEquipped(it, true)
				// A restored weapon keeps the magazine it was saved with;
				// a fresh controller would otherwise come up full.
				if ctrl := c.WeaponCtrl(); ctrl != nil && ctrl.Weapon() == it {
					ctrl.SetAmmoInMag(row.AmmoInMag)
				}
			}
		}
	}
	return c
}

// Capture snapshots a live character. Must run on the zone goroutine.
func Capture(c *character.Character, zoneID string) Snapshot {
	snap := Snapshot{
		CharID:  c.ID(),
		ZoneID:  zoneID,
		Health:  c.Health(),
		Stamina: c.Stamina(),
		Hunger:  c.Hunger(),
		Thirst:  c.Thirst(),
		Pos:     c.Position().Get(),
		Yaw:     c.Yaw(),
	}
	ctrl := c.WeaponCtrl()
	for _, it := range c.Inventory().Items() {
		row := ItemRow{
			DefID:    it.Def().ID,
			Qty:      it.Quantity(),
			Equipped: it.Equipped(),
		}
		if ctrl != nil && ctrl.Weapon() == it {
			row.AmmoInMag = ctrl.AmmoInMag()
		}
		snap.Items = append(snap.Items, row)
	}
	return snap
}

// Save writes a snapshot back to the database. The inventory is replaced
// wholesale inside one transaction.
func (s *Service) Save(ctx context.Context, snap Snapshot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"health":  snap.Health,
			"stamina": snap.Stamina,
			"hunger":  snap.Hunger,
			"thirst":  snap.Thirst,
			"zone_id": snap.ZoneID,
			"pos_x":   snap.Pos.X,
			"pos_y":   snap.Pos.Y,
			"pos_z":   snap.Pos.Z,
			"yaw":     snap.Yaw,
		}
		if err := tx.Model(&model.Character{}).
			Where("id = ?", snap.CharID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("persist: save character: %w", err)
		}

		if err := tx.Where("char_id = ?", snap.CharID).
			Delete(&model.InventoryItem{}).Error; err != nil {
			return fmt.Errorf("persist: clear inventory: %w", err)
		}
		for _, row := range snap.Items {
			slot := ""
			if row.Equipped {
				if def := s.defs.ItemDef(row.DefID); def != nil {
					slot = string(def.Slot)
				}
			}
			rec := model.InventoryItem{
				CharID:    snap.CharID,
				DefID:     row.DefID,
				Qty:       row.Qty,
				Equipped:  row.Equipped,
				Slot:      slot,
				AmmoInMag: row.AmmoInMag,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("persist: save inventory row: %w", err)
			}
		}
		return nil
	})
}
