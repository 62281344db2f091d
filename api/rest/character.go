package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mireska/ashfall/server/config"
	mw "github.com/mireska/ashfall/server/middleware"
	"github.com/mireska/ashfall/server/model"
	"github.com/mireska/ashfall/server/resource"
)

const maxCharacters = 3

// starterKitTable names the loot table whose rows seed a fresh character's
// bag. Every row is granted deterministically, one stack per row.
const starterKitTable = "starter_kit"

// CharacterHandler handles character REST endpoints.
type CharacterHandler struct {
	db   *gorm.DB
	defs *resource.Loader
	game config.GameConfig
}

// NewCharacterHandler creates a new CharacterHandler.
func NewCharacterHandler(db *gorm.DB, defs *resource.Loader, game config.GameConfig) *CharacterHandler {
	return &CharacterHandler{db: db, defs: defs, game: game}
}

// List handles GET /api/characters.
func (h *CharacterHandler) List(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	var chars []model.Character
	if err := h.db.Where("account_id = ?", accountID).Find(&chars).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"characters": chars})
}

type createCharacterRequest struct {
	Name string `json:"name" binding:"required,min=1,max=32"`
}

// Create handles POST /api/characters.
func (h *CharacterHandler) Create(c *gin.Context) {
	accountID := mw.GetAccountID(c)

	var req createCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing []model.Character
	if err := h.db.Select("id").Where("account_id = ?", accountID).Find(&existing).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if len(existing) >= maxCharacters {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max characters reached"})
		return
	}

	char := &model.Character{
		AccountID: accountID,
		Name:      req.Name,
		Health:    100, Stamina: 100,
		Hunger: 100, Thirst: 100,
		ZoneID: h.game.StartZone,
	}

	if err := h.db.Create(char).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "character name already taken"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	// Seed the starter kit, when the data defines one.
	if h.defs != nil {
		if tbl := h.defs.Table(starterKitTable); tbl != nil {
			for _, row := range tbl.Rows {
				for _, defID := range row.Items {
					def := h.defs.ItemDef(defID)
					if def == nil {
						continue
					}
					qty := def.SpawnQuantity
					if qty < 1 {
						qty = 1
					}
					h.db.Create(&model.InventoryItem{
						CharID: char.ID, DefID: defID, Qty: qty,
					})
				}
			}
		}
	}

	c.JSON(http.StatusCreated, char)
}

type deleteCharacterRequest struct {
	Password string `json:"password" binding:"required"`
}

// Delete handles DELETE /api/characters/:id.
func (h *CharacterHandler) Delete(c *gin.Context) {
	accountID := mw.GetAccountID(c)
	charID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req deleteCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password required"})
		return
	}

	// Verify the account password.
	var acc model.Account
	if err := h.db.First(&acc, accountID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
		return
	}

	// Delete only if the character belongs to this account.
	result := h.db.Where("id = ? AND account_id = ?", charID, accountID).Delete(&model.Character{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
		return
	}
	h.db.Where("char_id = ?", charID).Delete(&model.InventoryItem{})
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
