package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mireska/ashfall/server/game/feed"
	"github.com/mireska/ashfall/server/game/player"
	"github.com/mireska/ashfall/server/game/world"
	"github.com/mireska/ashfall/server/model"
	"github.com/mireska/ashfall/server/scheduler"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	db     *gorm.DB
	sm     *player.SessionManager
	zm     *world.Manager
	sched  *scheduler.Scheduler
	feed   *feed.Service
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	db *gorm.DB,
	sm *player.SessionManager,
	zm *world.Manager,
	sched *scheduler.Scheduler,
	fd *feed.Service,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{db: db, sm: sm, zm: zm, sched: sched, feed: fd, logger: logger}
}

// Metrics returns server health metrics.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"online_players":  h.sm.Count(),
		"active_zones":    h.zm.ActiveZoneCount(),
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

// ListPlayers returns a snapshot of all online players.
// GET /api/admin/players
func (h *AdminHandler) ListPlayers(c *gin.Context) {
	sessions := h.sm.All()
	type playerInfo struct {
		CharID   int64  `json:"char_id"`
		CharName string `json:"char_name"`
		ZoneID   string `json:"zone_id"`
	}
	result := make([]playerInfo, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, playerInfo{
			CharID:   s.CharID,
			CharName: s.CharName,
			ZoneID:   s.Zone(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"players": result, "count": len(result)})
}

// KickPlayer forcibly disconnects a player by character ID.
// POST /api/admin/kick/:id
func (h *AdminHandler) KickPlayer(c *gin.Context) {
	charID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	s := h.sm.Get(charID)
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not online"})
		return
	}
	s.Close()
	h.logger.Info("admin kicked player", zap.Int64("char_id", charID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// BanAccount bans or unbans a player account.
// POST /api/admin/accounts/:id/ban
func (h *AdminHandler) BanAccount(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Ban bool `json:"ban"`
	}
	_ = c.ShouldBindJSON(&req)

	status := model.AccountActive
	if req.Ban {
		status = model.AccountBanned
	}
	result := h.db.Model(&model.Account{}).Where("id = ?", accountID).Update("status", status)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	// Kick the player if currently online.
	if req.Ban {
		for _, s := range h.sm.All() {
			if s.AccountID == accountID {
				s.Close()
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

// ListSchedulerTasks returns names of all registered ticker tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.ListTickers()})
}

// KillFeed returns the most recent kills, newest first.
// GET /api/admin/killfeed
func (h *AdminHandler) KillFeed(c *gin.Context) {
	n := int64(20)
	if raw := c.Query("n"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			n = v
		}
	}
	entries, err := h.feed.Recent(c.Request.Context(), n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
