package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mireska/ashfall/server/audit"
	"github.com/mireska/ashfall/server/cache"
	"github.com/mireska/ashfall/server/config"
	"github.com/mireska/ashfall/server/game/persist"
	"github.com/mireska/ashfall/server/game/player"
	"github.com/mireska/ashfall/server/game/world"
)

// onlineSetKey is the cache set holding the char ids currently in world.
const onlineSetKey = "online:chars"

// zoneVerbs are the gameplay messages forwarded to the character's zone.
// Everything here runs on the zone goroutine; handlers never touch game
// state directly.
var zoneVerbs = []string{
	"move",
	"begin_interact",
	"end_interact",
	"loot_item",
	"close_loot",
	"use_item",
	"drop_item",
	"equip_item",
	"start_fire",
	"stop_fire",
	"reload",
}

// GameHandlers bundles the dependencies needed by in-game WS message handlers.
type GameHandlers struct {
	zm      *world.Manager
	sm      *player.SessionManager
	persist *persist.Service
	auditor *audit.Service
	cache   cache.Cache
	cfg     config.GameConfig
	logger  *zap.Logger
}

// NewGameHandlers creates a new GameHandlers.
func NewGameHandlers(zm *world.Manager, sm *player.SessionManager, ps *persist.Service, auditor *audit.Service, c cache.Cache, cfg config.GameConfig, logger *zap.Logger) *GameHandlers {
	return &GameHandlers{zm: zm, sm: sm, persist: ps, auditor: auditor, cache: c, cfg: cfg, logger: logger}
}

// RegisterHandlers registers all in-game handlers on the given Router.
func (gh *GameHandlers) RegisterHandlers(r *Router) {
	r.On("ping", gh.HandlePing)
	r.On("enter_world", gh.HandleEnterWorld)
	r.On("leave_world", gh.HandleLeaveWorld)
	for _, verb := range zoneVerbs {
		r.On(verb, gh.forwardToZone(verb))
	}
}

// ------------------------------------------------------------------ ping

type pingPayload struct {
	TS int64 `json:"ts"`
}

// HandlePing responds to client heartbeat pings.
func (gh *GameHandlers) HandlePing(_ context.Context, s *player.Session, raw json.RawMessage) error {
	var p pingPayload
	_ = json.Unmarshal(raw, &p)
	s.SendHeartbeatPong(p.TS)
	return nil
}

// ------------------------------------------------------------------ enter_world

type enterWorldReq struct {
	CharID int64 `json:"char_id"`
}

type enterWorldResp struct {
	CharID int64  `json:"char_id"`
	ZoneID string `json:"zone_id"`
	Name   string `json:"name"`
}

// HandleEnterWorld loads the requested character and places it into its
// zone. The character must belong to the session's account.
func (gh *GameHandlers) HandleEnterWorld(ctx context.Context, s *player.Session, raw json.RawMessage) error {
	var req enterWorldReq
	if err := json.Unmarshal(raw, &req); err != nil {
		return err
	}
	if s.CharID != 0 {
		sendError(s, "already in world")
		return nil
	}

	mc, rows, err := gh.persist.Load(ctx, s.AccountID, req.CharID)
	if err != nil {
		if errors.Is(err, persist.ErrCharacterNotFound) {
			sendError(s, "invalid character")
			return nil
		}
		return err
	}

	zoneID := mc.ZoneID
	if zoneID == "" {
		zoneID = gh.cfg.StartZone
	}
	z := gh.zm.GetOrCreate(zoneID)
	if z == nil {
		// Stale zone id in the DB; fall back to the start zone.
		gh.logger.Warn("unknown zone on enter, using start zone",
			zap.Int64("char_id", mc.ID),
			zap.String("zone_id", zoneID))
		zoneID = gh.cfg.StartZone
		z = gh.zm.GetOrCreate(zoneID)
		if z == nil {
			sendError(s, "world unavailable")
			return nil
		}
	}

	c := gh.persist.Build(mc, rows)

	// Re-register under the real char id; the WS connect registered the
	// session with CharID 0.
	gh.sm.Unregister(s.CharID)
	s.CharID = mc.ID
	s.CharName = mc.Name
	s.SetZone(zoneID)
	gh.sm.Register(s)

	z.Do(func() { z.Join(c, s) })

	presenceCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	_ = gh.cache.SAdd(presenceCtx, onlineSetKey, strconv.FormatInt(mc.ID, 10))
	cancel()

	charID := mc.ID
	gh.auditor.Log(audit.AuditEntry{
		TraceID:   TraceIDFromCtx(ctx),
		CharID:    &charID,
		AccountID: &s.AccountID,
		CharName:  mc.Name,
		Action:    "enter_world",
		ZoneID:    zoneID,
	})

	s.Push("world_entered", enterWorldResp{
		CharID: mc.ID,
		ZoneID: zoneID,
		Name:   mc.Name,
	})
	return nil
}

// ------------------------------------------------------------------ leave_world

// HandleLeaveWorld removes the character from its zone and persists it.
func (gh *GameHandlers) HandleLeaveWorld(ctx context.Context, s *player.Session, _ json.RawMessage) error {
	gh.removeFromWorld(ctx, s)
	s.Push("world_left", struct{}{})
	return nil
}

// removeFromWorld pulls the session's character out of its zone, captures a
// snapshot on the zone goroutine and saves it asynchronously. Safe to call
// when the session never entered a zone.
func (gh *GameHandlers) removeFromWorld(ctx context.Context, s *player.Session) {
	charID := s.CharID
	zoneID := s.Zone()
	if charID == 0 || zoneID == "" {
		return
	}
	z := gh.zm.Get(zoneID)
	if z == nil {
		return
	}

	traceID := TraceIDFromCtx(ctx)
	z.Do(func() {
		c := z.Leave(charID)
		if c == nil {
			return
		}
		snap := persist.Capture(c, zoneID)
		go gh.saveSnapshot(traceID, snap)
	})
	s.SetZone("")

	presenceCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	_ = gh.cache.SRem(presenceCtx, onlineSetKey, strconv.FormatInt(charID, 10))
	cancel()
}

func (gh *GameHandlers) saveSnapshot(traceID string, snap persist.Snapshot) {
	if err := gh.persist.Save(context.Background(), snap); err != nil {
		gh.logger.Error("character save failed",
			zap.Int64("char_id", snap.CharID),
			zap.String("trace_id", traceID),
			zap.Error(err))
	}
}

// ------------------------------------------------------------------ zone forwarding

func (gh *GameHandlers) forwardToZone(verb string) HandlerFunc {
	return func(_ context.Context, s *player.Session, raw json.RawMessage) error {
		if s.CharID == 0 {
			sendError(s, "not in world")
			return nil
		}
		z := gh.zm.Get(s.Zone())
		if z == nil {
			sendError(s, "not in world")
			return nil
		}
		z.HandleAction(s, verb, raw)
		return nil
	}
}

func sendError(s *player.Session, msg string) {
	s.Push("error", map[string]string{"error": msg})
}
