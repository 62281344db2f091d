package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/mireska/ashfall/server/api/rest"
	apows "github.com/mireska/ashfall/server/api/ws"
	"github.com/mireska/ashfall/server/audit"
	"github.com/mireska/ashfall/server/cache"
	"github.com/mireska/ashfall/server/config"
	dbadapter "github.com/mireska/ashfall/server/db"
	"github.com/mireska/ashfall/server/game/character"
	"github.com/mireska/ashfall/server/game/feed"
	"github.com/mireska/ashfall/server/game/persist"
	"github.com/mireska/ashfall/server/game/player"
	"github.com/mireska/ashfall/server/game/world"
	mw "github.com/mireska/ashfall/server/middleware"
	"github.com/mireska/ashfall/server/model"
	"github.com/mireska/ashfall/server/resource"
	"github.com/mireska/ashfall/server/scheduler"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(nil)

	// ---- Cache ----
	c, err := cache.NewCache(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Game Data ----
	defs := resource.NewLoader(cfg.Data.Path)
	if err := defs.Load(); err != nil {
		log.Fatalf("data: %v", err)
	}
	logger.Info("Game data loaded",
		zap.Int("items", len(defs.Items)),
		zap.Int("loot_tables", len(defs.LootTables)),
		zap.Int("zones", len(defs.Zones)))

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Game Systems ----
	sm := player.NewSessionManager(logger)
	zm := world.NewManager(cfg.Game, defs, logger)
	defer zm.StopAll()

	killFeed := feed.New(c, logger)
	zm.OnZoneCreate(func(z *world.Zone) {
		zoneID := z.ID()
		z.OnDeath(func(victim *character.Character, instigator int64) {
			killFeed.Record(feed.Entry{
				VictimID:   victim.ID(),
				VictimName: victim.Name(),
				KillerID:   instigator,
				ZoneID:     zoneID,
			})
		})
	})

	// ---- Persistence ----
	persistSvc := persist.New(db, defs, cfg.Game, logger)
	saver := persist.NewSaver(persistSvc, zm, time.Duration(cfg.Game.SaveIntervalS)*time.Second, logger)
	sched.AddTicker("auto_save", saver.Interval(), saver.SaveAll)

	// ---- WS Router ----
	wsRouter := apows.NewRouter(logger)
	gh := apows.NewGameHandlers(zm, sm, persistSvc, auditSvc, c, cfg.Game, logger)
	gh.RegisterHandlers(wsRouter)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	charH := apirest.NewCharacterHandler(db, defs, cfg.Game)
	adminH := apirest.NewAdminHandler(db, sm, zm, sched, killFeed, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		charsG := api.Group("/characters")
		charsG.Use(mw.Auth(cfg.Security, c))
		charsG.GET("", charH.List)
		charsG.POST("", charH.Create)
		charsG.DELETE("/:id", charH.Delete)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Server.AdminAllowedIPs), apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.GET("/players", adminH.ListPlayers)
		adminG.POST("/kick/:id", adminH.KickPlayer)
		adminG.POST("/accounts/:id/ban", adminH.BanAccount)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.GET("/killfeed", adminH.KillFeed)
	}

	// ---- WebSocket ----
	wsH := apows.NewHandler(c, cfg.Security, sm, gh, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	// ---- Run ----
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srvErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", addr))
		srvErr <- r.Run(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-srvErr:
		log.Fatalf("server: %v", err)
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	// Flush player state before the zones stop.
	saver.Flush()
	sm.CloseAllSessions()
}
