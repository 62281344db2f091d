package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Data     DataConfig     `mapstructure:"data"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Game     GameConfig     `mapstructure:"game"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
	// AdminAllowedIPs restricts admin routes to these client IPs.
	// Empty means no IP restriction (the admin key alone protects them).
	AdminAllowedIPs []string `mapstructure:"admin_allowed_ips"`
}

// DataConfig points at the gameplay data files (item defs, loot tables, zones).
type DataConfig struct {
	Path string `mapstructure:"path"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // memory | sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
}

type GameConfig struct {
	ZoneTickMs        int     `mapstructure:"zone_tick_ms"`
	SaveIntervalS     int     `mapstructure:"save_interval_s"`
	StartZone         string  `mapstructure:"start_zone"`
	InteractCheckDist float64 `mapstructure:"interact_check_dist"`
	InteractCheckHz   float64 `mapstructure:"interact_check_hz"`
	VitalsDrainS      int     `mapstructure:"vitals_drain_s"`
	HungerDrain       float64 `mapstructure:"hunger_drain"`
	ThirstDrain       float64 `mapstructure:"thirst_drain"`
	StarvationDamage  float64 `mapstructure:"starvation_damage"`
	InventoryCapacity int     `mapstructure:"inventory_capacity"`
	WeightCapacity    float64 `mapstructure:"weight_capacity"`
	PickupLifetimeS   int     `mapstructure:"pickup_lifetime_s"`
	RespawnDelayS     int     `mapstructure:"respawn_delay_s"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the WebSocket origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("data.path", "./data")
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/game.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("game.zone_tick_ms", 50)
	v.SetDefault("game.save_interval_s", 300)
	v.SetDefault("game.start_zone", "coast")
	v.SetDefault("game.interact_check_dist", 10.0)
	v.SetDefault("game.interact_check_hz", 4.0)
	v.SetDefault("game.vitals_drain_s", 10)
	v.SetDefault("game.hunger_drain", 1.0)
	v.SetDefault("game.thirst_drain", 1.5)
	v.SetDefault("game.starvation_damage", 2.0)
	v.SetDefault("game.inventory_capacity", 20)
	v.SetDefault("game.weight_capacity", 80.0)
	v.SetDefault("game.pickup_lifetime_s", 300)
	v.SetDefault("game.respawn_delay_s", 5)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
