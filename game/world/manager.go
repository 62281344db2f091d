package world

import (
	"sync"

	"go.uber.org/zap"

	"github.com/mireska/ashfall/server/config"
	"github.com/mireska/ashfall/server/resource"
)

// Manager owns all active Zone instances.
type Manager struct {
	mu       sync.RWMutex
	zones    map[string]*Zone
	cfg      config.GameConfig
	defs     *resource.Loader
	logger   *zap.Logger
	onCreate []func(*Zone)
}

// NewManager creates a zone Manager.
func NewManager(cfg config.GameConfig, defs *resource.Loader, logger *zap.Logger) *Manager {
	return &Manager{
		zones:  make(map[string]*Zone),
		cfg:    cfg,
		defs:   defs,
		logger: logger,
	}
}

// OnZoneCreate registers a hook applied to every zone before it starts.
// Register hooks before the first GetOrCreate call.
func (m *Manager) OnZoneCreate(fn func(*Zone)) {
	m.onCreate = append(m.onCreate, fn)
}

// GetOrCreate returns the Zone for zoneID, creating and starting it if
// needed. Returns nil for an unknown zone id.
func (m *Manager) GetOrCreate(zoneID string) *Zone {
	m.mu.RLock()
	z, ok := m.zones[zoneID]
	m.mu.RUnlock()
	if ok {
		return z
	}

	def := m.defs.Zone(zoneID)
	if def == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if z, ok = m.zones[zoneID]; ok {
		return z
	}
	z = NewZone(def, m.cfg, m.defs, m.logger)
	for _, fn := range m.onCreate {
		fn(z)
	}
	m.zones[zoneID] = z
	go z.Run()
	m.logger.Info("zone started", zap.String("zone_id", zoneID))
	return z
}

// Get returns the Zone for zoneID, or nil if it is not running.
func (m *Manager) Get(zoneID string) *Zone {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.zones[zoneID]
}

// All returns a snapshot of the running zones.
func (m *Manager) All() []*Zone {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Zone, 0, len(m.zones))
	for _, z := range m.zones {
		out = append(out, z)
	}
	return out
}

// ActiveZoneCount reports how many zones are running.
func (m *Manager) ActiveZoneCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.zones)
}

// StopAll stops every running zone.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, z := range m.zones {
		z.Stop()
		delete(m.zones, id)
	}
	m.logger.Info("all zones stopped")
}
