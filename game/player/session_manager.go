package player

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	drainDeadline = 10 * time.Second
	drainPoll     = 100 * time.Millisecond
)

// SessionManager is the live roster of connected players, keyed by
// character id with a secondary lowercase-name index for whisper and
// admin lookups.
type SessionManager struct {
	mu      sync.RWMutex
	roster  map[int64]*Session
	nameIdx map[string]int64
	logger  *zap.Logger
}

func NewSessionManager(logger *zap.Logger) *SessionManager {
	return &SessionManager{
		roster:  make(map[int64]*Session),
		nameIdx: make(map[string]int64),
		logger:  logger,
	}
}

// Register puts a session on the roster. A surviving session for the same
// character is closed first, so a reconnect or a login from a second
// client always displaces the stale connection.
func (sm *SessionManager) Register(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if stale, ok := sm.roster[s.CharID]; ok {
		stale.Close()
		sm.logger.Info("stale session displaced by relogin",
			zap.Int64("char_id", s.CharID))
	}
	sm.roster[s.CharID] = s
	sm.nameIdx[strings.ToLower(s.CharName)] = s.CharID
	sm.logger.Info("session joined roster",
		zap.Int64("char_id", s.CharID),
		zap.Int64("account_id", s.AccountID))
}

// Unregister drops the character from the roster.
func (sm *SessionManager) Unregister(charID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if s, ok := sm.roster[charID]; ok {
		key := strings.ToLower(s.CharName)
		if sm.nameIdx[key] == charID {
			delete(sm.nameIdx, key)
		}
	}
	delete(sm.roster, charID)
	sm.logger.Info("session left roster", zap.Int64("char_id", charID))
}

// Get returns the session for a character id, or nil.
func (sm *SessionManager) Get(charID int64) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.roster[charID]
}

// GetByName resolves a character name, case-insensitive.
func (sm *SessionManager) GetByName(name string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if id, ok := sm.nameIdx[strings.ToLower(name)]; ok {
		return sm.roster[id]
	}
	return nil
}

func (sm *SessionManager) IsOnline(charID int64) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.roster[charID]
	return ok
}

func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.roster)
}

// All returns a point-in-time copy of the roster.
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.snapshotLocked()
}

// snapshotLocked copies the roster so callers can iterate without holding
// the lock. Caller must hold mu in at least read mode.
func (sm *SessionManager) snapshotLocked() []*Session {
	out := make([]*Session, 0, len(sm.roster))
	for _, s := range sm.roster {
		out = append(out, s)
	}
	return out
}

// BroadcastAll fans a pre-encoded frame out to every session. Sends never
// block: a client whose channel is full misses the frame instead of
// stalling everyone behind it.
func (sm *SessionManager) BroadcastAll(data []byte) {
	sm.mu.RLock()
	targets := sm.snapshotLocked()
	sm.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.SendChan <- data:
		default:
			sm.logger.Warn("broadcast frame dropped, send buffer full",
				zap.Int64("char_id", s.CharID))
		}
	}
}

// BroadcastToAll encodes a packet once and fans it out.
func (sm *SessionManager) BroadcastToAll(pkt *Packet) {
	data, err := json.Marshal(pkt)
	if err != nil {
		sm.logger.Error("broadcast packet would not encode", zap.Error(err))
		return
	}
	sm.BroadcastAll(data)
}

// BroadcastSystemMessage announces to every online player.
func (sm *SessionManager) BroadcastSystemMessage(message string) {
	type announcePayload struct {
		Message string `json:"message"`
	}
	payload, _ := json.Marshal(announcePayload{Message: message})
	sm.BroadcastToAll(&Packet{Type: "server_announce", Payload: payload})
}

// CloseAllSessions closes every connection and waits, up to a deadline,
// for the read loops to unregister themselves. Used on shutdown so the
// final persistence pass runs against an empty roster.
func (sm *SessionManager) CloseAllSessions() {
	sm.mu.Lock()
	targets := sm.snapshotLocked()
	sm.mu.Unlock()

	sm.logger.Info("closing all sessions", zap.Int("count", len(targets)))
	for _, s := range targets {
		s.Close()
	}

	deadline := time.Now().Add(drainDeadline)
	for time.Now().Before(deadline) {
		if sm.Count() == 0 {
			return
		}
		time.Sleep(drainPoll)
	}
	sm.logger.Warn("shutdown drain deadline hit with sessions still open",
		zap.Int("remaining", sm.Count()))
}
