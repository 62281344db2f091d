package feed

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/mireska/ashfall/server/cache"
)

const (
	listKey    = "killfeed"
	maxEntries = 50
	opTimeout  = 2 * time.Second
)

// Entry is one kill feed record.
type Entry struct {
	VictimID   int64  `json:"victim_id"`
	VictimName string `json:"victim_name"`
	KillerID   int64  `json:"killer_id,omitempty"`
	ZoneID     string `json:"zone_id"`
	At         int64  `json:"at"` // unix millis
}

// Service keeps the recent-deaths feed in the shared cache so every server
// process sees the same list.
type Service struct {
	cache  cache.Cache
	logger *zap.Logger
}

// New creates a kill feed Service.
func New(c cache.Cache, logger *zap.Logger) *Service {
	return &Service{cache: c, logger: logger}
}

// Record pushes a death onto the feed and trims it. Never blocks gameplay;
// failures are logged and dropped.
func (s *Service) Record(e Entry) {
	if e.At == 0 {
		e.At = time.Now().UnixMilli()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.cache.LPush(ctx, listKey, string(data)); err != nil {
		s.logger.Warn("kill feed push failed", zap.Error(err))
		return
	}
	_ = s.cache.LTrim(ctx, listKey, 0, maxEntries-1)
}

// Recent returns up to n feed entries, newest first.
func (s *Service) Recent(ctx context.Context, n int64) ([]Entry, error) {
	raw, err := s.cache.LRange(ctx, listKey, 0, n-1)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
