package persist

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mireska/ashfall/server/game/world"
)

// Saver periodically snapshots every character in every running zone and
// writes the snapshots to the database. A crash loses at most one interval
// of progress.
type Saver struct {
	svc      *Service
	zm       *world.Manager
	interval time.Duration
	logger   *zap.Logger
}

// NewSaver creates a Saver. interval <= 0 defaults to five minutes.
func NewSaver(svc *Service, zm *world.Manager, interval time.Duration, logger *zap.Logger) *Saver {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Saver{svc: svc, zm: zm, interval: interval, logger: logger}
}

// Interval reports the configured save interval.
func (s *Saver) Interval() time.Duration { return s.interval }

// SaveAll captures every zone's characters on their zone goroutines and
// writes the snapshots asynchronously.
func (s *Saver) SaveAll() {
	for _, z := range s.zm.All() {
		z := z
		z.Do(func() {
			chars := z.Characters()
			if len(chars) == 0 {
				return
			}
			snaps := make([]Snapshot, 0, len(chars))
			for _, c := range chars {
				snaps = append(snaps, Capture(c, z.ID()))
			}
			go s.write(snaps)
		})
	}
}

// Flush saves every zone's characters and blocks until the writes finish.
// Used at shutdown, before the zones stop.
func (s *Saver) Flush() {
	for _, z := range s.zm.All() {
		z := z
		var snaps []Snapshot
		done := make(chan struct{})
		z.Do(func() {
			defer close(done)
			for _, c := range z.Characters() {
				snaps = append(snaps, Capture(c, z.ID()))
			}
		})
		select {
		case <-done:
			s.write(snaps)
		case <-time.After(5 * time.Second):
			s.logger.Error("flush timed out", zap.String("zone", z.ID()))
		}
	}
}

func (s *Saver) write(snaps []Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, snap := range snaps {
		if err := s.svc.Save(ctx, snap); err != nil {
			s.logger.Error("periodic save failed",
				zap.Int64("char_id", snap.CharID),
				zap.Error(err))
		}
	}
}
