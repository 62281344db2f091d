// Package audit writes a per-action trail of player activity to the
// database. Gameplay actions are high-volume, so entries are buffered and
// written in batches off the hot path; under sustained backpressure the
// trail drops entries rather than slowing the game loop.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mireska/ashfall/server/model"
)

const (
	queueDepth = 1024
	batchMax   = 100
	flushEvery = 2 * time.Second
)

// AuditEntry is one recorded action. CharID and AccountID are pointers so
// pre-login events (failed auth, bad tokens) can omit them.
type AuditEntry struct {
	TraceID    string
	CharID     *int64
	AccountID  *int64
	CharName   string
	Action     string
	Request    interface{}
	Response   interface{}
	Error      string
	IP         string
	ZoneID     string
	DurationMs int
}

func (e AuditEntry) record() *model.AuditLog {
	reqJSON, _ := json.Marshal(e.Request)
	respJSON, _ := json.Marshal(e.Response)
	return &model.AuditLog{
		TraceID:    e.TraceID,
		CharID:     e.CharID,
		AccountID:  e.AccountID,
		CharName:   e.CharName,
		Action:     e.Action,
		Request:    datatypes.JSON(reqJSON),
		Response:   datatypes.JSON(respJSON),
		Error:      e.Error,
		IP:         e.IP,
		ZoneID:     e.ZoneID,
		DurationMs: e.DurationMs,
	}
}

// Service accepts entries from any goroutine and persists them from a
// single background writer.
type Service struct {
	db     *gorm.DB
	queue  chan *model.AuditLog
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New starts the background writer. Call Stop before process exit or the
// tail of the trail is lost.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		queue:  make(chan *model.AuditLog, queueDepth),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.writer()
	return svc
}

// Log queues one entry. Never blocks; a full queue drops the entry with a
// warning.
func (svc *Service) Log(entry AuditEntry) {
	select {
	case svc.queue <- entry.record():
	default:
		svc.logger.Warn("audit queue full, entry dropped",
			zap.String("action", entry.Action))
	}
}

// Stop drains the queue, writes the final batch and blocks until the
// writer has exited. Safe to call more than once.
func (svc *Service) Stop(_ context.Context) {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) writer() {
	defer svc.wg.Done()

	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, batchMax)

	for {
		select {
		case rec := <-svc.queue:
			batch = append(batch, rec)
			if len(batch) >= batchMax {
				batch = svc.flush(batch)
			}
		case <-ticker.C:
			batch = svc.flush(batch)
		case <-svc.stopCh:
			for {
				select {
				case rec := <-svc.queue:
					batch = append(batch, rec)
				default:
					svc.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes the batch in one insert and returns the slice emptied for
// reuse. A failed write is logged and the batch discarded; the trail is
// best-effort, gameplay never waits on it.
func (svc *Service) flush(batch []*model.AuditLog) []*model.AuditLog {
	if len(batch) == 0 {
		return batch
	}
	if err := svc.db.Create(&batch).Error; err != nil {
		svc.logger.Error("audit batch insert failed",
			zap.Int("entries", len(batch)),
			zap.Error(err))
	}
	return batch[:0]
}
