package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bumpspot/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry holds one feed event to be recorded.
type Entry struct {
	ActorID  int64
	TargetID int64
	Verb     string
	Detail   interface{}
}

// Service writes activity entries asynchronously in batches, so engine
// operations never block on feed persistence.
type Service struct {
	db     *gorm.DB
	ch     chan *model.Activity
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a feed Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.Activity, 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Record enqueues a feed entry for async DB write. Safe to call on a nil
// Service; engines treat the feed as optional.
func (svc *Service) Record(entry Entry) {
	if svc == nil {
		return
	}
	detailJSON, _ := json.Marshal(entry.Detail)
	record := &model.Activity{
		ActorID:  entry.ActorID,
		TargetID: entry.TargetID,
		Verb:     entry.Verb,
		Detail:   datatypes.JSON(detailJSON),
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("feed channel full, dropping entry",
			zap.String("verb", entry.Verb))
	}
}

// Recent returns the latest events involving the given user, newest first.
func (svc *Service) Recent(ctx context.Context, userID int64, limit int) ([]model.Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var events []model.Activity
	err := svc.db.WithContext(ctx).
		Where("actor_id = ? OR target_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop() {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	batch := make([]*model.Activity, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("feed batch write failed", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
