// Package audit journals processed activity events and manual quest actions.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/trailmate/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Journal actions.
const (
	ActionTrack         = "activity.track"
	ActionCheckin       = "activity.checkin"
	ActionComplete      = "quest.complete"
	ActionSetProgress   = "quest.set_progress"
	ActionReset         = "quest.reset"
	ActionAdminComplete = "admin.quest.complete"
	ActionAdminReset    = "admin.quest.reset"
)

const (
	queueSize  = 1024
	batchSize  = 100
	flushEvery = 2 * time.Second
)

// Entry holds one journal event to be logged.
type Entry struct {
	TraceID        string
	UserID         string
	Action         string
	QuestID        string
	RoomID         string
	Metadata       interface{}
	Result         interface{}
	QuestsAdvanced int
	PointsAwarded  int
	Error          string
	IP             string
}

// Service logs entries asynchronously in batches.
type Service struct {
	db      *gorm.DB
	ch      chan *model.ActivityLog
	stopCh  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	dropped int64
	mu      sync.Mutex
	logger  *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.ActivityLog, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

// Log enqueues an entry for async DB write. A full queue drops the entry.
func (svc *Service) Log(entry Entry) {
	record := &model.ActivityLog{
		TraceID:        entry.TraceID,
		UserID:         entry.UserID,
		Action:         entry.Action,
		QuestID:        entry.QuestID,
		RoomID:         entry.RoomID,
		Metadata:       toJSON(entry.Metadata),
		Result:         toJSON(entry.Result),
		QuestsAdvanced: entry.QuestsAdvanced,
		PointsAwarded:  entry.PointsAwarded,
		Error:          entry.Error,
		IP:             entry.IP,
	}
	select {
	case svc.ch <- record:
	default:
		svc.mu.Lock()
		svc.dropped++
		svc.mu.Unlock()
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", entry.Action), zap.String("user_id", entry.UserID))
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (svc *Service) Dropped() int64 {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.dropped
}

// Query returns the newest journal rows of userID.
func (svc *Service) Query(ctx context.Context, userID string, limit int) ([]model.ActivityLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []model.ActivityLog
	err := svc.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	svc.once.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	batch := make([]*model.ActivityLog, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Int("rows", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
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
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
