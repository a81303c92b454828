package rolesync

import (
	"context"
	"sync"
	"time"

	"cvr-league/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxAttempts  = 5
	sweepBatch   = 100
	applyTimeout = 10 * time.Second
)

// TagApplier applies one tag operation on the community platform.
type TagApplier interface {
	AddTag(ctx context.Context, userID int64, tag string) error
	RemoveTag(ctx context.Context, userID int64, tag string) error
}

// Worker sweeps the outbox on a cron schedule and whenever the
// engine nudges it after an approval.
type Worker struct {
	db      *gorm.DB
	applier TagApplier
	log     *zap.SugaredLogger
	cron    *cron.Cron
	nudge   chan struct{}
	done    chan struct{}

	// Sweeps must never overlap: two concurrent sweeps can select
	// overlapping PENDING snapshots and re-apply a stale op after a
	// later request already superseded it.
	sweepMu sync.Mutex
}

func NewWorker(db *gorm.DB, applier TagApplier, log *zap.SugaredLogger) *Worker {
	return &Worker{
		db:      db,
		applier: applier,
		log:     log,
		cron:    cron.New(),
		nudge:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start schedules periodic sweeps, e.g. every="30s". Cron ticks only
// nudge, so every sweep runs on the loop goroutine.
func (w *Worker) Start(every string) error {
	if _, err := w.cron.AddFunc("@every "+every, w.Nudge); err != nil {
		return err
	}
	w.cron.Start()
	go w.loop()
	return nil
}

func (w *Worker) Stop() {
	w.cron.Stop()
	close(w.done)
}

// Nudge asks for a prompt sweep without blocking the caller.
func (w *Worker) Nudge() {
	select {
	case w.nudge <- struct{}{}:
	default:
	}
}

func (w *Worker) loop() {
	for {
		select {
		case <-w.nudge:
			w.Sweep()
		case <-w.done:
			return
		}
	}
}

// Sweep applies pending ops in (request, seq) order. Each failure is
// logged on its own and retried on a later sweep until the attempt
// cap; partial application is a tolerated, visible inconsistency.
// The mutex serializes direct callers with the loop goroutine.
func (w *Worker) Sweep() {
	w.sweepMu.Lock()
	defer w.sweepMu.Unlock()

	var ops []models.RoleSyncOp
	err := w.db.
		Where("status = ?", models.SyncPending).
		Order("request_id ASC, seq ASC").
		Limit(sweepBatch).
		Find(&ops).Error
	if err != nil {
		w.log.Errorw("role-sync sweep query failed", "error", err)
		return
	}

	for i := range ops {
		w.apply(&ops[i])
	}
}

func (w *Worker) apply(op *models.RoleSyncOp) {
	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()

	var err error
	if op.Op == models.SyncOpAdd {
		err = w.applier.AddTag(ctx, op.UserID, op.Tag)
	} else {
		err = w.applier.RemoveTag(ctx, op.UserID, op.Tag)
	}

	if err == nil {
		now := time.Now().UTC()
		dbErr := w.db.Model(op).Updates(map[string]any{
			"status":     models.SyncApplied,
			"applied_at": &now,
			"attempts":   op.Attempts + 1,
			"last_error": "",
		}).Error
		if dbErr != nil {
			// the op stays PENDING and will be re-applied; tag
			// applies are idempotent on the platform side
			w.log.Errorw("role-sync status write failed",
				"op_id", op.ID, "request", op.RequestID, "error", dbErr)
		}
		return
	}

	status := models.SyncPending
	if op.Attempts+1 >= maxAttempts {
		status = models.SyncFailed
	}
	w.log.Warnw("role-sync op failed",
		"op", op.Op, "tag", op.Tag, "user", op.UserID,
		"request", op.RequestID, "attempt", op.Attempts+1, "error", err)
	dbErr := w.db.Model(op).Updates(map[string]any{
		"status":     status,
		"attempts":   op.Attempts + 1,
		"last_error": err.Error(),
	}).Error
	if dbErr != nil {
		w.log.Errorw("role-sync status write failed",
			"op_id", op.ID, "request", op.RequestID, "error", dbErr)
	}
}
