package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ReceiptSyncJobName is the name of the ERP receipt sync job
const ReceiptSyncJobName = "receipt_sync"

// ReceiptSyncService defines the interface for syncing goods receipts from
// the ERP. The interface keeps the job package decoupled from the service
// package.
type ReceiptSyncService interface {
	// SyncReceipts checks open purchase orders against ERP receipt data and
	// advances their status. Returns counts for synced and failed orders.
	SyncReceipts(ctx context.Context) (synced int, failed int, err error)
}

// ReceiptSyncJob runs the ERP goods receipt sync for open purchase orders.
type ReceiptSyncJob struct {
	syncService ReceiptSyncService
	logger      *zap.Logger
	timeout     time.Duration
}

// NewReceiptSyncJob creates a new receipt sync job.
// The timeout controls how long one sync run is allowed to take.
func NewReceiptSyncJob(syncService ReceiptSyncService, logger *zap.Logger, timeout time.Duration) *ReceiptSyncJob {
	return &ReceiptSyncJob{
		syncService: syncService,
		logger:      logger,
		timeout:     timeout,
	}
}

// Run executes the receipt sync job.
// This is called by the scheduler according to the cron expression.
func (j *ReceiptSyncJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	j.logger.Info("starting receipt sync job")

	synced, failed, err := j.syncService.SyncReceipts(ctx)
	if err != nil {
		j.logger.Error("receipt sync failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("receipt sync job completed",
		zap.Int("synced", synced),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)))
}

// RegisterReceiptSyncJob registers the receipt sync job with the scheduler.
// If runAtStartup is true, one sync runs immediately in a background
// goroutine so startup is not blocked.
func RegisterReceiptSyncJob(scheduler *Scheduler, syncService ReceiptSyncService, logger *zap.Logger, cronExpr string, timeout time.Duration, runAtStartup bool) error {
	job := NewReceiptSyncJob(syncService, logger, timeout)

	if runAtStartup {
		go job.Run()
	}

	return scheduler.AddJob(ReceiptSyncJobName, cronExpr, job.Run)
}
