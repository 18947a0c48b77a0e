package workers

import (
	"context"
	"time"

	"gorm.io/gorm"

	"rentora_backend/internal/logger"
	"rentora_backend/internal/services"
)

// SettlementWorker периодически доделывает расчёт по completed платежам,
// у которых нет счёта или записи о начислении баллов.
type SettlementWorker struct {
	db         *gorm.DB
	settlement services.SettlementService
	interval   time.Duration
	batchSize  int
}

func NewSettlementWorker(db *gorm.DB, settlement services.SettlementService, interval time.Duration, batchSize int) *SettlementWorker {
	return &SettlementWorker{
		db:         db,
		settlement: settlement,
		interval:   interval,
		batchSize:  batchSize,
	}
}

// Start запускает фоновую сверку
func (w *SettlementWorker) Start(ctx context.Context) {
	go w.reconcileLoop(ctx)
}

func (w *SettlementWorker) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Settlement worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход сверки и возвращает число доделанных платежей.
func (w *SettlementWorker) RunOnce(ctx context.Context) int {
	repaired, err := w.settlement.ReconcileMissing(ctx, w.db, w.batchSize)
	if err != nil {
		logger.WorkerLog("settlement", "reconcile_missing", err)
		return repaired
	}
	if repaired > 0 {
		logger.Info("Reconciled settlements", "worker", "settlement", "count", repaired)
	}
	return repaired
}
