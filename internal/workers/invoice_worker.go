package workers

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"rentora_backend/internal/logger"
	"rentora_backend/internal/repositories"
	"rentora_backend/internal/services"
)

const renderQueueSize = 256

// InvoiceWorker отрисовывает выписанные счета. Новые счета приходят через
// Enqueue, пропущенные и упавшие подбираются периодическим проходом.
type InvoiceWorker struct {
	db          *gorm.DB
	invoices    services.InvoiceService
	invoiceRepo repositories.InvoiceRepository

	interval    time.Duration
	batchSize   int
	maxAttempts int

	queue chan uint
	// Счета, которые сейчас отрисовываются: очередь и проход не берут один счёт дважды
	inFlight sync.Map
}

func NewInvoiceWorker(
	db *gorm.DB,
	invoices services.InvoiceService,
	invoiceRepo repositories.InvoiceRepository,
	interval time.Duration,
	batchSize, maxAttempts int,
) *InvoiceWorker {
	return &InvoiceWorker{
		db:          db,
		invoices:    invoices,
		invoiceRepo: invoiceRepo,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		queue:       make(chan uint, renderQueueSize),
	}
}

// Enqueue не блокирует: при переполненной очереди счёт дождётся прохода.
func (w *InvoiceWorker) Enqueue(invoiceID uint) {
	select {
	case w.queue <- invoiceID:
	default:
		logger.Warn("Render queue is full, deferring invoice to sweep", "invoice_id", invoiceID)
	}
}

// Start запускает обработку очереди и периодический проход
func (w *InvoiceWorker) Start(ctx context.Context) {
	go w.consume(ctx)
	go w.sweepLoop(ctx)
}

func (w *InvoiceWorker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("Invoice render worker stopped")
			return
		case id := <-w.queue:
			w.render(ctx, id)
		}
	}
}

func (w *InvoiceWorker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep проходит по счетам без документа, у которых остались попытки.
// Возвращает число успешно отрисованных.
func (w *InvoiceWorker) Sweep(ctx context.Context) int {
	pending, err := w.invoiceRepo.FindUnrendered(w.db.WithContext(ctx), w.maxAttempts, w.batchSize)
	if err != nil {
		logger.WorkerLog("invoice_render", "find_unrendered", err)
		return 0
	}

	rendered := 0
	for _, invoice := range pending {
		if ctx.Err() != nil {
			break
		}
		if w.render(ctx, invoice.ID) {
			rendered++
		}
	}
	if rendered > 0 {
		logger.Info("Rendered pending invoices", "worker", "invoice_render", "count", rendered)
	}
	return rendered
}

func (w *InvoiceWorker) render(ctx context.Context, invoiceID uint) bool {
	if _, busy := w.inFlight.LoadOrStore(invoiceID, struct{}{}); busy {
		logger.Debug("Invoice render already in progress", "worker", "invoice_render", "invoice_id", invoiceID)
		return false
	}
	defer w.inFlight.Delete(invoiceID)

	if err := w.invoices.RenderInvoice(ctx, w.db, invoiceID); err != nil {
		logger.Warn("Invoice render failed", "worker", "invoice_render", "invoice_id", invoiceID, "error", err.Error())
		return false
	}
	return true
}
