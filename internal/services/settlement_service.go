package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"rentora_backend/internal/config"
	"rentora_backend/internal/logger"
	"rentora_backend/internal/models"
	"rentora_backend/internal/repositories"
	"rentora_backend/internal/services/dto"
	"rentora_backend/pkg/apperrors"
)

// SettlementService выполняет побочные эффекты завершённого платежа:
// выставление счёта и начисление баллов. Эффекты независимы: падение
// одного не отменяет другой и не откатывает платёж.
type SettlementService interface {
	Settle(ctx context.Context, db *gorm.DB, payment *models.Payment) (*dto.SettlementResult, error)
	// Reconcile повторно выполняет недостающие эффекты для completed платежа.
	Reconcile(ctx context.Context, db *gorm.DB, paymentID uint) (*dto.SettlementResult, error)
	// ReconcileMissing проходит по completed платежам без счёта или начисления.
	// Неудачная попытка откладывает платёж с удвоением паузы; после MaxAttempts
	// платёж остаётся для ручной сверки через Reconcile.
	ReconcileMissing(ctx context.Context, db *gorm.DB, limit int) (int, error)
}

const maxSettlementBackoff = 24 * time.Hour

type settlementService struct {
	paymentRepo    repositories.PaymentRepository
	invoiceService InvoiceService
	loyaltyService LoyaltyService

	maxAttempts  int
	retryBackoff time.Duration
	now          func() time.Time
}

func NewSettlementService(
	paymentRepo repositories.PaymentRepository,
	invoiceService InvoiceService,
	loyaltyService LoyaltyService,
	cfg config.SettlementConfig,
) SettlementService {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &settlementService{
		paymentRepo:    paymentRepo,
		invoiceService: invoiceService,
		loyaltyService: loyaltyService,
		maxAttempts:    maxAttempts,
		retryBackoff:   cfg.RetryBackoff,
		now:            time.Now,
	}
}

func (s *settlementService) Settle(ctx context.Context, db *gorm.DB, payment *models.Payment) (*dto.SettlementResult, error) {
	if payment.Status != models.PaymentStatusCompleted {
		return nil, apperrors.ErrPaymentNotSettled
	}

	result := &dto.SettlementResult{PaymentID: payment.ID}
	var errs []error

	invoice, err := s.invoiceService.EnsureInvoice(ctx, db, payment)
	if err != nil {
		logger.CtxWithError(ctx, "settlement side effect failed", err, "side_effect", "invoice")
		errs = append(errs, fmt.Errorf("invoice: %w", err))
	} else {
		result.Invoice = invoice
	}

	entry, err := s.loyaltyService.Accrue(ctx, db, payment)
	if err != nil {
		logger.CtxWithError(ctx, "settlement side effect failed", err, "side_effect", "loyalty_accrual")
		errs = append(errs, fmt.Errorf("loyalty accrual: %w", err))
	} else {
		result.Accrual = entry
	}

	if len(errs) > 0 {
		return result, apperrors.SettlementSideEffectFailure(errors.Join(errs...))
	}
	return result, nil
}

func (s *settlementService) Reconcile(ctx context.Context, db *gorm.DB, paymentID uint) (*dto.SettlementResult, error) {
	payment, err := s.paymentRepo.FindByID(db.WithContext(ctx), paymentID)
	if err != nil {
		return nil, handlePaymentError(err)
	}

	ctx = logger.WithPayment(ctx, payment.ID, derefString(payment.GatewayTransactionID))
	return s.Settle(ctx, db, payment)
}

func (s *settlementService) ReconcileMissing(ctx context.Context, db *gorm.DB, limit int) (int, error) {
	payments, err := s.paymentRepo.FindDueForReconcile(db.WithContext(ctx), s.now().UTC(), s.maxAttempts, limit)
	if err != nil {
		return 0, apperrors.InternalError(err)
	}

	repaired := 0
	for i := range payments {
		if ctx.Err() != nil {
			return repaired, ctx.Err()
		}
		p := &payments[i]
		pctx := logger.WithPayment(ctx, p.ID, derefString(p.GatewayTransactionID))
		if _, err := s.Settle(pctx, db, p); err != nil {
			s.postpone(pctx, db, p, err)
			continue
		}
		repaired++
	}
	return repaired, nil
}

// postpone записывает неудачную попытку, чтобы следующие проходы
// не упирались в один и тот же платёж.
func (s *settlementService) postpone(ctx context.Context, db *gorm.DB, p *models.Payment, cause error) {
	attempts := p.SettlementAttempts + 1
	next := s.now().UTC().Add(s.backoff(attempts))

	if err := s.paymentRepo.RecordSettlementFailure(db.WithContext(ctx), p.ID, next, cause.Error()); err != nil {
		logger.CtxWithError(ctx, "failed to record settlement attempt", err)
		return
	}
	if attempts >= s.maxAttempts {
		logger.CtxError(ctx, "settlement retries exhausted, manual reconciliation required",
			"attempts", attempts, "error", cause.Error())
		return
	}
	logger.CtxWarn(ctx, "settlement postponed", "attempts", attempts, "next_attempt_at", next)
}

func (s *settlementService) backoff(attempts int) time.Duration {
	d := s.retryBackoff
	for i := 1; i < attempts && d < maxSettlementBackoff; i++ {
		d *= 2
	}
	if d > maxSettlementBackoff {
		return maxSettlementBackoff
	}
	return d
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
