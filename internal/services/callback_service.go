package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"rentora_backend/internal/gateway"
	"rentora_backend/internal/logger"
	"rentora_backend/internal/models"
	"rentora_backend/internal/repositories"
	"rentora_backend/internal/services/dto"
	"rentora_backend/pkg/apperrors"
)

// CallbackService обрабатывает уведомления шлюзов о результате оплаты.
//
// Порядок: разбор -> проверка подписи -> поиск платежа -> условный переход
// статуса -> расчёт. До успешной проверки подписи база не читается и не пишется.
// Повторная доставка того же колбэка подтверждается как успех без побочных эффектов.
type CallbackService interface {
	HandleCallback(ctx context.Context, db *gorm.DB, method models.PaymentMethod, payload gateway.CallbackPayload) (*dto.CallbackOutcome, error)
	// Ack переводит итог обработки в ответ, которого ждёт шлюз.
	Ack(method models.PaymentMethod, err error) (int, any)
}

type callbackService struct {
	paymentRepo       repositories.PaymentRepository
	gateways          *gateway.Registry
	settlementService SettlementService
	now               func() time.Time
}

func NewCallbackService(
	paymentRepo repositories.PaymentRepository,
	gateways *gateway.Registry,
	settlementService SettlementService,
) CallbackService {
	return &callbackService{
		paymentRepo:       paymentRepo,
		gateways:          gateways,
		settlementService: settlementService,
		now:               time.Now,
	}
}

func (s *callbackService) HandleCallback(ctx context.Context, db *gorm.DB, method models.PaymentMethod, payload gateway.CallbackPayload) (*dto.CallbackOutcome, error) {
	adapter, err := s.gateways.Get(method)
	if err != nil {
		return nil, err
	}

	result, err := adapter.ParseCallback(payload)
	if err != nil {
		logger.CtxWarn(ctx, "callback rejected", "gateway", method, "error", err.Error())
		return nil, err
	}

	tx := db.WithContext(ctx)
	payment, err := s.paymentRepo.FindByGatewayTransactionID(tx, result.TransactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			logger.CtxWarn(ctx, "callback for unknown transaction", "gateway", method, "gateway_transaction_id", result.TransactionID)
			return nil, apperrors.ErrUnknownTransaction
		}
		return nil, apperrors.InternalError(err)
	}
	// Идентификатор выдан другим шлюзом
	if payment.Method != method {
		logger.CtxWarn(ctx, "callback gateway does not match payment method",
			"gateway", method, "payment_method", payment.Method, "payment_id", payment.ID)
		return nil, apperrors.ErrUnknownTransaction
	}

	ctx = logger.WithPayment(ctx, payment.ID, result.TransactionID)
	log := logger.FromContext(ctx).With("gateway", method)

	if !result.Amount.Equal(payment.Amount) {
		log.Warn("callback amount does not match payment",
			"callback_amount", result.Amount.String(),
			"payment_amount", payment.Amount.String(),
		)
		return nil, apperrors.ErrInvalidPaymentAmount
	}

	outcome := &dto.CallbackOutcome{PaymentID: payment.ID}
	raw := datatypes.JSON(result.Raw)

	if !result.Success {
		updated, err := s.paymentRepo.MarkFailed(tx, payment.ID, result.FailureReason, raw)
		if err != nil {
			return nil, apperrors.InternalError(err)
		}
		outcome.Duplicate = !updated
		if updated {
			outcome.Status = models.PaymentStatusFailed
			log.Info("payment failed", "reason", result.FailureReason)
		} else {
			outcome.Status = payment.Status
			log.Info("failure callback for closed payment ignored", "status", payment.Status)
		}
		return outcome, nil
	}

	paidAt := s.now()
	updated, err := s.paymentRepo.MarkCompleted(tx, payment.ID, paidAt, result.Reference, raw)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if !updated {
		// Статус мог смениться параллельной доставкой после первого чтения
		if current, err := s.paymentRepo.FindByID(tx, payment.ID); err == nil {
			payment = current
		}
		outcome.Duplicate = true
		outcome.Status = payment.Status
		if payment.Status == models.PaymentStatusFailed {
			// Платёж не переоткрывается, нужен ручной разбор
			log.Error("success callback for failed payment", "gateway_reference", result.Reference)
		} else {
			log.Info("duplicate callback acknowledged")
		}
		return outcome, nil
	}

	payment.Status = models.PaymentStatusCompleted
	payment.PaidAt = &paidAt
	if result.Reference != "" {
		ref := result.Reference
		payment.GatewayReference = &ref
	}
	outcome.Status = models.PaymentStatusCompleted
	log.Info("payment completed", "gateway_reference", result.Reference)

	// Ошибки расчёта не влияют на ответ шлюзу: платёж уже зафиксирован,
	// недостающее доделает сверка.
	if _, err := s.settlementService.Settle(ctx, db, payment); err != nil {
		log.Error("settlement incomplete, left for reconciliation", "error", err.Error())
		return outcome, nil
	}
	outcome.Settled = true
	log.Info("payment settled")
	return outcome, nil
}

func (s *callbackService) Ack(method models.PaymentMethod, err error) (int, any) {
	adapter, getErr := s.gateways.Get(method)
	if getErr != nil {
		return http.StatusNotFound, getErr
	}
	return adapter.Ack(err)
}
