package services

import (
	"context"
	"errors"
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

type PaymentService interface {
	// CreatePayment создаёт pending платёж и инициирует его в шлюзе.
	// Если шлюз недоступен, платёж остаётся pending и ошибка содержит его id.
	CreatePayment(ctx context.Context, db *gorm.DB, payerID, clientIP string, req *dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error)
	// RetryPayment повторяет инициацию платежа, которому шлюз так и не выдал ссылку.
	RetryPayment(ctx context.Context, db *gorm.DB, payerID, clientIP string, paymentID uint) (*dto.CreatePaymentResponse, error)
	GetPayment(ctx context.Context, db *gorm.DB, payerID string, paymentID uint) (*models.Payment, error)
	ListPayerPayments(ctx context.Context, db *gorm.DB, payerID string, page, pageSize int) (*dto.PaymentListResponse, error)
}

type paymentService struct {
	paymentRepo repositories.PaymentRepository
	gateways    *gateway.Registry
	sequence    gateway.Sequence
	currency    string
	now         func() time.Time
}

func NewPaymentService(
	paymentRepo repositories.PaymentRepository,
	gateways *gateway.Registry,
	sequence gateway.Sequence,
	currency string,
) PaymentService {
	return &paymentService{
		paymentRepo: paymentRepo,
		gateways:    gateways,
		sequence:    sequence,
		currency:    currency,
		now:         time.Now,
	}
}

func (s *paymentService) CreatePayment(ctx context.Context, db *gorm.DB, payerID, clientIP string, req *dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, apperrors.ValidationError(map[string]string{"amount": "must be greater than zero"})
	}
	// Шлюзы списывают целые донги: хранимая сумма должна совпадать со списанной
	if !req.Amount.Equal(req.Amount.Truncate(0)) {
		return nil, apperrors.ValidationError(map[string]string{"amount": "must be a whole amount in " + s.currency})
	}
	adapter, err := s.gateways.Get(req.Method)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		PayerID:     payerID,
		SubjectID:   req.SubjectID,
		SubjectType: req.SubjectType,
		Amount:      req.Amount,
		Currency:    s.currency,
		Kind:        req.Kind,
		Method:      req.Method,
		DueAt:       req.DueAt,
	}
	if err := s.paymentRepo.CreatePending(db.WithContext(ctx), payment); err != nil {
		return nil, apperrors.InternalError(err)
	}

	ctx = logger.WithPayment(ctx, payment.ID, "")
	logger.CtxInfo(ctx, "payment created", "method", payment.Method, "amount", payment.Amount.String())

	return s.initiate(ctx, db, adapter, payment, clientIP)
}

func (s *paymentService) RetryPayment(ctx context.Context, db *gorm.DB, payerID, clientIP string, paymentID uint) (*dto.CreatePaymentResponse, error) {
	payment, err := s.GetPayment(ctx, db, payerID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() {
		return nil, apperrors.ErrPaymentAlreadyClosed
	}
	// Ссылка уже выдана: новый идентификатор осиротил бы колбэк по старому
	if payment.GatewayTransactionID != nil {
		return nil, apperrors.ErrConflict(nil, "payment", "Payment has already been initiated")
	}

	adapter, err := s.gateways.Get(payment.Method)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithPayment(ctx, payment.ID, "")
	return s.initiate(ctx, db, adapter, payment, clientIP)
}

// initiate: собрать запрос -> вызвать шлюз -> сохранить. Во время вызова
// никаких блокировок в базе не держим.
func (s *paymentService) initiate(ctx context.Context, db *gorm.DB, adapter gateway.Adapter, payment *models.Payment, clientIP string) (*dto.CreatePaymentResponse, error) {
	initiation, err := adapter.BuildRequest(ctx, gateway.InitRequest{
		Payment:  payment,
		Sequence: s.sequence.Next(),
		ClientIP: clientIP,
		Now:      s.now(),
	})
	if err != nil {
		logger.CtxWithError(ctx, "payment initiation failed", err, "method", payment.Method)
		if appErr, ok := apperrors.AsAppError(err); ok {
			return nil, appErr.WithDetails(map[string]interface{}{
				"gateway":    string(payment.Method),
				"payment_id": payment.ID,
			})
		}
		return nil, apperrors.GatewayUnavailable(err, string(payment.Method))
	}

	err = s.paymentRepo.AttachGatewayRequest(db.WithContext(ctx), payment.ID, initiation.TransactionID, datatypes.JSON(initiation.Request))
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotPending) {
			return nil, apperrors.ErrPaymentAlreadyClosed
		}
		return nil, apperrors.InternalError(err)
	}

	txnID := initiation.TransactionID
	payment.GatewayTransactionID = &txnID
	payment.GatewayRequest = datatypes.JSON(initiation.Request)

	logger.CtxInfo(ctx, "payment initiated", "method", payment.Method, "gateway_transaction_id", txnID)

	return &dto.CreatePaymentResponse{
		Payment:     payment,
		RedirectURL: initiation.RedirectURL,
	}, nil
}

func (s *paymentService) GetPayment(ctx context.Context, db *gorm.DB, payerID string, paymentID uint) (*models.Payment, error) {
	payment, err := s.paymentRepo.FindByID(db.WithContext(ctx), paymentID)
	if err != nil {
		return nil, handlePaymentError(err)
	}
	// Чужой платёж выглядит как несуществующий
	if payment.PayerID != payerID {
		return nil, apperrors.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *paymentService) ListPayerPayments(ctx context.Context, db *gorm.DB, payerID string, page, pageSize int) (*dto.PaymentListResponse, error) {
	page, pageSize, offset := normalizePage(page, pageSize)

	payments, total, err := s.paymentRepo.ListByPayer(db.WithContext(ctx), payerID, pageSize, offset)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &dto.PaymentListResponse{
		Payments: payments,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func handlePaymentError(err error) error {
	if errors.Is(err, repositories.ErrPaymentNotFound) {
		return apperrors.ErrPaymentNotFound
	}
	return apperrors.InternalError(err)
}
