package repositories

import (
	"errors"
	"time"

	"rentora_backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrPaymentNotPending = errors.New("payment is not pending")
)

// PaymentRepository - хранилище платежей. Единственный переход статуса
// делается условным UPDATE ... WHERE status = 'pending', это и есть
// защита от повторной обработки колбэков.
type PaymentRepository interface {
	CreatePending(db *gorm.DB, payment *models.Payment) error
	FindByID(db *gorm.DB, id uint) (*models.Payment, error)
	FindByGatewayTransactionID(db *gorm.DB, txnID string) (*models.Payment, error)
	ListByPayer(db *gorm.DB, payerID string, limit, offset int) ([]models.Payment, int64, error)

	// AttachGatewayRequest сохраняет выданный шлюзу идентификатор и исходящий
	// запрос. Предыдущий идентификатор (если был) заменяется.
	AttachGatewayRequest(db *gorm.DB, id uint, txnID string, request datatypes.JSON) error

	// MarkCompleted атомарно переводит pending -> completed.
	// updated=false значит, что платёж уже был закрыт раньше.
	MarkCompleted(db *gorm.DB, id uint, paidAt time.Time, reference string, raw datatypes.JSON) (updated bool, err error)
	MarkFailed(db *gorm.DB, id uint, reason string, raw datatypes.JSON) (updated bool, err error)

	// FindCompletedMissingSideEffects - completed платежи без счёта
	// или без начисления баллов.
	FindCompletedMissingSideEffects(db *gorm.DB, limit int) ([]models.Payment, error)
	// FindDueForReconcile - то же, но только платежи с оставшимися попытками,
	// у которых подошло время следующей.
	FindDueForReconcile(db *gorm.DB, now time.Time, maxAttempts, limit int) ([]models.Payment, error)
	// RecordSettlementFailure увеличивает счётчик попыток сверки и откладывает следующую.
	RecordSettlementFailure(db *gorm.DB, id uint, nextAttemptAt time.Time, reason string) error
}

type paymentRepository struct{}

func NewPaymentRepository() PaymentRepository {
	return &paymentRepository{}
}

func (r *paymentRepository) CreatePending(db *gorm.DB, payment *models.Payment) error {
	payment.Status = models.PaymentStatusPending
	payment.PaidAt = nil
	return db.Create(payment).Error
}

func (r *paymentRepository) FindByID(db *gorm.DB, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := db.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByGatewayTransactionID(db *gorm.DB, txnID string) (*models.Payment, error) {
	var payment models.Payment
	if err := db.Where("gateway_transaction_id = ?", txnID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) ListByPayer(db *gorm.DB, payerID string, limit, offset int) ([]models.Payment, int64, error) {
	var payments []models.Payment
	var total int64

	query := db.Model(&models.Payment{}).Where("payer_id = ?", payerID).Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&payments).Error
	return payments, total, err
}

func (r *paymentRepository) AttachGatewayRequest(db *gorm.DB, id uint, txnID string, request datatypes.JSON) error {
	result := db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"gateway_transaction_id": txnID,
			"gateway_request":        request,
			"updated_at":             time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentNotPending
	}
	return nil
}

func (r *paymentRepository) MarkCompleted(db *gorm.DB, id uint, paidAt time.Time, reference string, raw datatypes.JSON) (bool, error) {
	updates := map[string]interface{}{
		"status":              models.PaymentStatusCompleted,
		"paid_at":             paidAt,
		"raw_gateway_payload": raw,
		"updated_at":          time.Now(),
	}
	if reference != "" {
		updates["gateway_reference"] = reference
	}
	return r.transition(db, id, updates)
}

func (r *paymentRepository) MarkFailed(db *gorm.DB, id uint, reason string, raw datatypes.JSON) (bool, error) {
	return r.transition(db, id, map[string]interface{}{
		"status":              models.PaymentStatusFailed,
		"failure_reason":      reason,
		"raw_gateway_payload": raw,
		"updated_at":          time.Now(),
	})
}

// transition - одна инструкция UPDATE с условием на pending.
// Из двух конкурентных вызовов строку изменит ровно один.
func (r *paymentRepository) transition(db *gorm.DB, id uint, updates map[string]interface{}) (bool, error) {
	result := db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.PaymentStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// missingSideEffects - completed платежи без счёта или без записи earn.
func missingSideEffects(db *gorm.DB) *gorm.DB {
	missing := db.Session(&gorm.Session{NewDB: true})
	return db.Where("status = ?", models.PaymentStatusCompleted).
		Where(
			missing.Where("NOT EXISTS (SELECT 1 FROM invoices i WHERE i.payment_id = payments.id)").
				Or("NOT EXISTS (SELECT 1 FROM loyalty_ledger_entries l WHERE l.related_payment_id = payments.id AND l.type = ?)", models.LedgerEntryEarn),
		)
}

func (r *paymentRepository) FindCompletedMissingSideEffects(db *gorm.DB, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := missingSideEffects(db).
		Order("paid_at ASC, id ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) FindDueForReconcile(db *gorm.DB, now time.Time, maxAttempts, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := missingSideEffects(db).
		Where("settlement_attempts < ?", maxAttempts).
		Where("next_settlement_at IS NULL OR next_settlement_at <= ?", now).
		Order("paid_at ASC, id ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) RecordSettlementFailure(db *gorm.DB, id uint, nextAttemptAt time.Time, reason string) error {
	return db.Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"settlement_attempts":   gorm.Expr("settlement_attempts + 1"),
			"next_settlement_at":    nextAttemptAt,
			"last_settlement_error": reason,
		}).Error
}
