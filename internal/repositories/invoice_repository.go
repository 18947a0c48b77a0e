package repositories

import (
	"errors"

	"rentora_backend/internal/models"

	"gorm.io/gorm"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

type InvoiceRepository interface {
	Create(db *gorm.DB, invoice *models.Invoice) error
	FindByID(db *gorm.DB, id uint) (*models.Invoice, error)
	FindByPaymentID(db *gorm.DB, paymentID uint) (*models.Invoice, error)
	ListByUser(db *gorm.DB, userID string, limit, offset int) ([]models.Invoice, int64, error)

	// FindUnrendered - выпущенные счета без документа, у которых ещё остались попытки рендера.
	FindUnrendered(db *gorm.DB, maxAttempts, limit int) ([]models.Invoice, error)
	SetRenderedURL(db *gorm.DB, id uint, url string) error
	RecordRenderFailure(db *gorm.DB, id uint, reason string) error
}

type invoiceRepository struct{}

func NewInvoiceRepository() InvoiceRepository {
	return &invoiceRepository{}
}

func (r *invoiceRepository) Create(db *gorm.DB, invoice *models.Invoice) error {
	return db.Create(invoice).Error
}

func (r *invoiceRepository) FindByID(db *gorm.DB, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := db.First(&invoice, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByPaymentID(db *gorm.DB, paymentID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := db.Where("payment_id = ?", paymentID).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) ListByUser(db *gorm.DB, userID string, limit, offset int) ([]models.Invoice, int64, error) {
	var invoices []models.Invoice
	var total int64

	query := db.Model(&models.Invoice{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("issued_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&invoices).Error
	return invoices, total, err
}

func (r *invoiceRepository) FindUnrendered(db *gorm.DB, maxAttempts, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := db.Where("rendered_document_url IS NULL AND status = ? AND render_attempts < ?", models.InvoiceStatusIssued, maxAttempts).
		Order("id ASC").
		Limit(limit).
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) SetRenderedURL(db *gorm.DB, id uint, url string) error {
	return db.Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"rendered_document_url": url,
			"last_render_error":     nil,
		}).Error
}

// RecordRenderFailure увеличивает счётчик попыток. Статус счёта не меняется.
func (r *invoiceRepository) RecordRenderFailure(db *gorm.DB, id uint, reason string) error {
	return db.Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"render_attempts":   gorm.Expr("render_attempts + 1"),
			"last_render_error": reason,
		}).Error
}
