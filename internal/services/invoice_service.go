package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"rentora_backend/internal/config"
	"rentora_backend/internal/logger"
	"rentora_backend/internal/models"
	"rentora_backend/internal/renderer"
	"rentora_backend/internal/repositories"
	"rentora_backend/internal/services/dto"
	"rentora_backend/internal/storage"
	"rentora_backend/pkg/apperrors"
)

// RenderQueue принимает счета на асинхронную отрисовку.
type RenderQueue interface {
	Enqueue(invoiceID uint)
}

type InvoiceService interface {
	// EnsureInvoice создаёт счёт для completed платежа или возвращает существующий.
	EnsureInvoice(ctx context.Context, db *gorm.DB, payment *models.Payment) (*models.Invoice, error)
	GetInvoice(ctx context.Context, db *gorm.DB, userID string, paymentID uint) (*models.Invoice, error)
	ListInvoices(ctx context.Context, db *gorm.DB, userID string, page, pageSize int) (*dto.InvoiceListResponse, error)

	// RenderInvoice отрисовывает документ и сохраняет ссылку.
	// Ошибка увеличивает счётчик попыток, статус счёта не меняется.
	RenderInvoice(ctx context.Context, db *gorm.DB, invoiceID uint) error
	SetRenderQueue(queue RenderQueue)
}

type invoiceService struct {
	invoiceRepo repositories.InvoiceRepository
	paymentRepo repositories.PaymentRepository
	renderer    renderer.Renderer
	storage     storage.Storage
	queue       RenderQueue

	taxRate  decimal.Decimal
	currency string
}

func NewInvoiceService(
	invoiceRepo repositories.InvoiceRepository,
	paymentRepo repositories.PaymentRepository,
	documentRenderer renderer.Renderer,
	documentStorage storage.Storage,
	cfg config.InvoiceConfig,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		renderer:    documentRenderer,
		storage:     documentStorage,
		taxRate:     cfg.TaxRate,
		currency:    cfg.Currency,
	}
}

func (s *invoiceService) SetRenderQueue(queue RenderQueue) {
	s.queue = queue
}

// InvoiceNumber - INV-YYYYMMDD-<id платежа, 8 знаков>
func InvoiceNumber(paidAt time.Time, paymentID uint) string {
	return fmt.Sprintf("INV-%s-%08d", paidAt.UTC().Format("20060102"), paymentID)
}

// lineDescription - "Deposit for accommodation 1001" / "Rent for contract 7"
func lineDescription(p *models.Payment) string {
	prefix := "Deposit"
	if p.Kind == models.PaymentKindRent {
		prefix = "Rent"
	}
	return fmt.Sprintf("%s for %s %s", prefix, p.SubjectType, p.SubjectID)
}

// BuildInvoice считает позиции и суммы. total = subtotal + tax ровно.
func BuildInvoice(p *models.Payment, taxRate decimal.Decimal) *models.Invoice {
	item := models.InvoiceItem{
		Description: lineDescription(p),
		Quantity:    1,
		UnitPrice:   p.Amount,
		Amount:      p.Amount,
	}

	subtotal := item.Amount
	tax := subtotal.Mul(taxRate).Round(2)

	paidAt := time.Now()
	if p.PaidAt != nil {
		paidAt = *p.PaidAt
	}

	return &models.Invoice{
		PaymentID:     p.ID,
		UserID:        p.PayerID,
		InvoiceNumber: InvoiceNumber(paidAt, p.ID),
		Items:         datatypes.NewJSONType([]models.InvoiceItem{item}),
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         subtotal.Add(tax),
		Currency:      p.Currency,
		Status:        models.InvoiceStatusIssued,
		IssuedAt:      &paidAt,
	}
}

func (s *invoiceService) EnsureInvoice(ctx context.Context, db *gorm.DB, payment *models.Payment) (*models.Invoice, error) {
	if payment.Status != models.PaymentStatusCompleted {
		return nil, apperrors.ErrPaymentNotSettled
	}
	tx := db.WithContext(ctx)

	existing, err := s.invoiceRepo.FindByPaymentID(tx, payment.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrInvoiceNotFound) {
		return nil, apperrors.InternalError(err)
	}

	invoice := BuildInvoice(payment, s.taxRate)
	if invoice.Currency == "" {
		invoice.Currency = s.currency
	}

	if err := s.invoiceRepo.Create(tx, invoice); err != nil {
		// Параллельный расчёт мог создать счёт первым, уникальный индекс по payment_id
		if concurrent, findErr := s.invoiceRepo.FindByPaymentID(tx, payment.ID); findErr == nil {
			return concurrent, nil
		}
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "invoice issued", "invoice_id", invoice.ID, "invoice_number", invoice.InvoiceNumber, "total", invoice.Total.String())

	if s.queue != nil {
		s.queue.Enqueue(invoice.ID)
	}
	return invoice, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, db *gorm.DB, userID string, paymentID uint) (*models.Invoice, error) {
	tx := db.WithContext(ctx)

	payment, err := s.paymentRepo.FindByID(tx, paymentID)
	if err != nil {
		return nil, handlePaymentError(err)
	}
	if payment.PayerID != userID {
		return nil, apperrors.ErrPaymentNotFound
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, apperrors.ErrPaymentNotSettled
	}

	invoice, err := s.invoiceRepo.FindByPaymentID(tx, paymentID)
	if err != nil {
		if errors.Is(err, repositories.ErrInvoiceNotFound) {
			return nil, apperrors.ErrInvoiceNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	return invoice, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, db *gorm.DB, userID string, page, pageSize int) (*dto.InvoiceListResponse, error) {
	page, pageSize, offset := normalizePage(page, pageSize)

	invoices, total, err := s.invoiceRepo.ListByUser(db.WithContext(ctx), userID, pageSize, offset)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &dto.InvoiceListResponse{
		Invoices: invoices,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (s *invoiceService) RenderInvoice(ctx context.Context, db *gorm.DB, invoiceID uint) error {
	tx := db.WithContext(ctx)

	invoice, err := s.invoiceRepo.FindByID(tx, invoiceID)
	if err != nil {
		if errors.Is(err, repositories.ErrInvoiceNotFound) {
			return apperrors.ErrInvoiceNotFound
		}
		return apperrors.InternalError(err)
	}
	if invoice.RenderedDocumentURL != nil {
		return nil
	}
	if s.renderer == nil || s.storage == nil {
		return errors.New("invoice rendering is not configured")
	}

	url, err := s.renderAndStore(ctx, invoice)
	if err != nil {
		if recErr := s.invoiceRepo.RecordRenderFailure(tx, invoice.ID, err.Error()); recErr != nil {
			logger.CtxWithError(ctx, "failed to record render failure", recErr, "invoice_id", invoice.ID)
		}
		return err
	}

	if err := s.invoiceRepo.SetRenderedURL(tx, invoice.ID, url); err != nil {
		return apperrors.InternalError(err)
	}
	logger.CtxInfo(ctx, "invoice rendered", "invoice_id", invoice.ID, "url", url)
	return nil
}

func (s *invoiceService) renderAndStore(ctx context.Context, invoice *models.Invoice) (string, error) {
	doc, err := s.renderer.Render(ctx, invoice)
	if err != nil {
		return "", err
	}

	key := storage.InvoiceKey(invoice.InvoiceNumber, doc.Extension)
	if err := s.storage.Save(ctx, key, bytes.NewReader(doc.Content), doc.ContentType); err != nil {
		return "", err
	}
	return s.storage.URL(key), nil
}
