package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"rentora_backend/internal/models"
)

type CreatePaymentRequest struct {
	SubjectID   string               `json:"subject_id" validate:"required,max=64"`
	SubjectType models.SubjectType   `json:"subject_type" validate:"required,subject_type"`
	Amount      decimal.Decimal      `json:"amount" validate:"required,gt=0"`
	Kind        models.PaymentKind   `json:"kind" validate:"required,payment_kind"`
	Method      models.PaymentMethod `json:"method" validate:"required,gateway"`
	DueAt       *time.Time           `json:"due_at,omitempty"`
}

// CreatePaymentResponse - платёж и ссылка, куда отправить плательщика.
type CreatePaymentResponse struct {
	Payment     *models.Payment `json:"payment"`
	RedirectURL string          `json:"redirect_url"`
}

type PaymentListResponse struct {
	Payments []models.Payment `json:"payments"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// CallbackOutcome - итог обработки колбэка, для логов и тестов.
type CallbackOutcome struct {
	PaymentID uint                 `json:"payment_id"`
	Status    models.PaymentStatus `json:"status"`
	Duplicate bool                 `json:"duplicate"`
	Settled   bool                 `json:"settled"`
}

// SettlementResult - что было сделано при расчёте по платежу.
type SettlementResult struct {
	PaymentID uint                       `json:"payment_id"`
	Invoice   *models.Invoice            `json:"invoice,omitempty"`
	Accrual   *models.LoyaltyLedgerEntry `json:"accrual,omitempty"`
}
