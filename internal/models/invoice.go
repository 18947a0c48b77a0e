package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type InvoiceItem struct {
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice создаётся один раз на платёж, после перехода платежа в completed.
// Total всегда равен Subtotal + Tax.
type Invoice struct {
	ID            uint                            `gorm:"primaryKey" json:"id"`
	PaymentID     uint                            `gorm:"not null;uniqueIndex" json:"payment_id"`
	UserID        string                          `gorm:"type:uuid;not null;index" json:"user_id"`
	InvoiceNumber string                          `gorm:"size:40;not null;uniqueIndex" json:"invoice_number"`
	Items         datatypes.JSONType[[]InvoiceItem] `gorm:"type:jsonb" json:"items"`
	Subtotal      decimal.Decimal                 `gorm:"type:decimal(15,2);not null" json:"subtotal"`
	Tax           decimal.Decimal                 `gorm:"type:decimal(15,2);not null" json:"tax"`
	Total         decimal.Decimal                 `gorm:"type:decimal(15,2);not null" json:"total"`
	Currency      string                          `gorm:"size:3;not null" json:"currency"`
	Status        InvoiceStatus                   `gorm:"type:varchar(20);not null;default:'draft'" json:"status"`

	RenderedDocumentURL *string    `json:"rendered_document_url,omitempty"`
	RenderAttempts      int        `gorm:"not null;default:0" json:"-"`
	LastRenderError     *string    `json:"-"`
	IssuedAt            *time.Time `json:"issued_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}
