package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment - платёж через один из внешних шлюзов.
// PaidAt заполнен тогда и только тогда, когда Status == completed.
type Payment struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	PayerID     string          `gorm:"type:uuid;not null;index" json:"payer_id"`
	SubjectID   string          `gorm:"size:64;not null;index" json:"subject_id"`
	SubjectType SubjectType     `gorm:"type:varchar(20);not null" json:"subject_type"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency    string          `gorm:"size:3;not null;default:'VND'" json:"currency"`
	Kind        PaymentKind     `gorm:"type:varchar(20);not null" json:"kind"`
	Method      PaymentMethod   `gorm:"type:varchar(20);not null" json:"method"`
	Status      PaymentStatus   `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	// Идентификатор, который мы передали шлюзу (vnp_TxnRef, orderId, app_trans_id).
	// Новый на каждую попытку инициации, уникален среди всех платежей.
	GatewayTransactionID *string `gorm:"size:64;uniqueIndex" json:"gateway_transaction_id,omitempty"`
	// Ссылка шлюза на транзакцию (vnp_TransactionNo, transId, zp_trans_id).
	GatewayReference *string `gorm:"size:64" json:"gateway_reference,omitempty"`

	GatewayRequest    datatypes.JSON `gorm:"type:jsonb" json:"-"`
	RawGatewayPayload datatypes.JSON `gorm:"type:jsonb" json:"-"`
	FailureReason     *string        `json:"failure_reason,omitempty"`

	// Сверка побочных эффектов: неудачные попытки и время следующей
	SettlementAttempts  int        `gorm:"not null;default:0" json:"-"`
	NextSettlementAt    *time.Time `gorm:"index" json:"-"`
	LastSettlementError *string    `json:"-"`

	DueAt     *time.Time `json:"due_at,omitempty"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}
