package models

import "time"

// LoyaltyLedgerEntry - запись бонусного леджера. Только вставка:
// обычные операции записи не обновляют и не удаляют.
// Points > 0 - начисление, Points < 0 - списание.
type LoyaltyLedgerEntry struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UserID           string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Points           int64           `gorm:"not null" json:"points"`
	Type             LedgerEntryType `gorm:"type:varchar(20);not null;uniqueIndex:idx_ledger_payment_type" json:"type"`
	Reason           string          `gorm:"size:255" json:"reason"`
	RelatedPaymentID *uint           `gorm:"uniqueIndex:idx_ledger_payment_type" json:"related_payment_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func (LoyaltyLedgerEntry) TableName() string {
	return "loyalty_ledger_entries"
}
