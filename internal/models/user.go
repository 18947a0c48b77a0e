package models

import "time"

// User - запись пользователя. Учётными данными и профилем управляет
// сервис аутентификации; этот модуль пишет только LoyaltyPointsBalance.
type User struct {
	ID        string   `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string   `gorm:"uniqueIndex;not null" json:"email"`
	Role      UserRole `gorm:"type:varchar(20);not null;default:'guest'" json:"role"`
	FullName  string   `json:"full_name"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Материализованная сумма всех записей loyalty_ledger_entries пользователя.
	LoyaltyPointsBalance int64 `gorm:"not null;default:0" json:"loyalty_points_balance"`
}
