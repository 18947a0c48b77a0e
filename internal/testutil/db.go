// Package testutil - общие помощники для unit-тестов с базой.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rentora_backend/database"
	"rentora_backend/internal/models"
)

var dbSeq atomic.Int64

// NewDB открывает изолированную in-memory SQLite базу с применёнными миграциями.
// Одно соединение: транзакции выполняются строго по очереди.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:rentora_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

// CreateUser создаёт пользователя с указанным стартовым балансом.
// Баланс подкрепляется записью adjust, чтобы SUM(points) совпадал с кэшем.
func CreateUser(t *testing.T, db *gorm.DB, balance int64) *models.User {
	t.Helper()

	user := &models.User{
		ID:                   uuid.New().String(),
		Email:                uuid.New().String() + "@rentora.test",
		Role:                 models.UserRoleGuest,
		FullName:             "Test Guest",
		LoyaltyPointsBalance: balance,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	if balance != 0 {
		entry := &models.LoyaltyLedgerEntry{
			UserID: user.ID,
			Points: balance,
			Type:   models.LedgerEntryAdjust,
			Reason: "opening balance",
		}
		if err := db.Create(entry).Error; err != nil {
			t.Fatalf("Failed to create opening entry: %v", err)
		}
	}
	return user
}

// CreatePendingPayment создаёт pending платёж с уже назначенным идентификатором транзакции.
func CreatePendingPayment(t *testing.T, db *gorm.DB, payerID string, amount int64, method models.PaymentMethod, txnID string) *models.Payment {
	t.Helper()

	payment := &models.Payment{
		PayerID:              payerID,
		SubjectID:            "1001",
		SubjectType:          models.SubjectTypeAccommodation,
		Amount:               decimal.NewFromInt(amount),
		Currency:             "VND",
		Kind:                 models.PaymentKindDeposit,
		Method:               method,
		Status:               models.PaymentStatusPending,
		GatewayTransactionID: &txnID,
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("Failed to create payment: %v", err)
	}
	return payment
}
