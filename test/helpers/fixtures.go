package helpers

import (
	"fmt"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rentora_backend/internal/auth"
	"rentora_backend/internal/models"
	"rentora_backend/internal/signature"
)

const (
	JWTSecret       = "integration-secret"
	VNPayTmnCode    = "DEMO0001"
	VNPayHashSecret = "INTEGRATIONHASHSECRET"
)

// CreateUserWithToken создаёт пользователя и выдаёт ему токен.
func CreateUserWithToken(t *testing.T, db *gorm.DB, role models.UserRole, balance int64) (string, *models.User) {
	t.Helper()

	user := &models.User{
		ID:                   uuid.NewString(),
		Email:                fmt.Sprintf("user_%d@rentora.test", time.Now().UnixNano()),
		Role:                 role,
		FullName:             "Integration User",
		LoyaltyPointsBalance: balance,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if balance != 0 {
		entry := &models.LoyaltyLedgerEntry{UserID: user.ID, Points: balance, Type: models.LedgerEntryAdjust, Reason: "opening balance"}
		if err := db.Create(entry).Error; err != nil {
			t.Fatalf("Failed to create opening entry: %v", err)
		}
	}

	token, err := auth.IssueToken(JWTSecret, user.ID, role, time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token, user
}

// VNPayIPNQuery собирает подписанную query-строку IPN.
func VNPayIPNQuery(txnRef string, amount int64, responseCode string) string {
	fields := map[string]string{
		"vnp_TmnCode":           VNPayTmnCode,
		"vnp_Amount":            strconv.FormatInt(amount*100, 10),
		"vnp_TxnRef":            txnRef,
		"vnp_OrderInfo":         "Deposit for accommodation 1001",
		"vnp_ResponseCode":      responseCode,
		"vnp_TransactionStatus": responseCode,
		"vnp_TransactionNo":     "14000001",
		"vnp_PayDate":           "20261015103500",
	}
	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set(signature.VNPaySecureHashKey, signature.SignVNPay(fields, VNPayHashSecret))
	return q.Encode()
}
