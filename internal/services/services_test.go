package services_test

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"rentora_backend/internal/config"
	"rentora_backend/internal/gateway"
	"rentora_backend/internal/models"
	"rentora_backend/internal/repositories"
	"rentora_backend/internal/services"
	"rentora_backend/internal/signature"
	"rentora_backend/internal/testutil"
)

const testHashSecret = "VNPAYSECRET"

// fixture - сервисы на реальных репозиториях и in-memory SQLite.
type fixture struct {
	db *gorm.DB

	paymentRepo repositories.PaymentRepository
	invoiceRepo repositories.InvoiceRepository
	loyaltyRepo repositories.LoyaltyRepository

	loyalty    services.LoyaltyService
	invoices   services.InvoiceService
	settlement services.SettlementService
	callbacks  services.CallbackService
	payments   services.PaymentService
	gateways   *gateway.Registry
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	taxRate  decimal.Decimal
	adapters []gateway.Adapter
	invoices   func(base services.InvoiceService) services.InvoiceService
	settlement config.SettlementConfig
}

func withTaxRate(rate string) fixtureOption {
	return func(c *fixtureConfig) { c.taxRate = decimal.RequireFromString(rate) }
}

func withAdapters(adapters ...gateway.Adapter) fixtureOption {
	return func(c *fixtureConfig) { c.adapters = adapters }
}

func withInvoiceService(wrap func(base services.InvoiceService) services.InvoiceService) fixtureOption {
	return func(c *fixtureConfig) { c.invoices = wrap }
}

func withSettlement(maxAttempts int, backoff time.Duration) fixtureOption {
	return func(c *fixtureConfig) {
		c.settlement = config.SettlementConfig{MaxAttempts: maxAttempts, RetryBackoff: backoff}
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := &fixtureConfig{
		taxRate:    decimal.Zero,
		settlement: config.SettlementConfig{MaxAttempts: 3, RetryBackoff: time.Minute},
		adapters: []gateway.Adapter{gateway.NewVNPayAdapter(config.VNPayConfig{
			TmnCode:       "DEMO0001",
			HashSecret:    testHashSecret,
			PayURL:        "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
			ExpireMinutes: 15,
		}, "https://rentora.example/return")},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	f := &fixture{
		db:          testutil.NewDB(t),
		paymentRepo: repositories.NewPaymentRepository(),
		invoiceRepo: repositories.NewInvoiceRepository(),
		loyaltyRepo: repositories.NewLoyaltyRepository(),
		gateways:    gateway.NewRegistry(cfg.adapters...),
	}

	f.loyalty = services.NewLoyaltyService(f.loyaltyRepo, config.LoyaltyConfig{
		AccrualRate:     decimal.RequireFromString("0.0001"),
		RedemptionValue: decimal.NewFromInt(100),
	})
	f.invoices = services.NewInvoiceService(f.invoiceRepo, f.paymentRepo, nil, nil, config.InvoiceConfig{
		TaxRate:  cfg.taxRate,
		Currency: "VND",
	})
	if cfg.invoices != nil {
		f.invoices = cfg.invoices(f.invoices)
	}
	f.settlement = services.NewSettlementService(f.paymentRepo, f.invoices, f.loyalty, cfg.settlement)
	f.callbacks = services.NewCallbackService(f.paymentRepo, f.gateways, f.settlement)

	seq, err := gateway.NewSequence(1)
	require.NoError(t, err)
	f.payments = services.NewPaymentService(f.paymentRepo, f.gateways, seq, "VND")
	return f
}

// vnpayCallback собирает подписанный IPN VNPay для транзакции.
func vnpayCallback(txnID string, amount int64, responseCode string) gateway.CallbackPayload {
	fields := map[string]string{
		"vnp_TmnCode":           "DEMO0001",
		"vnp_Amount":            strconv.FormatInt(amount*100, 10),
		"vnp_TxnRef":            txnID,
		"vnp_OrderInfo":         "Deposit for accommodation 1001",
		"vnp_ResponseCode":      responseCode,
		"vnp_TransactionStatus": responseCode,
		"vnp_TransactionNo":     "14123456",
		"vnp_PayDate":           "20261015103500",
	}
	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set(signature.VNPaySecureHashKey, signature.SignVNPay(fields, testHashSecret))
	return gateway.CallbackPayload{Query: q}
}

func (f *fixture) reloadPayment(t *testing.T, id uint) *models.Payment {
	t.Helper()
	p, err := f.paymentRepo.FindByID(f.db, id)
	require.NoError(t, err)
	return p
}

func (f *fixture) reloadUser(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := f.loyaltyRepo.FindUser(f.db, id)
	require.NoError(t, err)
	return u
}

func (f *fixture) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func completedPayment(t *testing.T, f *fixture, payerID string, amount int64) *models.Payment {
	t.Helper()
	p := testutil.CreatePendingPayment(t, f.db, payerID, amount, models.PaymentMethodVNPay, strconv.FormatInt(time.Now().UnixNano(), 10))
	updated, err := f.paymentRepo.MarkCompleted(f.db, p.ID, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC), "ref", nil)
	require.NoError(t, err)
	require.True(t, updated)
	return f.reloadPayment(t, p.ID)
}

// vnpayRspCode достаёт RspCode из ответа VNPay.
func vnpayRspCode(t *testing.T, body any) string {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	var ack struct {
		RspCode string `json:"RspCode"`
	}
	require.NoError(t, json.Unmarshal(raw, &ack))
	return ack.RspCode
}

var ctx = context.Background()
