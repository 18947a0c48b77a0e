package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"rentora_backend/internal/auth"
	"rentora_backend/internal/config"
	"rentora_backend/internal/gateway"
	"rentora_backend/internal/handlers"
	"rentora_backend/internal/middleware"
	"rentora_backend/internal/models"
	"rentora_backend/internal/repositories"
	"rentora_backend/internal/routes"
	"rentora_backend/internal/services"
	"rentora_backend/internal/signature"
	"rentora_backend/internal/testutil"
	"rentora_backend/internal/validator"
)

const (
	jwtSecret  = "handler-secret"
	hashSecret = "VNPAYSECRET"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	db     *gorm.DB
	router *gin.Engine
}

func newTestApp(t *testing.T, limiter *middleware.IPRateLimiter) *testApp {
	t.Helper()

	db := testutil.NewDB(t)
	paymentRepo := repositories.NewPaymentRepository()

	registry := gateway.NewRegistry(gateway.NewVNPayAdapter(config.VNPayConfig{
		TmnCode:       "DEMO0001",
		HashSecret:    hashSecret,
		PayURL:        "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ExpireMinutes: 15,
	}, "https://rentora.example/return"))
	seq, err := gateway.NewSequence(2)
	require.NoError(t, err)

	loyalty := services.NewLoyaltyService(repositories.NewLoyaltyRepository(), config.LoyaltyConfig{
		AccrualRate:     decimal.RequireFromString("0.0001"),
		RedemptionValue: decimal.NewFromInt(100),
	})
	invoices := services.NewInvoiceService(repositories.NewInvoiceRepository(), paymentRepo, nil, nil, config.InvoiceConfig{
		TaxRate:  decimal.RequireFromString("0.1"),
		Currency: "VND",
	})
	settlement := services.NewSettlementService(paymentRepo, invoices, loyalty, config.SettlementConfig{MaxAttempts: 3, RetryBackoff: time.Minute})
	callbacks := services.NewCallbackService(paymentRepo, registry, settlement)
	payments := services.NewPaymentService(paymentRepo, registry, seq, "VND")

	base := handlers.NewBaseHandler(validator.New(), jwtSecret)
	appHandlers := &handlers.AppHandlers{
		PaymentHandler:  handlers.NewPaymentHandler(base, payments, invoices),
		CallbackHandler: handlers.NewCallbackHandler(base, callbacks, limiter),
		LoyaltyHandler:  handlers.NewLoyaltyHandler(base, loyalty),
		InvoiceHandler:  handlers.NewInvoiceHandler(base, invoices),
		AdminHandler:    handlers.NewAdminHandler(base, settlement, loyalty, 50),
	}

	router := gin.New()
	router.Use(middleware.DBMiddleware(db))
	routes.RegisterRoutes(router, appHandlers, db)

	return &testApp{db: db, router: router}
}

func (a *testApp) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "198.51.100.10:40000"

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func tokenFor(t *testing.T, user *models.User, role models.UserRole) string {
	t.Helper()
	token, err := auth.IssueToken(jwtSecret, user.ID, role, time.Hour)
	require.NoError(t, err)
	return token
}

func ipnQuery(txnID string, amount int64, responseCode string) string {
	fields := map[string]string{
		"vnp_TmnCode":           "DEMO0001",
		"vnp_Amount":            strconv.FormatInt(amount*100, 10),
		"vnp_TxnRef":            txnID,
		"vnp_OrderInfo":         "Rent for contract 7",
		"vnp_ResponseCode":      responseCode,
		"vnp_TransactionStatus": responseCode,
		"vnp_TransactionNo":     "14999999",
		"vnp_PayDate":           "20261015110000",
	}
	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set(signature.VNPaySecureHashKey, signature.SignVNPay(fields, hashSecret))
	return q.Encode()
}

func rspCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var ack struct {
		RspCode string `json:"RspCode"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	return ack.RspCode
}

func TestCreatePayment_ThenVNPayCallbackSettles(t *testing.T) {
	app := newTestApp(t, nil)
	user := testutil.CreateUser(t, app.db, 0)
	token := tokenFor(t, user, models.UserRoleGuest)

	w := app.do(t, http.MethodPost, "/api/v1/payments", token,
		`{"subject_id":"7","subject_type":"contract","amount":"500000","kind":"rent","method":"vnpay"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Payment     models.Payment `json:"payment"`
		RedirectURL string         `json:"redirect_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotNil(t, created.Payment.GatewayTransactionID)
	assert.Equal(t, models.PaymentStatusPending, created.Payment.Status)
	assert.True(t, strings.HasPrefix(created.RedirectURL, "https://sandbox.vnpayment.vn/"))

	w = app.do(t, http.MethodGet, "/api/v1/payments/callback/vnpay?"+ipnQuery(*created.Payment.GatewayTransactionID, 500000, "00"), "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "00", rspCode(t, w))

	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/v1/payments/%d", created.Payment.ID), token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var payment models.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payment))
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.NotNil(t, payment.PaidAt)

	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/v1/payments/%d/invoice", created.Payment.ID), token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var invoice models.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &invoice))
	assert.True(t, decimal.NewFromInt(550000).Equal(invoice.Total), "total %s", invoice.Total)

	w = app.do(t, http.MethodGet, "/api/v1/loyalty/balance", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"user_id":%q,"balance":50}`, user.ID), w.Body.String())
}

func TestCreatePayment_ValidationErrors(t *testing.T) {
	app := newTestApp(t, nil)
	user := testutil.CreateUser(t, app.db, 0)
	token := tokenFor(t, user, models.UserRoleGuest)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"amount":`, http.StatusBadRequest},
		{"fractional amount", `{"subject_id":"7","subject_type":"contract","amount":"500000.50","kind":"rent","method":"vnpay"}`, http.StatusBadRequest},
		{"zero amount", `{"subject_id":"7","subject_type":"contract","amount":"0","kind":"rent","method":"vnpay"}`, http.StatusBadRequest},
		{"unknown gateway", `{"subject_id":"7","subject_type":"contract","amount":"10","kind":"rent","method":"paypal"}`, http.StatusBadRequest},
		{"unknown kind", `{"subject_id":"7","subject_type":"contract","amount":"10","kind":"tip","method":"vnpay"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := app.do(t, http.MethodPost, "/api/v1/payments", token, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}

	var count int64
	require.NoError(t, app.db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetPayment_OtherPayerNotFound(t *testing.T) {
	app := newTestApp(t, nil)
	owner := testutil.CreateUser(t, app.db, 0)
	stranger := testutil.CreateUser(t, app.db, 0)
	payment := testutil.CreatePendingPayment(t, app.db, owner.ID, 100000, models.PaymentMethodVNPay, "1790000000000000001")

	w := app.do(t, http.MethodGet, fmt.Sprintf("/api/v1/payments/%d", payment.ID), tokenFor(t, stranger, models.UserRoleGuest), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/payments/abc", tokenFor(t, owner, models.UserRoleGuest), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVNPayCallback_AckCodes(t *testing.T) {
	app := newTestApp(t, nil)
	user := testutil.CreateUser(t, app.db, 0)
	testutil.CreatePendingPayment(t, app.db, user.ID, 100000, models.PaymentMethodVNPay, "1790000000000000002")

	w := app.do(t, http.MethodGet, "/api/v1/payments/callback/vnpay?"+ipnQuery("1790000000000000099", 100000, "00"), "", "")
	assert.Equal(t, "01", rspCode(t, w))

	w = app.do(t, http.MethodGet, "/api/v1/payments/callback/vnpay?"+ipnQuery("1790000000000000002", 99999, "00"), "", "")
	assert.Equal(t, "04", rspCode(t, w))

	tampered := strings.Replace(ipnQuery("1790000000000000002", 100000, "00"), "vnp_Amount=10000000", "vnp_Amount=100", 1)
	w = app.do(t, http.MethodGet, "/api/v1/payments/callback/vnpay?"+tampered, "", "")
	assert.Equal(t, "97", rspCode(t, w))

	w = app.do(t, http.MethodGet, "/api/v1/payments/callback/vnpay", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, "00", rspCode(t, w))
}

func TestCallbackRoutes_RateLimited(t *testing.T) {
	app := newTestApp(t, middleware.NewIPRateLimiter(0.001, 2))

	for i := 0; i < 2; i++ {
		w := app.do(t, http.MethodGet, "/api/v1/payments/callback/vnpay", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := app.do(t, http.MethodGet, "/api/v1/payments/callback/vnpay", "", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRedeem_InsufficientAndSuccess(t *testing.T) {
	app := newTestApp(t, nil)
	user := testutil.CreateUser(t, app.db, 120)
	token := tokenFor(t, user, models.UserRoleGuest)

	w := app.do(t, http.MethodPost, "/api/v1/loyalty/redeem", token, `{"points":500}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/loyalty/redeem", token, `{"points":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/loyalty/redeem", token, `{"points":100}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		PointsRedeemed int64  `json:"points_redeemed"`
		Discount       string `json:"discount"`
		Balance        int64  `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(100), resp.PointsRedeemed)
	assert.Equal(t, "10000", resp.Discount)
	assert.Equal(t, int64(20), resp.Balance)

	w = app.do(t, http.MethodGet, "/api/v1/loyalty/history?page=1&page_size=1", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Entries []models.LoyaltyLedgerEntry `json:"entries"`
		Total   int64                       `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Equal(t, int64(2), history.Total)
	assert.Len(t, history.Entries, 1)
}

func TestAdminRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	guest := testutil.CreateUser(t, app.db, 40)
	admin := testutil.CreateUser(t, app.db, 0)

	w := app.do(t, http.MethodGet, "/api/v1/admin/loyalty/"+guest.ID+"/verify", tokenFor(t, guest, models.UserRoleGuest), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/admin/loyalty/"+guest.ID+"/verify", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	adminToken := tokenFor(t, admin, models.UserRoleAdmin)
	w = app.do(t, http.MethodGet, "/api/v1/admin/loyalty/"+guest.ID+"/verify", adminToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"user_id":%q,"cached_balance":40,"ledger_sum":40,"consistent":true}`, guest.ID), w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/admin/settlements/reconcile?limit=10", adminToken, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"repaired":0}`, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/v1/admin/payments/424242/reconcile", adminToken, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, nil)
	w := app.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
