package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rentora_backend/database"
	"rentora_backend/internal/app"
	"rentora_backend/internal/config"
)

// TestServer - полное приложение поверх PostgreSQL из TEST_DATABASE_URL.
type TestServer struct {
	Server *httptest.Server
	DB     *gorm.DB
	Config *config.Config

	cancel context.CancelFunc
}

// NewTestServer поднимает сервер. Без TEST_DATABASE_URL тест пропускается.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set, skipping integration test")
	}

	t.Setenv("DATABASE_URL", dsn)
	t.Setenv("SERVER_ENV", "test")
	t.Setenv("JWT_SECRET", JWTSecret)
	t.Setenv("VNPAY_TMN_CODE", VNPayTmnCode)
	t.Setenv("VNPAY_HASH_SECRET", VNPayHashSecret)
	t.Setenv("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")
	t.Setenv("PUBLIC_BASE_URL", "http://localhost")
	t.Setenv("PAYMENT_RETURN_URL", "http://localhost/payments/return")
	t.Setenv("INVOICE_TAX_RATE", "0.1")
	t.Setenv("STORAGE_BASE_PATH", t.TempDir())

	config.LoadConfig()
	cfg := config.GetConfig()

	db, err := database.Connect(cfg.Database.DSN, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	router := app.SetupRouter(ctx, cfg, db)

	ts := &TestServer{
		Server: httptest.NewServer(router),
		DB:     db,
		Config: cfg,
		cancel: cancel,
	}
	ts.ClearTables(t)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *TestServer) Close() {
	ts.cancel()
	ts.Server.Close()
	if sqlDB, err := ts.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

// ClearTables очищает таблицы сервиса.
func (ts *TestServer) ClearTables(t *testing.T) {
	t.Helper()
	err := ts.DB.Exec("TRUNCATE TABLE loyalty_ledger_entries, invoices, payments, users RESTART IDENTITY CASCADE").Error
	if err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
}

// SendRequest отправляет JSON запрос и возвращает ответ с телом.
func (ts *TestServer) SendRequest(t *testing.T, method, path, token string, body interface{}) (*http.Response, string) {
	t.Helper()

	res, resBody, err := ts.Do(method, path, token, body)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	return res, resBody
}

// Do - вариант SendRequest без testing.T для вызова из горутин.
func (ts *TestServer) Do(method, path, token string, body interface{}) (*http.Response, string, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := ts.Server.Client().Do(req)
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response body: %w", err)
	}
	return res, string(resBody), nil
}
