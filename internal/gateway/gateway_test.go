package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentora_backend/internal/config"
	"rentora_backend/internal/models"
	"rentora_backend/internal/signature"
	"rentora_backend/pkg/apperrors"
)

func testPayment() *models.Payment {
	return &models.Payment{
		ID:          42,
		PayerID:     "9b2f7c1e-3d4a-4f6b-8c2d-1a2b3c4d5e6f",
		SubjectID:   "1001",
		SubjectType: models.SubjectTypeAccommodation,
		Amount:      decimal.NewFromInt(500000),
		Currency:    "VND",
		Kind:        models.PaymentKindDeposit,
		Method:      models.PaymentMethodVNPay,
		Status:      models.PaymentStatusPending,
	}
}

var fixedNow = time.Date(2026, 10, 15, 3, 30, 0, 0, time.UTC)

// ---------- VNPay ----------

func newTestVNPay() *VNPayAdapter {
	return NewVNPayAdapter(config.VNPayConfig{
		TmnCode:       "DEMO0001",
		HashSecret:    "VNPAYSECRET",
		PayURL:        "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ExpireMinutes: 15,
	}, "https://rentora.example/payments/return")
}

func TestVNPay_BuildRequest_SignedRedirect(t *testing.T) {
	a := newTestVNPay()

	initiation, err := a.BuildRequest(context.Background(), InitRequest{
		Payment:  testPayment(),
		Sequence: 1790012345678901234,
		ClientIP: "10.0.0.1",
		Now:      fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, "1790012345678901234", initiation.TransactionID)

	u, err := url.Parse(initiation.RedirectURL)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "50000000", q.Get("vnp_Amount"), "сумма передаётся в сотых")
	assert.Equal(t, "20261015103000", q.Get("vnp_CreateDate"), "дата в GMT+7")
	assert.Equal(t, "20261015104500", q.Get("vnp_ExpireDate"))
	assert.Equal(t, "Deposit for accommodation 1001", q.Get("vnp_OrderInfo"))

	fields := map[string]string{}
	for k := range q {
		fields[k] = q.Get(k)
	}
	assert.True(t, signature.VerifyVNPay(fields, q.Get(signature.VNPaySecureHashKey), "VNPAYSECRET"))
}

func vnpayCallbackQuery(responseCode, amount string) url.Values {
	fields := map[string]string{
		"vnp_TmnCode":           "DEMO0001",
		"vnp_Amount":            amount,
		"vnp_TxnRef":            "1790012345678901234",
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
	q.Set(signature.VNPaySecureHashKey, signature.SignVNPay(fields, "VNPAYSECRET"))
	q.Set(signature.VNPaySecureHashTypeKey, "HmacSHA512")
	return q
}

func TestVNPay_ParseCallback(t *testing.T) {
	a := newTestVNPay()

	t.Run("success", func(t *testing.T) {
		res, err := a.ParseCallback(CallbackPayload{Query: vnpayCallbackQuery("00", "50000000")})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "1790012345678901234", res.TransactionID)
		assert.True(t, res.Amount.Equal(decimal.NewFromInt(500000)))
		assert.Equal(t, "14123456", res.Reference)
	})

	t.Run("failure code", func(t *testing.T) {
		res, err := a.ParseCallback(CallbackPayload{Query: vnpayCallbackQuery("24", "50000000")})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.FailureReason, "24")
	})

	t.Run("tampered amount", func(t *testing.T) {
		q := vnpayCallbackQuery("00", "50000000")
		q.Set("vnp_Amount", "100")
		_, err := a.ParseCallback(CallbackPayload{Query: q})
		assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := a.ParseCallback(CallbackPayload{Query: url.Values{}})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeMalformedCallback))
	})
}

func TestVNPay_Ack(t *testing.T) {
	a := newTestVNPay()

	cases := []struct {
		err  error
		code string
	}{
		{nil, "00"},
		{apperrors.ErrInvalidSignature, "97"},
		{apperrors.ErrUnknownTransaction, "01"},
		{apperrors.ErrInvalidPaymentAmount, "04"},
		{errors.New("db down"), "99"},
	}
	for _, c := range cases {
		status, body := a.Ack(c.err)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, c.code, body.(vnpayAck).RspCode)
	}
}

// ---------- MoMo ----------

const (
	momoAccessKey = "F8BBA842ECF85"
	momoSecretKey = "K951B6PE1waDMi640xX08PD3vg6EkVlz"
)

func newTestMoMo(endpoint string, timeout time.Duration) *MoMoAdapter {
	return NewMoMoAdapter(config.MoMoConfig{
		PartnerCode: "MOMO",
		AccessKey:   momoAccessKey,
		SecretKey:   momoSecretKey,
		Endpoint:    endpoint,
	}, "https://rentora.example/return", "https://rentora.example/api/v1/payments/callback/momo", timeout)
}

func TestMoMo_BuildRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, momoCreatePath, r.URL.Path)

		var req momoCreateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(500000), req.Amount)
		assert.Equal(t, "captureWallet", req.RequestType)

		expected := signature.SignMoMo(signature.MoMoCreateFields{
			AccessKey:   momoAccessKey,
			Amount:      strconv.FormatInt(req.Amount, 10),
			ExtraData:   req.ExtraData,
			IpnURL:      req.IpnURL,
			OrderID:     req.OrderID,
			OrderInfo:   req.OrderInfo,
			PartnerCode: req.PartnerCode,
			RedirectURL: req.RedirectURL,
			RequestID:   req.RequestID,
			RequestType: req.RequestType,
		}, momoSecretKey)
		assert.Equal(t, expected, req.Signature)

		_ = json.NewEncoder(w).Encode(momoCreateResponse{
			OrderID:    req.OrderID,
			ResultCode: 0,
			PayURL:     "https://test-payment.momo.vn/pay/" + req.OrderID,
		})
	}))
	defer srv.Close()

	initiation, err := newTestMoMo(srv.URL, time.Second).BuildRequest(context.Background(), InitRequest{
		Payment:  testPayment(),
		Sequence: 77,
		Now:      fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, "77", initiation.TransactionID)
	assert.Equal(t, "https://test-payment.momo.vn/pay/77", initiation.RedirectURL)
	assert.NotEmpty(t, initiation.Request)
}

func TestMoMo_BuildRequest_GatewayUnavailable(t *testing.T) {
	t.Run("non-success resultCode", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(momoCreateResponse{ResultCode: 1001, Message: "insufficient"})
		}))
		defer srv.Close()

		_, err := newTestMoMo(srv.URL, time.Second).BuildRequest(context.Background(), InitRequest{Payment: testPayment(), Sequence: 1, Now: fixedNow})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeGatewayUnavailable))
	})

	t.Run("http 500", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newTestMoMo(srv.URL, time.Second).BuildRequest(context.Background(), InitRequest{Payment: testPayment(), Sequence: 2, Now: fixedNow})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeGatewayUnavailable))
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		defer srv.Close()

		_, err := newTestMoMo(srv.URL, 50*time.Millisecond).BuildRequest(context.Background(), InitRequest{Payment: testPayment(), Sequence: 3, Now: fixedNow})
		assert.True(t, apperrors.HasCode(err, apperrors.CodeGatewayUnavailable))
	})
}

func signedMoMoIPN(resultCode int, amount int64) momoIPN {
	ipn := momoIPN{
		PartnerCode:  "MOMO",
		OrderID:      "77",
		RequestID:    "req-77",
		Amount:       amount,
		OrderInfo:    "Deposit for accommodation 1001",
		OrderType:    "momo_wallet",
		TransID:      4088878653,
		ResultCode:   resultCode,
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: 1760500000000,
	}
	ipn.Signature = signature.SignMoMo(signature.MoMoIPNFields{
		AccessKey:    momoAccessKey,
		Amount:       strconv.FormatInt(ipn.Amount, 10),
		ExtraData:    ipn.ExtraData,
		Message:      ipn.Message,
		OrderID:      ipn.OrderID,
		OrderInfo:    ipn.OrderInfo,
		OrderType:    ipn.OrderType,
		PartnerCode:  ipn.PartnerCode,
		PayType:      ipn.PayType,
		RequestID:    ipn.RequestID,
		ResponseTime: strconv.FormatInt(ipn.ResponseTime, 10),
		ResultCode:   strconv.Itoa(ipn.ResultCode),
		TransID:      strconv.FormatInt(ipn.TransID, 10),
	}, momoSecretKey)
	return ipn
}

func TestMoMo_ParseCallback(t *testing.T) {
	a := newTestMoMo("http://unused", time.Second)

	body, _ := json.Marshal(signedMoMoIPN(0, 500000))
	res, err := a.ParseCallback(CallbackPayload{Body: body})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "77", res.TransactionID)
	assert.Equal(t, "4088878653", res.Reference)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(500000)))

	failed, _ := json.Marshal(signedMoMoIPN(1006, 500000))
	res, err = a.ParseCallback(CallbackPayload{Body: failed})
	require.NoError(t, err)
	assert.False(t, res.Success)

	tampered := signedMoMoIPN(0, 500000)
	tampered.Amount = 1
	body, _ = json.Marshal(tampered)
	_, err = a.ParseCallback(CallbackPayload{Body: body})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)

	_, err = a.ParseCallback(CallbackPayload{Body: []byte("{not json")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMalformedCallback))
}

func TestMoMo_Ack(t *testing.T) {
	a := newTestMoMo("http://unused", time.Second)

	status, _ := a.Ack(nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = a.Ack(apperrors.ErrInvalidSignature)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = a.Ack(apperrors.ErrUnknownTransaction)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = a.Ack(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
}

// ---------- ZaloPay ----------

const (
	zaloKey1 = "PcY4iZIKFCIdgZvA6ueMcMHHUbRLYjPL"
	zaloKey2 = "kLtgPl8HHhfvMuDHPwKfgfsY4Ydm9eIz"
)

func newTestZaloPay(endpoint string) *ZaloPayAdapter {
	return NewZaloPayAdapter(config.ZaloPayConfig{
		AppID:    "2553",
		Key1:     zaloKey1,
		Key2:     zaloKey2,
		Endpoint: endpoint,
	}, "https://rentora.example/return", "https://rentora.example/api/v1/payments/callback/zalopay", time.Second)
}

func TestZaloPay_BuildRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, zalopayCreatePath, r.URL.Path)

		var req zalopayCreateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "261015_99", req.AppTransID)

		ok := signature.VerifyZaloPayOrder(signature.ZaloPayOrderFields{
			AppID:      req.AppID,
			AppTransID: req.AppTransID,
			AppUser:    req.AppUser,
			Amount:     strconv.FormatInt(req.Amount, 10),
			AppTime:    strconv.FormatInt(req.AppTime, 10),
			EmbedData:  req.EmbedData,
			Item:       req.Item,
		}, req.Mac, zaloKey1)
		assert.True(t, ok, "MAC заказа считается на key1")

		_ = json.NewEncoder(w).Encode(zalopayCreateResponse{ReturnCode: 1, OrderURL: "https://sbgateway.zalopay.vn/openinapp?order=abc"})
	}))
	defer srv.Close()

	initiation, err := newTestZaloPay(srv.URL).BuildRequest(context.Background(), InitRequest{
		Payment:  testPayment(),
		Sequence: 99,
		Now:      fixedNow,
	})
	require.NoError(t, err)
	assert.Equal(t, "261015_99", initiation.TransactionID)
	assert.Equal(t, "https://sbgateway.zalopay.vn/openinapp?order=abc", initiation.RedirectURL)
}

func TestZaloPay_BuildRequest_ReturnCodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(zalopayCreateResponse{ReturnCode: 2, SubReturnCode: -68, ReturnMessage: "duplicate app_trans_id"})
	}))
	defer srv.Close()

	_, err := newTestZaloPay(srv.URL).BuildRequest(context.Background(), InitRequest{Payment: testPayment(), Sequence: 1, Now: fixedNow})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGatewayUnavailable))
}

func zaloCallbackBody(t *testing.T, key string, amount int64) []byte {
	data, err := json.Marshal(zalopayCallbackData{
		AppID:      2553,
		AppTransID: "261015_99",
		AppTime:    fixedNow.UnixMilli(),
		AppUser:    "9b2f7c1e-3d4a-4f6b-8c2d-1a2b3c4d5e6f",
		Amount:     amount,
		ZpTransID:  240000123,
		ServerTime: fixedNow.UnixMilli(),
	})
	require.NoError(t, err)

	body, err := json.Marshal(zalopayCallback{
		Data: string(data),
		Mac:  signature.SignZaloPayCallback(string(data), key),
		Type: 1,
	})
	require.NoError(t, err)
	return body
}

func TestZaloPay_ParseCallback(t *testing.T) {
	a := newTestZaloPay("http://unused")

	res, err := a.ParseCallback(CallbackPayload{Body: zaloCallbackBody(t, zaloKey2, 500000)})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "261015_99", res.TransactionID)
	assert.Equal(t, "240000123", res.Reference)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(500000)))

	_, err = a.ParseCallback(CallbackPayload{Body: zaloCallbackBody(t, zaloKey1, 500000)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature, "колбэк, подписанный key1, отклоняется")
}

func TestZaloPay_Ack(t *testing.T) {
	a := newTestZaloPay("http://unused")

	cases := []struct {
		err  error
		code int
	}{
		{nil, 1},
		{apperrors.ErrInvalidSignature, -1},
		{apperrors.ErrUnknownTransaction, 2},
		{errors.New("db down"), 0},
	}
	for _, c := range cases {
		status, body := a.Ack(c.err)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, c.code, body.(zalopayAck).ReturnCode)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(newTestVNPay(), newTestZaloPay("http://unused"))

	a, err := r.Get(models.PaymentMethodVNPay)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodVNPay, a.Name())

	_, err = r.Get(models.PaymentMethodMoMo)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedGateway)
	assert.True(t, r.Has("zalopay"))
	assert.False(t, r.Has("paypal"))
}

func TestSequence_Unique(t *testing.T) {
	seq, err := NewSequence(1)
	require.NoError(t, err)

	seen := make(map[int64]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		n := seq.Next()
		_, dup := seen[n]
		require.False(t, dup)
		seen[n] = struct{}{}
	}

	_, err = NewSequence(5000)
	assert.Error(t, err)
}
