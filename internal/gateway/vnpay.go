package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rentora_backend/internal/config"
	"rentora_backend/internal/models"
	"rentora_backend/internal/signature"
	"rentora_backend/pkg/apperrors"
)

const (
	vnpayVersion    = "2.1.0"
	vnpayDateLayout = "20060102150405"
	vnpaySuccess    = "00"
)

// VNPay всегда работает в GMT+7, независимо от часового пояса сервера.
var vnpayZone = time.FixedZone("GMT+7", 7*60*60)

type vnpayAck struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// VNPayAdapter - шлюз с чистым редиректом: никаких исходящих вызовов,
// плательщик уходит по подписанной ссылке.
type VNPayAdapter struct {
	cfg       config.VNPayConfig
	returnURL string
}

func NewVNPayAdapter(cfg config.VNPayConfig, returnURL string) *VNPayAdapter {
	return &VNPayAdapter{cfg: cfg, returnURL: returnURL}
}

func (a *VNPayAdapter) Name() models.PaymentMethod {
	return models.PaymentMethodVNPay
}

func (a *VNPayAdapter) BuildRequest(_ context.Context, req InitRequest) (*Initiation, error) {
	p := req.Payment
	txnID := strconv.FormatInt(req.Sequence, 10)
	now := req.Now.In(vnpayZone)

	ip := req.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}

	fields := map[string]string{
		"vnp_Version":    vnpayVersion,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    a.cfg.TmnCode,
		"vnp_Amount":     strconv.FormatInt(wholeAmount(p.Amount)*100, 10),
		"vnp_CurrCode":   p.Currency,
		"vnp_TxnRef":     txnID,
		"vnp_OrderInfo":  orderDescription(p),
		"vnp_OrderType":  "other",
		"vnp_Locale":     "vn",
		"vnp_ReturnUrl":  a.returnURL,
		"vnp_IpAddr":     ip,
		"vnp_CreateDate": now.Format(vnpayDateLayout),
		"vnp_ExpireDate": now.Add(time.Duration(a.cfg.ExpireMinutes) * time.Minute).Format(vnpayDateLayout),
	}

	return &Initiation{
		TransactionID: txnID,
		RedirectURL:   a.cfg.PayURL + "?" + signature.VNPayQuery(fields, a.cfg.HashSecret),
		Request:       mustJSON(fields),
	}, nil
}

func (a *VNPayAdapter) ParseCallback(payload CallbackPayload) (*CallbackResult, error) {
	fields := make(map[string]string)
	for key, values := range payload.Query {
		if !strings.HasPrefix(key, "vnp_") || len(values) == 0 || values[0] == "" {
			continue
		}
		fields[key] = values[0]
	}
	if len(fields) == 0 {
		return nil, apperrors.MalformedCallback(errors.New("no vnp_ parameters in callback"))
	}

	secureHash := fields[signature.VNPaySecureHashKey]
	if !signature.VerifyVNPay(fields, secureHash, a.cfg.HashSecret) {
		return nil, apperrors.ErrInvalidSignature
	}

	txnRef := fields["vnp_TxnRef"]
	if txnRef == "" {
		return nil, apperrors.MalformedCallback(errors.New("vnp_TxnRef is missing"))
	}
	minor, err := strconv.ParseInt(fields["vnp_Amount"], 10, 64)
	if err != nil {
		return nil, apperrors.MalformedCallback(err)
	}

	result := &CallbackResult{
		TransactionID: txnRef,
		Amount:        decimal.New(minor, -2),
		Reference:     fields["vnp_TransactionNo"],
		Raw:           mustJSON(fields),
	}

	responseCode := fields["vnp_ResponseCode"]
	transactionStatus := fields["vnp_TransactionStatus"]
	if responseCode == vnpaySuccess && transactionStatus == vnpaySuccess {
		result.Success = true
	} else {
		result.FailureReason = "vnpay response " + responseCode + "/" + transactionStatus
	}

	return result, nil
}

func (a *VNPayAdapter) Ack(err error) (int, any) {
	switch {
	case err == nil:
		return http.StatusOK, vnpayAck{RspCode: "00", Message: "Confirm Success"}
	case apperrors.HasCode(err, apperrors.CodeInvalidSignature):
		return http.StatusOK, vnpayAck{RspCode: "97", Message: "Invalid Checksum"}
	case apperrors.HasCode(err, apperrors.CodeUnknownTransaction):
		return http.StatusOK, vnpayAck{RspCode: "01", Message: "Order not found"}
	case apperrors.HasCode(err, apperrors.CodeInvalidPaymentAmount):
		return http.StatusOK, vnpayAck{RspCode: "04", Message: "Invalid amount"}
	default:
		return http.StatusOK, vnpayAck{RspCode: "99", Message: "Unknown error"}
	}
}
