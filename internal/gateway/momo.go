package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rentora_backend/internal/config"
	"rentora_backend/internal/logger"
	"rentora_backend/internal/models"
	"rentora_backend/internal/signature"
	"rentora_backend/pkg/apperrors"
)

const (
	momoCreatePath    = "/v2/gateway/api/create"
	momoRequestType   = "captureWallet"
	momoResultSuccess = 0
)

type momoCreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IpnURL      string `json:"ipnUrl"`
	RequestType string `json:"requestType"`
	ExtraData   string `json:"extraData"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type momoCreateResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	ResponseTime int64  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   int    `json:"resultCode"`
	PayURL       string `json:"payUrl"`
}

type momoIPN struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

// MoMoAdapter - server-to-server создание заказа, затем редирект на payUrl.
type MoMoAdapter struct {
	cfg    config.MoMoConfig
	client *resty.Client

	redirectURL string
	ipnURL      string
}

func NewMoMoAdapter(cfg config.MoMoConfig, redirectURL, ipnURL string, timeout time.Duration) *MoMoAdapter {
	return &MoMoAdapter{
		cfg:         cfg,
		client:      newHTTPClient(cfg.Endpoint, timeout),
		redirectURL: redirectURL,
		ipnURL:      ipnURL,
	}
}

func (a *MoMoAdapter) Name() models.PaymentMethod {
	return models.PaymentMethodMoMo
}

func (a *MoMoAdapter) BuildRequest(ctx context.Context, req InitRequest) (*Initiation, error) {
	p := req.Payment
	orderID := strconv.FormatInt(req.Sequence, 10)
	amount := wholeAmount(p.Amount)

	body := momoCreateRequest{
		PartnerCode: a.cfg.PartnerCode,
		RequestID:   uuid.New().String(),
		Amount:      amount,
		OrderID:     orderID,
		OrderInfo:   orderDescription(p),
		RedirectURL: a.redirectURL,
		IpnURL:      a.ipnURL,
		RequestType: momoRequestType,
		ExtraData:   "",
		Lang:        "vi",
	}
	body.Signature = signature.SignMoMo(signature.MoMoCreateFields{
		AccessKey:   a.cfg.AccessKey,
		Amount:      strconv.FormatInt(amount, 10),
		ExtraData:   body.ExtraData,
		IpnURL:      body.IpnURL,
		OrderID:     body.OrderID,
		OrderInfo:   body.OrderInfo,
		PartnerCode: body.PartnerCode,
		RedirectURL: body.RedirectURL,
		RequestID:   body.RequestID,
		RequestType: body.RequestType,
	}, a.cfg.SecretKey)

	var out momoCreateResponse
	started := time.Now()
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(momoCreatePath)
	if err == nil && resp.IsError() {
		err = fmt.Errorf("momo create: http %d", resp.StatusCode())
	}
	if err == nil {
		err = json.Unmarshal(resp.Body(), &out)
	}
	if err == nil && (out.ResultCode != momoResultSuccess || out.PayURL == "") {
		err = fmt.Errorf("momo create: resultCode %d: %s", out.ResultCode, out.Message)
	}
	logger.GatewayLog(string(a.Name()), "create", time.Since(started), err)
	if err != nil {
		return nil, apperrors.GatewayUnavailable(err, string(a.Name()))
	}

	return &Initiation{
		TransactionID: orderID,
		RedirectURL:   out.PayURL,
		Request:       mustJSON(map[string]any{"request": body, "response": out}),
	}, nil
}

func (a *MoMoAdapter) ParseCallback(payload CallbackPayload) (*CallbackResult, error) {
	var ipn momoIPN
	if err := json.Unmarshal(payload.Body, &ipn); err != nil {
		return nil, apperrors.MalformedCallback(err)
	}

	fields := signature.MoMoIPNFields{
		AccessKey:    a.cfg.AccessKey,
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
	}
	if !signature.VerifyMoMo(fields, ipn.Signature, a.cfg.SecretKey) {
		return nil, apperrors.ErrInvalidSignature
	}
	if ipn.OrderID == "" {
		return nil, apperrors.MalformedCallback(errors.New("orderId is missing"))
	}

	result := &CallbackResult{
		TransactionID: ipn.OrderID,
		Amount:        decimal.NewFromInt(ipn.Amount),
		Reference:     strconv.FormatInt(ipn.TransID, 10),
		Raw:           json.RawMessage(payload.Body),
	}
	if ipn.ResultCode == momoResultSuccess {
		result.Success = true
	} else {
		result.FailureReason = fmt.Sprintf("momo resultCode %d: %s", ipn.ResultCode, ipn.Message)
	}

	return result, nil
}

// Ack: MoMo ждёт 204 без тела, любой не-2xx считается отказом.
func (a *MoMoAdapter) Ack(err error) (int, any) {
	switch {
	case err == nil:
		return http.StatusNoContent, nil
	case apperrors.HasCode(err, apperrors.CodeUnknownTransaction):
		return http.StatusNotFound, errorBody(err)
	case apperrors.HasCode(err, apperrors.CodeInvalidSignature),
		apperrors.HasCode(err, apperrors.CodeMalformedCallback),
		apperrors.HasCode(err, apperrors.CodeInvalidPaymentAmount):
		return http.StatusBadRequest, errorBody(err)
	default:
		return http.StatusInternalServerError, map[string]string{"message": "internal error"}
	}
}

func errorBody(err error) map[string]string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return map[string]string{"code": string(appErr.Code), "message": appErr.Message}
	}
	return map[string]string{"message": err.Error()}
}
