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
	"github.com/shopspring/decimal"

	"rentora_backend/internal/config"
	"rentora_backend/internal/logger"
	"rentora_backend/internal/models"
	"rentora_backend/internal/signature"
	"rentora_backend/pkg/apperrors"
)

const (
	zalopayCreatePath    = "/v2/create"
	zalopayReturnSuccess = 1
)

type zalopayCreateRequest struct {
	AppID       string `json:"app_id"`
	AppUser     string `json:"app_user"`
	AppTransID  string `json:"app_trans_id"`
	AppTime     int64  `json:"app_time"`
	Amount      int64  `json:"amount"`
	Item        string `json:"item"`
	EmbedData   string `json:"embed_data"`
	Description string `json:"description"`
	CallbackURL string `json:"callback_url"`
	Mac         string `json:"mac"`
}

type zalopayCreateResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
	SubReturnCode int    `json:"sub_return_code"`
	OrderURL      string `json:"order_url"`
	ZpTransToken  string `json:"zp_trans_token"`
}

type zalopayCallback struct {
	Data string `json:"data"`
	Mac  string `json:"mac"`
	Type int    `json:"type"`
}

type zalopayCallbackData struct {
	AppID      int64  `json:"app_id"`
	AppTransID string `json:"app_trans_id"`
	AppTime    int64  `json:"app_time"`
	AppUser    string `json:"app_user"`
	Amount     int64  `json:"amount"`
	ZpTransID  int64  `json:"zp_trans_id"`
	ServerTime int64  `json:"server_time"`
}

type zalopayAck struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

// ZaloPayAdapter - server-to-server создание заказа, MAC исходящего
// запроса на key1, MAC колбэка на key2.
type ZaloPayAdapter struct {
	cfg    config.ZaloPayConfig
	client *resty.Client

	redirectURL string
	callbackURL string
}

func NewZaloPayAdapter(cfg config.ZaloPayConfig, redirectURL, callbackURL string, timeout time.Duration) *ZaloPayAdapter {
	return &ZaloPayAdapter{
		cfg:         cfg,
		client:      newHTTPClient(cfg.Endpoint, timeout),
		redirectURL: redirectURL,
		callbackURL: callbackURL,
	}
}

func (a *ZaloPayAdapter) Name() models.PaymentMethod {
	return models.PaymentMethodZaloPay
}

// app_trans_id обязан начинаться с даты yymmdd по времени Вьетнама.
func zalopayTransID(now time.Time, seq int64) string {
	return now.In(vnpayZone).Format("060102") + "_" + strconv.FormatInt(seq, 10)
}

func (a *ZaloPayAdapter) BuildRequest(ctx context.Context, req InitRequest) (*Initiation, error) {
	p := req.Payment
	txnID := zalopayTransID(req.Now, req.Sequence)

	embed, _ := json.Marshal(map[string]string{"redirecturl": a.redirectURL})
	body := zalopayCreateRequest{
		AppID:       a.cfg.AppID,
		AppUser:     p.PayerID,
		AppTransID:  txnID,
		AppTime:     req.Now.UnixMilli(),
		Amount:      wholeAmount(p.Amount),
		Item:        "[]",
		EmbedData:   string(embed),
		Description: orderDescription(p),
		CallbackURL: a.callbackURL,
	}
	body.Mac = signature.SignZaloPayOrder(signature.ZaloPayOrderFields{
		AppID:      body.AppID,
		AppTransID: body.AppTransID,
		AppUser:    body.AppUser,
		Amount:     strconv.FormatInt(body.Amount, 10),
		AppTime:    strconv.FormatInt(body.AppTime, 10),
		EmbedData:  body.EmbedData,
		Item:       body.Item,
	}, a.cfg.Key1)

	var out zalopayCreateResponse
	started := time.Now()
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(zalopayCreatePath)
	if err == nil && resp.IsError() {
		err = fmt.Errorf("zalopay create: http %d", resp.StatusCode())
	}
	if err == nil {
		err = json.Unmarshal(resp.Body(), &out)
	}
	if err == nil && (out.ReturnCode != zalopayReturnSuccess || out.OrderURL == "") {
		err = fmt.Errorf("zalopay create: return_code %d/%d: %s", out.ReturnCode, out.SubReturnCode, out.ReturnMessage)
	}
	logger.GatewayLog(string(a.Name()), "create", time.Since(started), err)
	if err != nil {
		return nil, apperrors.GatewayUnavailable(err, string(a.Name()))
	}

	return &Initiation{
		TransactionID: txnID,
		RedirectURL:   out.OrderURL,
		Request:       mustJSON(map[string]any{"request": body, "response": out}),
	}, nil
}

// ParseCallback: ZaloPay шлёт колбэк только об успешной оплате.
func (a *ZaloPayAdapter) ParseCallback(payload CallbackPayload) (*CallbackResult, error) {
	var cb zalopayCallback
	if err := json.Unmarshal(payload.Body, &cb); err != nil {
		return nil, apperrors.MalformedCallback(err)
	}
	if !signature.VerifyZaloPayCallback(cb.Data, cb.Mac, a.cfg.Key2) {
		return nil, apperrors.ErrInvalidSignature
	}

	var data zalopayCallbackData
	if err := json.Unmarshal([]byte(cb.Data), &data); err != nil {
		return nil, apperrors.MalformedCallback(err)
	}
	if data.AppTransID == "" {
		return nil, apperrors.MalformedCallback(errors.New("app_trans_id is missing"))
	}

	return &CallbackResult{
		TransactionID: data.AppTransID,
		Success:       true,
		Amount:        decimal.NewFromInt(data.Amount),
		Reference:     strconv.FormatInt(data.ZpTransID, 10),
		Raw:           json.RawMessage(cb.Data),
	}, nil
}

// Ack: 1 - принято (в том числе повтор), -1 - неверный MAC,
// 2 - заказ не найден или отклонён (повторять бессмысленно),
// 0 - наша внутренняя ошибка, ZaloPay пришлёт колбэк снова.
func (a *ZaloPayAdapter) Ack(err error) (int, any) {
	switch {
	case err == nil:
		return http.StatusOK, zalopayAck{ReturnCode: 1, ReturnMessage: "success"}
	case apperrors.HasCode(err, apperrors.CodeInvalidSignature):
		return http.StatusOK, zalopayAck{ReturnCode: -1, ReturnMessage: "mac not equal"}
	case apperrors.HasCode(err, apperrors.CodeUnknownTransaction),
		apperrors.HasCode(err, apperrors.CodeInvalidPaymentAmount),
		apperrors.HasCode(err, apperrors.CodeMalformedCallback):
		return http.StatusOK, zalopayAck{ReturnCode: 2, ReturnMessage: "order rejected"}
	default:
		return http.StatusOK, zalopayAck{ReturnCode: 0, ReturnMessage: "internal error"}
	}
}
