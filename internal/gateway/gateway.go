// Package gateway - адаптеры внешних платёжных шлюзов.
//
// Каждый адаптер умеет собрать запрос на оплату (редирект или
// server-to-server вызов), разобрать и проверить колбэк, и сформировать
// ответ подтверждения в формате своего шлюза. Сервисы работают только
// с интерфейсом Adapter.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"rentora_backend/internal/models"
	"rentora_backend/pkg/apperrors"
)

// InitRequest - всё, что нужно адаптеру для инициации оплаты.
type InitRequest struct {
	Payment *models.Payment
	// Sequence - уникальное число для этой попытки (snowflake)
	Sequence int64
	ClientIP string
	Now      time.Time
}

// Initiation - результат инициации: выданный идентификатор транзакции
// и куда отправить плательщика.
type Initiation struct {
	TransactionID string
	RedirectURL   string
	// Исходящий запрос (и ответ шлюза, если был вызов) для аудита
	Request json.RawMessage
}

// CallbackPayload - сырые данные входящего колбэка.
type CallbackPayload struct {
	Query url.Values
	Body  []byte
}

// CallbackResult - проверенный и нормализованный колбэк.
type CallbackResult struct {
	TransactionID string
	Success       bool
	Amount        decimal.Decimal
	Reference     string
	FailureReason string
	Raw           json.RawMessage
}

// Adapter - единый контракт для всех шлюзов.
type Adapter interface {
	Name() models.PaymentMethod
	BuildRequest(ctx context.Context, req InitRequest) (*Initiation, error)
	// ParseCallback разбирает колбэк и проверяет подпись.
	// Неверная подпись - apperrors.ErrInvalidSignature, мусор на входе - MalformedCallback.
	ParseCallback(payload CallbackPayload) (*CallbackResult, error)
	// Ack возвращает HTTP статус и тело ответа шлюзу по итогу обработки.
	Ack(err error) (int, any)
}

// Registry - адаптеры по методу оплаты.
type Registry struct {
	adapters map[models.PaymentMethod]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.PaymentMethod]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

func (r *Registry) Get(method models.PaymentMethod) (Adapter, error) {
	a, ok := r.adapters[method]
	if !ok {
		return nil, apperrors.ErrUnsupportedGateway.WithDetails(map[string]string{"method": string(method)})
	}
	return a, nil
}

// Has используется валидатором запросов.
func (r *Registry) Has(method string) bool {
	_, ok := r.adapters[models.PaymentMethod(method)]
	return ok
}

func newHTTPClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

// orderDescription - человекочитаемое описание заказа для шлюза.
func orderDescription(p *models.Payment) string {
	switch p.Kind {
	case models.PaymentKindRent:
		return fmt.Sprintf("Rent for %s %s", p.SubjectType, p.SubjectID)
	default:
		return fmt.Sprintf("Deposit for %s %s", p.SubjectType, p.SubjectID)
	}
}

// wholeAmount - сумма в минимальных целых единицах VND.
func wholeAmount(amount decimal.Decimal) int64 {
	return amount.Round(0).IntPart()
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
