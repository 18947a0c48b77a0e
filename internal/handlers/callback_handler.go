package handlers

import (
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"rentora_backend/internal/gateway"
	"rentora_backend/internal/middleware"
	"rentora_backend/internal/models"
	"rentora_backend/internal/services"
	"rentora_backend/pkg/apperrors"
)

const maxCallbackBody = 64 << 10

// CallbackHandler принимает серверные уведомления шлюзов. Маршруты
// публичные: подлинность подтверждается только подписью.
type CallbackHandler struct {
	*BaseHandler
	callbackService services.CallbackService
	limiter         *middleware.IPRateLimiter
}

func NewCallbackHandler(base *BaseHandler, callbackService services.CallbackService, limiter *middleware.IPRateLimiter) *CallbackHandler {
	return &CallbackHandler{
		BaseHandler:     base,
		callbackService: callbackService,
		limiter:         limiter,
	}
}

func (h *CallbackHandler) RegisterRoutes(r *gin.RouterGroup) {
	callbacks := r.Group("/payments/callback")
	if h.limiter != nil {
		callbacks.Use(h.limiter.Middleware())
	}
	{
		callbacks.GET("/vnpay", h.VNPay)
		callbacks.POST("/vnpay", h.VNPay)
		callbacks.POST("/momo", h.MoMo)
		callbacks.POST("/zalopay", h.ZaloPay)
	}
}

// VNPay шлёт IPN query-строкой, иногда формой.
func (h *CallbackHandler) VNPay(c *gin.Context) {
	query := url.Values{}
	for k, v := range c.Request.URL.Query() {
		query[k] = v
	}
	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err == nil {
			for k, v := range c.Request.PostForm {
				query[k] = v
			}
		}
	}
	h.handle(c, models.PaymentMethodVNPay, gateway.CallbackPayload{Query: query})
}

func (h *CallbackHandler) MoMo(c *gin.Context) {
	h.handleBody(c, models.PaymentMethodMoMo)
}

func (h *CallbackHandler) ZaloPay(c *gin.Context) {
	h.handleBody(c, models.PaymentMethodZaloPay)
}

func (h *CallbackHandler) handleBody(c *gin.Context, method models.PaymentMethod) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		h.respond(c, method, apperrors.MalformedCallback(err))
		return
	}
	h.handle(c, method, gateway.CallbackPayload{Body: body})
}

func (h *CallbackHandler) handle(c *gin.Context, method models.PaymentMethod, payload gateway.CallbackPayload) {
	_, err := h.callbackService.HandleCallback(c.Request.Context(), h.GetDB(c), method, payload)
	h.respond(c, method, err)
}

// respond отвечает в формате, которого ждёт конкретный шлюз.
func (h *CallbackHandler) respond(c *gin.Context, method models.PaymentMethod, err error) {
	status, body := h.callbackService.Ack(method, err)
	if body == nil {
		c.Status(status)
		return
	}
	c.JSON(status, body)
}
