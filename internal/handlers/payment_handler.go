package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rentora_backend/internal/auth"
	"rentora_backend/internal/middleware"
	"rentora_backend/internal/services"
	"rentora_backend/internal/services/dto"
)

type PaymentHandler struct {
	*BaseHandler
	paymentService services.PaymentService
	invoiceService services.InvoiceService
}

func NewPaymentHandler(base *BaseHandler, paymentService services.PaymentService, invoiceService services.InvoiceService) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler:    base,
		paymentService: paymentService,
		invoiceService: invoiceService,
	}
}

func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	payments.Use(h.RequireAuth())
	{
		payments.POST("", middleware.RequirePermission(auth.PermissionPaymentsCreate), h.CreatePayment)
		payments.GET("/my", middleware.RequirePermission(auth.PermissionPaymentsRead), h.GetMyPayments)
		payments.GET("/:paymentId", middleware.RequirePermission(auth.PermissionPaymentsRead), h.GetPayment)
		payments.POST("/:paymentId/retry", middleware.RequirePermission(auth.PermissionPaymentsCreate), h.RetryPayment)
		payments.GET("/:paymentId/invoice", middleware.RequirePermission(auth.PermissionPaymentsRead), h.GetInvoice)
	}
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreatePaymentRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.paymentService.CreatePayment(c.Request.Context(), h.GetDB(c), userID, c.ClientIP(), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *PaymentHandler) RetryPayment(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	paymentID, err := ParseParamID(c, "paymentId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	resp, err := h.paymentService.RetryPayment(c.Request.Context(), h.GetDB(c), userID, c.ClientIP(), paymentID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) GetPayment(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	paymentID, err := ParseParamID(c, "paymentId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), h.GetDB(c), userID, paymentID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) GetMyPayments(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	page, pageSize := ParsePagination(c)

	list, err := h.paymentService.ListPayerPayments(c.Request.Context(), h.GetDB(c), userID, page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func (h *PaymentHandler) GetInvoice(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	paymentID, err := ParseParamID(c, "paymentId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), h.GetDB(c), userID, paymentID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}
