package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rentora_backend/internal/services"
)

type InvoiceHandler struct {
	*BaseHandler
	invoiceService services.InvoiceService
}

func NewInvoiceHandler(base *BaseHandler, invoiceService services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		BaseHandler:    base,
		invoiceService: invoiceService,
	}
}

func (h *InvoiceHandler) RegisterRoutes(r *gin.RouterGroup) {
	invoices := r.Group("/invoices")
	invoices.Use(h.RequireAuth())
	{
		invoices.GET("/my", h.GetMyInvoices)
	}
}

func (h *InvoiceHandler) GetMyInvoices(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	page, pageSize := ParsePagination(c)

	list, err := h.invoiceService.ListInvoices(c.Request.Context(), h.GetDB(c), userID, page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}
