package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rentora_backend/internal/auth"
	"rentora_backend/internal/middleware"
	"rentora_backend/internal/services"
)

// AdminHandler - ручная сверка расчётов и балансов.
type AdminHandler struct {
	*BaseHandler
	settlementService services.SettlementService
	loyaltyService    services.LoyaltyService
	batchSize         int
}

func NewAdminHandler(base *BaseHandler, settlementService services.SettlementService, loyaltyService services.LoyaltyService, batchSize int) *AdminHandler {
	return &AdminHandler{
		BaseHandler:       base,
		settlementService: settlementService,
		loyaltyService:    loyaltyService,
		batchSize:         batchSize,
	}
}

func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin")
	admin.Use(h.RequireAuth(), middleware.RequirePermission(auth.PermissionSettlementAdmin))
	{
		admin.POST("/payments/:paymentId/reconcile", h.ReconcilePayment)
		admin.POST("/settlements/reconcile", h.ReconcileMissing)
		admin.GET("/loyalty/:userId/verify", h.VerifyBalance)
	}
}

func (h *AdminHandler) ReconcilePayment(c *gin.Context) {
	paymentID, err := ParseParamID(c, "paymentId")
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	result, err := h.settlementService.Reconcile(c.Request.Context(), h.GetDB(c), paymentID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AdminHandler) ReconcileMissing(c *gin.Context) {
	limit := ParseQueryInt(c, "limit", h.batchSize)
	if limit <= 0 || limit > 500 {
		limit = h.batchSize
	}

	repaired, err := h.settlementService.ReconcileMissing(c.Request.Context(), h.GetDB(c), limit)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"repaired": repaired})
}

func (h *AdminHandler) VerifyBalance(c *gin.Context) {
	result, err := h.loyaltyService.VerifyBalance(c.Request.Context(), h.GetDB(c), c.Param("userId"))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
