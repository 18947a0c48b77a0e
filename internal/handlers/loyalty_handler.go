package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rentora_backend/internal/auth"
	"rentora_backend/internal/middleware"
	"rentora_backend/internal/services"
	"rentora_backend/internal/services/dto"
)

type LoyaltyHandler struct {
	*BaseHandler
	loyaltyService services.LoyaltyService
}

func NewLoyaltyHandler(base *BaseHandler, loyaltyService services.LoyaltyService) *LoyaltyHandler {
	return &LoyaltyHandler{
		BaseHandler:    base,
		loyaltyService: loyaltyService,
	}
}

func (h *LoyaltyHandler) RegisterRoutes(r *gin.RouterGroup) {
	loyalty := r.Group("/loyalty")
	loyalty.Use(h.RequireAuth())
	{
		loyalty.GET("/balance", h.GetBalance)
		loyalty.GET("/history", h.GetHistory)
		loyalty.POST("/redeem", middleware.RequirePermission(auth.PermissionLoyaltyRedeem), h.Redeem)
	}
}

func (h *LoyaltyHandler) GetBalance(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	balance, err := h.loyaltyService.GetBalance(c.Request.Context(), h.GetDB(c), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

func (h *LoyaltyHandler) GetHistory(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}
	page, pageSize := ParsePagination(c)

	history, err := h.loyaltyService.GetLedgerHistory(c.Request.Context(), h.GetDB(c), userID, page, pageSize)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

func (h *LoyaltyHandler) Redeem(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.RedeemPointsRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	resp, err := h.loyaltyService.RedeemPoints(c.Request.Context(), h.GetDB(c), userID, req.Points)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
