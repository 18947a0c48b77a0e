package dto

import (
	"github.com/shopspring/decimal"

	"rentora_backend/internal/models"
)

type RedeemPointsRequest struct {
	Points int64 `json:"points" validate:"required,gt=0"`
}

type RedeemPointsResponse struct {
	PointsRedeemed int64           `json:"points_redeemed"`
	Discount       decimal.Decimal `json:"discount"`
	Balance        int64           `json:"balance"`
}

type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

type LedgerHistoryResponse struct {
	Entries  []models.LoyaltyLedgerEntry `json:"entries"`
	Total    int64                       `json:"total"`
	Page     int                         `json:"page"`
	PageSize int                         `json:"page_size"`
}

// BalanceVerification - сверка кэшированного баланса с суммой леджера.
type BalanceVerification struct {
	UserID        string `json:"user_id"`
	CachedBalance int64  `json:"cached_balance"`
	LedgerSum     int64  `json:"ledger_sum"`
	Consistent    bool   `json:"consistent"`
}
