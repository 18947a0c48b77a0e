package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"rentora_backend/internal/config"
	"rentora_backend/internal/logger"
	"rentora_backend/internal/models"
	"rentora_backend/internal/repositories"
	"rentora_backend/internal/services/dto"
	"rentora_backend/pkg/apperrors"
)

type LoyaltyService interface {
	// Accrue начисляет баллы за completed платёж. Повторный вызов для того же
	// платежа возвращает уже существующую запись и ничего не меняет.
	Accrue(ctx context.Context, db *gorm.DB, payment *models.Payment) (*models.LoyaltyLedgerEntry, error)
	RedeemPoints(ctx context.Context, db *gorm.DB, userID string, points int64) (*dto.RedeemPointsResponse, error)

	GetBalance(ctx context.Context, db *gorm.DB, userID string) (*dto.BalanceResponse, error)
	GetLedgerHistory(ctx context.Context, db *gorm.DB, userID string, page, pageSize int) (*dto.LedgerHistoryResponse, error)
	VerifyBalance(ctx context.Context, db *gorm.DB, userID string) (*dto.BalanceVerification, error)

	PointsFor(amount decimal.Decimal) int64
	DiscountFor(points int64) decimal.Decimal
}

type loyaltyService struct {
	loyaltyRepo     repositories.LoyaltyRepository
	accrualRate     decimal.Decimal
	redemptionValue decimal.Decimal
}

func NewLoyaltyService(loyaltyRepo repositories.LoyaltyRepository, cfg config.LoyaltyConfig) LoyaltyService {
	return &loyaltyService{
		loyaltyRepo:     loyaltyRepo,
		accrualRate:     cfg.AccrualRate,
		redemptionValue: cfg.RedemptionValue,
	}
}

// PointsFor - floor(amount * accrual_rate)
func (s *loyaltyService) PointsFor(amount decimal.Decimal) int64 {
	return amount.Mul(s.accrualRate).Floor().IntPart()
}

func (s *loyaltyService) DiscountFor(points int64) decimal.Decimal {
	return decimal.NewFromInt(points).Mul(s.redemptionValue)
}

func (s *loyaltyService) Accrue(ctx context.Context, db *gorm.DB, payment *models.Payment) (*models.LoyaltyLedgerEntry, error) {
	if payment.Status != models.PaymentStatusCompleted {
		return nil, apperrors.ErrPaymentNotSettled
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	// Блокировка пользователя сериализует начисление и списание
	if _, err := s.loyaltyRepo.LockUser(tx, payment.PayerID); err != nil {
		return nil, handleLoyaltyError(err)
	}

	existing, err := s.loyaltyRepo.FindEarnEntryByPayment(tx, payment.ID)
	if err == nil {
		logger.CtxDebug(ctx, "points already accrued", "entry_id", existing.ID)
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrLedgerEntryNotFound) {
		return nil, apperrors.InternalError(err)
	}

	paymentID := payment.ID
	entry := &models.LoyaltyLedgerEntry{
		UserID:           payment.PayerID,
		Points:           s.PointsFor(payment.Amount),
		Type:             models.LedgerEntryEarn,
		Reason:           fmt.Sprintf("Earned for %s payment #%d", payment.Kind, payment.ID),
		RelatedPaymentID: &paymentID,
	}
	if err := s.loyaltyRepo.InsertEntry(tx, entry); err != nil {
		return nil, apperrors.InternalError(err)
	}
	if entry.Points != 0 {
		if err := s.loyaltyRepo.AdjustBalance(tx, payment.PayerID, entry.Points); err != nil {
			return nil, handleLoyaltyError(err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "loyalty points accrued", "points", entry.Points, "entry_id", entry.ID)
	return entry, nil
}

func (s *loyaltyService) RedeemPoints(ctx context.Context, db *gorm.DB, userID string, points int64) (*dto.RedeemPointsResponse, error) {
	if points <= 0 {
		return nil, apperrors.ErrInvalidPointsAmount
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	defer tx.Rollback()

	user, err := s.loyaltyRepo.LockUser(tx, userID)
	if err != nil {
		return nil, handleLoyaltyError(err)
	}

	if user.LoyaltyPointsBalance < points {
		return nil, apperrors.ErrInsufficientPoints.WithDetails(map[string]int64{
			"balance":   user.LoyaltyPointsBalance,
			"requested": points,
		})
	}

	entry := &models.LoyaltyLedgerEntry{
		UserID: userID,
		Points: -points,
		Type:   models.LedgerEntryRedeem,
		Reason: "Redeemed for booking discount",
	}
	if err := s.loyaltyRepo.InsertEntry(tx, entry); err != nil {
		return nil, apperrors.InternalError(err)
	}
	if err := s.loyaltyRepo.AdjustBalance(tx, userID, -points); err != nil {
		return nil, handleLoyaltyError(err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, apperrors.InternalError(err)
	}

	logger.CtxInfo(ctx, "loyalty points redeemed", "user_id", userID, "points", points, "entry_id", entry.ID)

	return &dto.RedeemPointsResponse{
		PointsRedeemed: points,
		Discount:       s.DiscountFor(points),
		Balance:        user.LoyaltyPointsBalance - points,
	}, nil
}

func (s *loyaltyService) GetBalance(ctx context.Context, db *gorm.DB, userID string) (*dto.BalanceResponse, error) {
	user, err := s.loyaltyRepo.FindUser(db.WithContext(ctx), userID)
	if err != nil {
		return nil, handleLoyaltyError(err)
	}
	return &dto.BalanceResponse{UserID: user.ID, Balance: user.LoyaltyPointsBalance}, nil
}

func (s *loyaltyService) GetLedgerHistory(ctx context.Context, db *gorm.DB, userID string, page, pageSize int) (*dto.LedgerHistoryResponse, error) {
	page, pageSize, offset := normalizePage(page, pageSize)

	entries, total, err := s.loyaltyRepo.ListEntries(db.WithContext(ctx), userID, pageSize, offset)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	return &dto.LedgerHistoryResponse{
		Entries:  entries,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// VerifyBalance пересчитывает баланс по леджеру и сравнивает с кэшем в users.
func (s *loyaltyService) VerifyBalance(ctx context.Context, db *gorm.DB, userID string) (*dto.BalanceVerification, error) {
	tx := db.WithContext(ctx)

	user, err := s.loyaltyRepo.FindUser(tx, userID)
	if err != nil {
		return nil, handleLoyaltyError(err)
	}
	sum, err := s.loyaltyRepo.SumPoints(tx, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	result := &dto.BalanceVerification{
		UserID:        userID,
		CachedBalance: user.LoyaltyPointsBalance,
		LedgerSum:     sum,
		Consistent:    sum == user.LoyaltyPointsBalance,
	}
	if !result.Consistent {
		logger.CtxWarn(ctx, "loyalty balance mismatch",
			"user_id", userID,
			"cached_balance", result.CachedBalance,
			"ledger_sum", result.LedgerSum,
		)
	}
	return result, nil
}

func handleLoyaltyError(err error) error {
	if errors.Is(err, repositories.ErrUserNotFound) {
		return apperrors.ErrUserNotFound
	}
	return apperrors.InternalError(err)
}
