package repositories

import (
	"errors"

	"rentora_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")
)

// LoyaltyRepository - леджер баллов и кэшированный баланс в users.
// Все методы записи рассчитаны на вызов внутри одной транзакции.
type LoyaltyRepository interface {
	// LockUser читает пользователя с блокировкой строки (SELECT ... FOR UPDATE).
	LockUser(db *gorm.DB, userID string) (*models.User, error)
	FindUser(db *gorm.DB, userID string) (*models.User, error)

	FindEarnEntryByPayment(db *gorm.DB, paymentID uint) (*models.LoyaltyLedgerEntry, error)
	InsertEntry(db *gorm.DB, entry *models.LoyaltyLedgerEntry) error
	AdjustBalance(db *gorm.DB, userID string, delta int64) error

	SumPoints(db *gorm.DB, userID string) (int64, error)
	ListEntries(db *gorm.DB, userID string, limit, offset int) ([]models.LoyaltyLedgerEntry, int64, error)
}

type loyaltyRepository struct{}

func NewLoyaltyRepository() LoyaltyRepository {
	return &loyaltyRepository{}
}

func (r *loyaltyRepository) LockUser(db *gorm.DB, userID string) (*models.User, error) {
	query := db
	// SQLite не знает FOR UPDATE, там транзакции и так сериализованы.
	if db.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	return r.findUser(query, userID)
}

func (r *loyaltyRepository) FindUser(db *gorm.DB, userID string) (*models.User, error) {
	return r.findUser(db, userID)
}

func (r *loyaltyRepository) findUser(db *gorm.DB, userID string) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *loyaltyRepository) FindEarnEntryByPayment(db *gorm.DB, paymentID uint) (*models.LoyaltyLedgerEntry, error) {
	var entry models.LoyaltyLedgerEntry
	err := db.Where("related_payment_id = ? AND type = ?", paymentID, models.LedgerEntryEarn).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLedgerEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *loyaltyRepository) InsertEntry(db *gorm.DB, entry *models.LoyaltyLedgerEntry) error {
	return db.Create(entry).Error
}

func (r *loyaltyRepository) AdjustBalance(db *gorm.DB, userID string, delta int64) error {
	result := db.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("loyalty_points_balance", gorm.Expr("loyalty_points_balance + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *loyaltyRepository) SumPoints(db *gorm.DB, userID string) (int64, error) {
	var sum int64
	err := db.Model(&models.LoyaltyLedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *loyaltyRepository) ListEntries(db *gorm.DB, userID string, limit, offset int) ([]models.LoyaltyLedgerEntry, int64, error) {
	var entries []models.LoyaltyLedgerEntry
	var total int64

	query := db.Model(&models.LoyaltyLedgerEntry{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, total, err
}
