package auth

import (
	"errors"

	"rentora_backend/internal/models"
)

const (
	PermissionPaymentsCreate  = "payments:create"
	PermissionPaymentsRead    = "payments:read:self"
	PermissionLoyaltyRedeem   = "loyalty:redeem"
	PermissionSettlementAdmin = "settlement:admin"
)

// Permissions - разрешения по ролям
var Permissions = map[models.UserRole][]string{
	models.UserRoleAdmin: {
		PermissionPaymentsCreate,
		PermissionPaymentsRead,
		PermissionLoyaltyRedeem,
		PermissionSettlementAdmin,
	},
	models.UserRoleGuest: {
		PermissionPaymentsCreate,
		PermissionPaymentsRead,
		PermissionLoyaltyRedeem,
	},
	// Хозяин жилья может оплачивать как арендатор, но не управляет сверкой
	models.UserRoleHost: {
		PermissionPaymentsCreate,
		PermissionPaymentsRead,
		PermissionLoyaltyRedeem,
	},
}

// HasPermission проверяет есть ли у роли указанное разрешение
func HasPermission(role models.UserRole, permission string) bool {
	for _, p := range Permissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

func IsAdmin(claims *Claims) bool {
	return claims.Role == models.UserRoleAdmin
}

// ValidateRole проверяет валидность роли
func ValidateRole(role models.UserRole) error {
	switch role {
	case models.UserRoleGuest, models.UserRoleHost, models.UserRoleAdmin:
		return nil
	default:
		return errors.New("invalid role")
	}
}
