package access

import (
	"context"
	"errors"
	"fmt"

	"travel-marketplace/internal/domain/users"

	"gorm.io/gorm"
)

// roles allowed per action; admins are allowed everything, suspended accounts nothing.
var allowedRoles = map[Action][]string{
	ActionPurchaseCredits: {users.RoleUser, users.RoleAgent},
	ActionConsumeCredits:  {users.RoleUser, users.RoleAgent},
}

// RoleAllows is the pure policy check behind Gate.
func RoleAllows(role string, action Action) bool {
	switch role {
	case users.RoleSuspended, "":
		return false
	case users.RoleAdmin:
		return true
	}
	for _, r := range allowedRoles[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Gate answers whether an account may perform an action, based on its
// current role in the users table. Unknown accounts are denied.
type Gate struct {
	db *gorm.DB
}

func NewGate(db *gorm.DB) *Gate {
	return &Gate{db: db}
}

func (g *Gate) Authorize(ctx context.Context, userID uint, action Action) (bool, error) {
	if userID == 0 {
		return false, nil
	}

	var user users.User
	err := g.db.WithContext(ctx).Select("id", "role").Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load user %d: %w", userID, err)
	}

	return RoleAllows(user.Role, action), nil
}
