package model

import (
	"strings"
	"time"
)

// User is a tenant-scoped login/role record. Logins are unique per tenant.
// Users carry no credentials; the surrounding platform authenticates.
type User struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	TenantID string `json:"-" gorm:"type:varchar(100);uniqueIndex:idx_user_tenant_login;not null"`
	Login    string `json:"login" gorm:"type:varchar(255);uniqueIndex:idx_user_tenant_login"`
	Role     string `json:"role" gorm:"type:varchar(255)"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that login and role are non-blank.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Login) == "" || strings.TrimSpace(u.Role) == "" {
		return ErrInvalidUserData
	}
	return nil
}
