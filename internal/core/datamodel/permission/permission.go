package permission

import (
	"time"
)

// RolePermission is an admin-configured override of the built-in defaults for
// a whole role within a dealership.
type RolePermission struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	DealershipID int64     `gorm:"column:dealership_id;uniqueIndex:idx_role_perm;not null" json:"dealership_id"`
	Role         string    `gorm:"uniqueIndex:idx_role_perm;not null" json:"role"`
	PermissionKey string   `gorm:"column:permission_key;uniqueIndex:idx_role_perm;not null" json:"permission_key"`
	Allowed      bool      `gorm:"not null" json:"allowed"`
	UpdatedBy    *int64    `gorm:"column:updated_by" json:"updated_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

// UserPermission is a per-user override; where present it strictly shadows the
// role-level value for that user and key. Only managers get this layer.
type UserPermission struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	UserID        int64     `gorm:"column:user_id;uniqueIndex:idx_user_perm;not null" json:"user_id"`
	PermissionKey string    `gorm:"column:permission_key;uniqueIndex:idx_user_perm;not null" json:"permission_key"`
	Allowed       bool      `gorm:"not null" json:"allowed"`
	GrantedBy     *int64    `gorm:"column:granted_by" json:"granted_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (UserPermission) TableName() string {
	return "user_permissions"
}
