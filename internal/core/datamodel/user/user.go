package user

import (
	"time"
)

const (
	RoleAdmin     = "admin"
	RoleManager   = "manager"
	RoleCorporate = "corporate"
)

// User is the persistence shape for accounts. Exactly one of DealershipID
// (admin/manager) or the corporate_dealerships association (corporate) is the
// operative scope source, determined by Role.
type User struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	Name         string `json:"name"`
	PasswordHash string `gorm:"column:password_hash;not null" json:"-"`
	Role         string `gorm:"default:'manager'" json:"role"`
	DealershipID *int64 `gorm:"column:dealership_id" json:"dealership_id,omitempty"`

	IsVerified             bool       `gorm:"column:is_verified;default:false" json:"is_verified"`
	VerificationCode       *string    `gorm:"column:verification_code" json:"-"`
	VerificationExpiresAt  *time.Time `gorm:"column:verification_expires_at" json:"-"`
	ResetCode              *string    `gorm:"column:reset_code" json:"-"`
	ResetExpiresAt         *time.Time `gorm:"column:reset_expires_at" json:"-"`

	IsApproved bool       `gorm:"column:is_approved;default:false" json:"is_approved"`
	ApprovedBy *int64     `gorm:"column:approved_by" json:"approved_by,omitempty"`
	ApprovedAt *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// CorporateDealership is the association set binding corporate users to the
// dealerships they may read. Membership here is the single source of truth
// for corporate scope.
type CorporateDealership struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	UserID       int64     `gorm:"column:user_id;uniqueIndex:idx_corp_dealer;not null" json:"user_id"`
	DealershipID int64     `gorm:"column:dealership_id;uniqueIndex:idx_corp_dealer;not null" json:"dealership_id"`
	AssignedBy   *int64    `gorm:"column:assigned_by" json:"assigned_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (CorporateDealership) TableName() string {
	return "corporate_dealerships"
}

func (u *User) IsAdmin() bool     { return u.Role == RoleAdmin }
func (u *User) IsManager() bool   { return u.Role == RoleManager }
func (u *User) IsCorporate() bool { return u.Role == RoleCorporate }

// VerificationCodeValid reports whether the stored code matches and has not expired.
func (u *User) VerificationCodeValid(code string, now time.Time) bool {
	if u.VerificationCode == nil || u.VerificationExpiresAt == nil {
		return false
	}
	return *u.VerificationCode == code && now.Before(*u.VerificationExpiresAt)
}

func (u *User) ResetCodeValid(code string, now time.Time) bool {
	if u.ResetCode == nil || u.ResetExpiresAt == nil {
		return false
	}
	return *u.ResetCode == code && now.Before(*u.ResetExpiresAt)
}
