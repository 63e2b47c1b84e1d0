package governance

import (
	"time"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// AdminRequest asks for admin rights on a dealership. One-shot transition out
// of pending; immutable afterwards except audit fields.
type AdminRequest struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	UserID       int64      `gorm:"column:user_id;not null" json:"user_id"`
	DealershipID int64      `gorm:"column:dealership_id;not null" json:"dealership_id"`
	Status       string     `gorm:"default:'pending'" json:"status"`
	Message      string     `json:"message,omitempty"`
	ResolvedBy   *int64     `gorm:"column:resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (AdminRequest) TableName() string {
	return "admin_requests"
}

// ManagerDealershipRequest asks to bind a manager to a dealership.
type ManagerDealershipRequest struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	UserID       int64      `gorm:"column:user_id;not null" json:"user_id"`
	DealershipID int64      `gorm:"column:dealership_id;not null" json:"dealership_id"`
	Status       string     `gorm:"default:'pending'" json:"status"`
	ResolvedBy   *int64     `gorm:"column:resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (ManagerDealershipRequest) TableName() string {
	return "manager_dealership_requests"
}

// DealershipAccessRequest asks to add a dealership to a corporate user's
// accessible set.
type DealershipAccessRequest struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	UserID       int64      `gorm:"column:user_id;not null" json:"user_id"`
	DealershipID int64      `gorm:"column:dealership_id;not null" json:"dealership_id"`
	Status       string     `gorm:"default:'pending'" json:"status"`
	Message      string     `json:"message,omitempty"`
	ResolvedBy   *int64     `gorm:"column:resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (DealershipAccessRequest) TableName() string {
	return "dealership_access_requests"
}

func IsPending(status string) bool {
	return status == StatusPending
}
