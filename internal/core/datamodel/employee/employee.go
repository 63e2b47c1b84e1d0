package employee

import (
	"time"
)

const (
	StatusActive     = "active"
	StatusTerminated = "terminated"
	StatusOnLeave    = "on_leave"
)

type Employee struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	DealershipID int64  `gorm:"column:dealership_id;index;not null" json:"dealership_id"`
	FirstName    string `gorm:"column:first_name;not null" json:"first_name"`
	LastName     string `gorm:"column:last_name;not null" json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Position     string `json:"position"`
	Department   string `json:"department"`

	// Candidates are prospective hires tracked next to staff; the permission
	// matrix gates them separately from employees.
	IsCandidate bool   `gorm:"column:is_candidate;default:false" json:"is_candidate"`
	Status      string `gorm:"default:'active'" json:"status"`

	HiredAt      *time.Time `gorm:"column:hired_at" json:"hired_at,omitempty"`
	TerminatedAt *time.Time `gorm:"column:terminated_at" json:"terminated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Employee) TableName() string {
	return "employees"
}
