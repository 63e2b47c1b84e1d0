package employee

import (
	"context"
	"strings"
	"time"

	errors "github.com/star4ce/star4ce-backend/internal"
	"github.com/star4ce/star4ce-backend/internal/core/common/validation"
	employeedm "github.com/star4ce/star4ce-backend/internal/core/datamodel/employee"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

// Repository is the persistence surface for employees and candidates.
type Repository interface {
	CreateEmployee(e *employeedm.Employee) error
	GetEmployeeByID(id int64) (*employeedm.Employee, error)
	UpdateEmployee(e *employeedm.Employee) error
	DeleteEmployee(id int64) error
	ListEmployees(dealershipID int64, filter ListFilter) ([]employeedm.Employee, error)
	IsDealershipAccessible(userID, dealershipID int64) (bool, error)
}

// PermissionChecker is the slice of the permission service this domain needs.
type PermissionChecker interface {
	HasPermission(u *userdm.User, key string) (bool, error)
}

// SubscriptionGate gates all employee mutations and exports on entitlement.
type SubscriptionGate interface {
	EnsureActive(ctx context.Context, dealershipID int64) error
}

type ServiceAPI interface {
	Create(ctx context.Context, actor *userdm.User, dto CreateEmployeeDTO) (*employeedm.Employee, error)
	Get(ctx context.Context, actor *userdm.User, id int64) (*employeedm.Employee, error)
	Update(ctx context.Context, actor *userdm.User, id int64, dto UpdateEmployeeDTO) (*employeedm.Employee, error)
	Delete(ctx context.Context, actor *userdm.User, id int64) error
	List(ctx context.Context, actor *userdm.User, dealershipID int64, filter ListFilter) ([]employeedm.Employee, error)
	ExportCSV(ctx context.Context, actor *userdm.User) ([][]string, error)
}

type ListFilter struct {
	Candidates *bool
	Status     string
}

type CreateEmployeeDTO struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Position    string     `json:"position,omitempty"`
	Department  string     `json:"department,omitempty"`
	IsCandidate bool       `json:"is_candidate"`
	HiredAt     *time.Time `json:"hired_at,omitempty"`
}

func (d *CreateEmployeeDTO) Normalize() {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
}

func (d *CreateEmployeeDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("first_name", d.FirstName).Required().MaxLength(100)
	v.Field("last_name", d.LastName).Required().MaxLength(100)
	v.Field("email", d.Email).Email()
	return v.Validate()
}

type UpdateEmployeeDTO struct {
	FirstName    *string    `json:"first_name,omitempty"`
	LastName     *string    `json:"last_name,omitempty"`
	Email        *string    `json:"email,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	Position     *string    `json:"position,omitempty"`
	Department   *string    `json:"department,omitempty"`
	Status       *string    `json:"status,omitempty"`
	HiredAt      *time.Time `json:"hired_at,omitempty"`
	TerminatedAt *time.Time `json:"terminated_at,omitempty"`
}

func (d *UpdateEmployeeDTO) Validate() *errors.AppError {
	if d.Status != nil {
		v := validation.NewValidator()
		v.Field("status", *d.Status).OneOf(
			employeedm.StatusActive,
			employeedm.StatusTerminated,
			employeedm.StatusOnLeave,
		)
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if d.Email != nil {
		if err := validation.ValidateEmail(*d.Email); err != nil {
			return err
		}
	}
	return nil
}
