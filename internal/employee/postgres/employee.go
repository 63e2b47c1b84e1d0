package postgres

import (
	"errors"

	"gorm.io/gorm"

	employeedm "github.com/star4ce/star4ce-backend/internal/core/datamodel/employee"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
	"github.com/star4ce/star4ce-backend/internal/employee"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateEmployee(e *employeedm.Employee) error {
	return r.db.Create(e).Error
}

func (r *Repository) GetEmployeeByID(id int64) (*employeedm.Employee, error) {
	var e employeedm.Employee
	if err := r.db.First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (r *Repository) UpdateEmployee(e *employeedm.Employee) error {
	return r.db.Save(e).Error
}

func (r *Repository) DeleteEmployee(id int64) error {
	return r.db.Delete(&employeedm.Employee{}, id).Error
}

func (r *Repository) ListEmployees(dealershipID int64, filter employee.ListFilter) ([]employeedm.Employee, error) {
	query := r.db.Where("dealership_id = ?", dealershipID)

	if filter.Candidates != nil {
		query = query.Where("is_candidate = ?", *filter.Candidates)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var employees []employeedm.Employee
	if err := query.Order("last_name, first_name").Find(&employees).Error; err != nil {
		return nil, err
	}
	return employees, nil
}

func (r *Repository) IsDealershipAccessible(userID, dealershipID int64) (bool, error) {
	var count int64
	err := r.db.Model(&userdm.CorporateDealership{}).
		Where("user_id = ? AND dealership_id = ?", userID, dealershipID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
