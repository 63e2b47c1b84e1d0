package postgres

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	permdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/permission"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetUserOverride(userID int64, key string) (*permdm.UserPermission, error) {
	var p permdm.UserPermission
	err := r.db.Where("user_id = ? AND permission_key = ?", userID, key).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetRoleOverride(dealershipID int64, role, key string) (*permdm.RolePermission, error) {
	var p permdm.RolePermission
	err := r.db.Where("dealership_id = ? AND role = ? AND permission_key = ?", dealershipID, role, key).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ListUserOverrides(userID int64) ([]permdm.UserPermission, error) {
	var perms []permdm.UserPermission
	if err := r.db.Where("user_id = ?", userID).Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *Repository) ListRoleOverrides(dealershipID int64, role string) ([]permdm.RolePermission, error) {
	query := r.db.Where("dealership_id = ?", dealershipID)
	if role != "" {
		query = query.Where("role = ?", role)
	}

	var perms []permdm.RolePermission
	if err := query.Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *Repository) UpsertRolePermission(p *permdm.RolePermission) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dealership_id"}, {Name: "role"}, {Name: "permission_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"allowed", "updated_by", "updated_at"}),
	}).Create(p).Error
}

func (r *Repository) UpsertUserPermission(p *permdm.UserPermission) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "permission_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"allowed", "granted_by", "updated_at"}),
	}).Create(p).Error
}

func (r *Repository) GetUserByID(id int64) (*userdm.User, error) {
	var u userdm.User
	if err := r.db.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
