package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetUserByEmail(email string) (*userdm.User, error) {
	var u userdm.User
	if err := r.db.Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
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

func (r *Repository) CreateUser(u *userdm.User) error {
	return r.db.Create(u).Error
}

func (r *Repository) UpdateUser(u *userdm.User) error {
	return r.db.Save(u).Error
}

func (r *Repository) DeleteUser(id int64) error {
	return r.db.Delete(&userdm.User{}, id).Error
}

// DeleteUnverifiedBefore reaps accounts that never completed verification.
// Only targets the terminal "never verified" sub-state.
func (r *Repository) DeleteUnverifiedBefore(cutoff time.Time) (int64, error) {
	result := r.db.
		Where("is_verified = ? AND created_at < ?", false, cutoff).
		Delete(&userdm.User{})
	return result.RowsAffected, result.Error
}
