package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	dealershipdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/dealership"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetDealershipByID(id int64) (*dealershipdm.Dealership, error) {
	var d dealershipdm.Dealership
	if err := r.db.First(&d, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *Repository) GetDealershipByCustomerID(customerID string) (*dealershipdm.Dealership, error) {
	var d dealershipdm.Dealership
	err := r.db.Where("billing_customer_id = ?", customerID).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *Repository) GetDealershipBySubscriptionID(subscriptionID string) (*dealershipdm.Dealership, error) {
	var d dealershipdm.Dealership
	err := r.db.Where("billing_subscription_id = ?", subscriptionID).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *Repository) CreateDealership(d *dealershipdm.Dealership) error {
	return r.db.Create(d).Error
}

func (r *Repository) UpdateDealership(d *dealershipdm.Dealership) error {
	return r.db.Save(d).Error
}

func (r *Repository) ListDealershipsWithBilling() ([]dealershipdm.Dealership, error) {
	var dealerships []dealershipdm.Dealership
	err := r.db.Where("billing_subscription_id IS NOT NULL").Find(&dealerships).Error
	if err != nil {
		return nil, err
	}
	return dealerships, nil
}

// ExpireLapsedTrials flips trials whose window has passed to expired.
func (r *Repository) ExpireLapsedTrials(now time.Time) (int64, error) {
	result := r.db.Model(&dealershipdm.Dealership{}).
		Where("subscription_status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at < ?", dealershipdm.StatusTrial, now).
		Update("subscription_status", dealershipdm.StatusExpired)
	return result.RowsAffected, result.Error
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

func (r *Repository) UpdateUser(u *userdm.User) error {
	return r.db.Save(u).Error
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
