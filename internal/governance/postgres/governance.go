package postgres

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dealershipdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/dealership"
	governancedm "github.com/star4ce/star4ce-backend/internal/core/datamodel/governance"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
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

func (r *Repository) UpdateUser(u *userdm.User) error {
	return r.db.Save(u).Error
}

func (r *Repository) DeleteUser(id int64) error {
	return r.db.Delete(&userdm.User{}, id).Error
}

func (r *Repository) ListPendingManagers(dealershipID int64) ([]userdm.User, error) {
	var managers []userdm.User
	err := r.db.
		Where("role = ? AND is_approved = ? AND is_verified = ?", userdm.RoleManager, false, true).
		Where("dealership_id = ? OR dealership_id IS NULL", dealershipID).
		Order("created_at").
		Find(&managers).Error
	if err != nil {
		return nil, err
	}
	return managers, nil
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

func (r *Repository) CreateAdminRequest(req *governancedm.AdminRequest) error {
	return r.db.Create(req).Error
}

func (r *Repository) GetAdminRequestByID(id int64) (*governancedm.AdminRequest, error) {
	var req governancedm.AdminRequest
	if err := r.db.First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *Repository) UpdateAdminRequest(req *governancedm.AdminRequest) error {
	return r.db.Save(req).Error
}

func (r *Repository) ListPendingAdminRequests(dealershipID int64) ([]governancedm.AdminRequest, error) {
	var requests []governancedm.AdminRequest
	err := r.db.
		Where("dealership_id = ? AND status = ?", dealershipID, governancedm.StatusPending).
		Order("created_at").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *Repository) CreateManagerDealershipRequest(req *governancedm.ManagerDealershipRequest) error {
	return r.db.Create(req).Error
}

func (r *Repository) GetManagerDealershipRequestByID(id int64) (*governancedm.ManagerDealershipRequest, error) {
	var req governancedm.ManagerDealershipRequest
	if err := r.db.First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *Repository) UpdateManagerDealershipRequest(req *governancedm.ManagerDealershipRequest) error {
	return r.db.Save(req).Error
}

func (r *Repository) ListPendingManagerDealershipRequests(dealershipID int64) ([]governancedm.ManagerDealershipRequest, error) {
	var requests []governancedm.ManagerDealershipRequest
	err := r.db.
		Where("dealership_id = ? AND status = ?", dealershipID, governancedm.StatusPending).
		Order("created_at").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *Repository) CreateDealershipAccessRequest(req *governancedm.DealershipAccessRequest) error {
	return r.db.Create(req).Error
}

func (r *Repository) GetDealershipAccessRequestByID(id int64) (*governancedm.DealershipAccessRequest, error) {
	var req governancedm.DealershipAccessRequest
	if err := r.db.First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *Repository) UpdateDealershipAccessRequest(req *governancedm.DealershipAccessRequest) error {
	return r.db.Save(req).Error
}

func (r *Repository) ListPendingDealershipAccessRequests(dealershipID int64) ([]governancedm.DealershipAccessRequest, error) {
	var requests []governancedm.DealershipAccessRequest
	err := r.db.
		Where("dealership_id = ? AND status = ?", dealershipID, governancedm.StatusPending).
		Order("created_at").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// AssignCorporateDealership is idempotent: re-assigning an existing pair is a
// no-op.
func (r *Repository) AssignCorporateDealership(assignment *userdm.CorporateDealership) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "dealership_id"}},
		DoNothing: true,
	}).Create(assignment).Error
}

func (r *Repository) AccessibleDealershipIDs(userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.Model(&userdm.CorporateDealership{}).
		Where("user_id = ?", userID).
		Order("dealership_id").
		Pluck("dealership_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
