package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/star4ce/star4ce-backend/internal"
	dealershipdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/dealership"
	surveydm "github.com/star4ce/star4ce-backend/internal/core/datamodel/survey"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateAccessCode(c *surveydm.AccessCode) error {
	return r.db.Create(c).Error
}

func (r *Repository) GetAccessCodeByCode(code string) (*surveydm.AccessCode, error) {
	var c surveydm.AccessCode
	if err := r.db.Where("code = ?", code).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repository) ListAccessCodes(dealershipID int64) ([]surveydm.AccessCode, error) {
	var codes []surveydm.AccessCode
	err := r.db.
		Where("dealership_id = ?", dealershipID).
		Order("created_at DESC").
		Find(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// ConsumeCodeAndStoreResponse runs the one-time-use check-and-set and the
// response writes in a single transaction. The conditional UPDATE on
// is_active guarantees at most one concurrent winner per code.
func (r *Repository) ConsumeCodeAndStoreResponse(code string, resp *surveydm.Response, answers []surveydm.Answer) (*surveydm.Response, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&surveydm.AccessCode{}).
			Where("code = ? AND is_active = ?", code, true).
			Update("is_active", false)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return internal.ErrInvalidAccessCode
		}

		if err := tx.Create(resp).Error; err != nil {
			return err
		}

		for i := range answers {
			answers[i].ResponseID = resp.ID
		}
		if len(answers) > 0 {
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok {
			return nil, appErr
		}
		return nil, internal.NewInternalError("failed to store survey response", err)
	}

	return resp, nil
}

func (r *Repository) CreateDealership(d *dealershipdm.Dealership) error {
	return r.db.Create(d).Error
}

func (r *Repository) UpdateUser(u *userdm.User) error {
	return r.db.Save(u).Error
}
