package auth

import (
	"strings"
	"time"

	errors "github.com/star4ce/star4ce-backend/internal"
	"github.com/star4ce/star4ce-backend/internal/core/common/validation"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

type RegisterDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
}

func (d *RegisterDTO) Normalize() {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	if d.Role == "" {
		d.Role = userdm.RoleManager
	}
}

func (d *RegisterDTO) Validate() *errors.AppError {
	if err := validation.ValidateEmail(d.Email); err != nil {
		return err
	}
	if err := validation.ValidatePassword(d.Password); err != nil {
		return err
	}

	v := validation.NewValidator()
	v.Field("role", d.Role).OneOf(userdm.RoleManager, userdm.RoleCorporate)
	return v.Validate()
}

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (d *LoginDTO) Normalize() {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
}

func (d *LoginDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required()
	v.Field("password", d.Password).Required()
	return v.Validate()
}

type VerifyDTO struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (d *VerifyDTO) Normalize() {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Code = strings.TrimSpace(d.Code)
}

func (d *VerifyDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required()
	v.Field("code", d.Code).Required().MinLength(6).MaxLength(6)
	return v.Validate()
}

type EmailDTO struct {
	Email string `json:"email"`
}

func (d *EmailDTO) Normalize() {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
}

type ResetPasswordDTO struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (d *ResetPasswordDTO) Normalize() {
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Code = strings.TrimSpace(d.Code)
}

func (d *ResetPasswordDTO) Validate() *errors.AppError {
	if err := validation.ValidatePassword(d.NewPassword); err != nil {
		return err
	}

	v := validation.NewValidator()
	v.Field("email", d.Email).Required()
	v.Field("code", d.Code).Required()
	return v.Validate()
}

type UserResponse struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	DealershipID *int64     `json:"dealership_id,omitempty"`
	IsVerified   bool       `json:"is_verified"`
	IsApproved   bool       `json:"is_approved"`
	CreatedAt    time.Time  `json:"created_at"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

func ToUserResponse(u *userdm.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		DealershipID: u.DealershipID,
		IsVerified:   u.IsVerified,
		IsApproved:   u.IsApproved,
		CreatedAt:    u.CreatedAt,
	}
}
