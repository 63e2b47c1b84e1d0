package survey

import (
	"fmt"
	"strings"
	"time"

	errors "github.com/star4ce/star4ce-backend/internal"
	"github.com/star4ce/star4ce-backend/internal/core/common/validation"
)

type CreateAccessCodeDTO struct {
	ExpiryHours int `json:"expiry_hours,omitempty"`
}

func (d *CreateAccessCodeDTO) TTL() time.Duration {
	if d.ExpiryHours <= 0 {
		return DefaultCodeTTL
	}
	return time.Duration(d.ExpiryHours) * time.Hour
}

func (d *CreateAccessCodeDTO) Validate() *errors.AppError {
	if d.ExpiryHours < 0 || d.ExpiryHours > 24*90 {
		return errors.NewValidationFieldError("expiry_hours", "expiry_hours must be between 0 and 2160", errors.ErrCodeValidationFailed)
	}
	return nil
}

type ValidateCodeDTO struct {
	Code string `json:"code"`
}

type ValidateCodeResponse struct {
	DealershipID int64     `json:"dealership_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type SubmitResponseDTO struct {
	AccessCode        string            `json:"access_code"`
	Answers           map[string]string `json:"answers"`
	FeedbackText      string            `json:"feedback_text,omitempty"`
	RespondentRole    string            `json:"respondent_role,omitempty"`
	EmploymentStatus  string            `json:"employment_status,omitempty"`
	TerminationReason string            `json:"termination_reason,omitempty"`
	LeaveReason       string            `json:"leave_reason,omitempty"`
}

func (d *SubmitResponseDTO) Normalize() {
	d.AccessCode = strings.ToUpper(strings.TrimSpace(d.AccessCode))
}

func (d *SubmitResponseDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("access_code", d.AccessCode).Required().MinLength(CodeLength).MaxLength(CodeLength)
	v.Field("feedback_text", d.FeedbackText).MaxLength(4000)
	if err := v.Validate(); err != nil {
		return err
	}

	if len(d.Answers) == 0 {
		return errors.NewValidationFieldError("answers", "at least one answer is required", errors.ErrCodeValidationFailed)
	}

	for key, label := range d.Answers {
		if !IsValidQuestionKey(key) {
			return errors.NewValidationFieldError("answers", fmt.Sprintf("unknown question key %q", key), errors.ErrCodeValidationFailed)
		}
		if _, ok := ScoreForAnswer(label); !ok {
			return errors.NewValidationFieldError("answers", fmt.Sprintf("unknown answer label %q for question %q", label, key), errors.ErrCodeValidationFailed)
		}
	}

	if d.RespondentRole != "" && !IsValidRespondentRole(d.RespondentRole) {
		return errors.NewValidationFieldError("respondent_role", "unknown respondent role", errors.ErrCodeValidationFailed)
	}
	if d.EmploymentStatus != "" && !IsValidEmploymentStatus(d.EmploymentStatus) {
		return errors.NewValidationFieldError("employment_status", "unknown employment status", errors.ErrCodeValidationFailed)
	}
	if d.TerminationReason != "" && d.EmploymentStatus != "terminated" {
		return errors.NewValidationFieldError("termination_reason", "termination_reason requires employment_status=terminated", errors.ErrCodeValidationFailed)
	}
	if d.LeaveReason != "" && d.EmploymentStatus != "on_leave" {
		return errors.NewValidationFieldError("leave_reason", "leave_reason requires employment_status=on_leave", errors.ErrCodeValidationFailed)
	}

	return nil
}

type SendInviteDTO struct {
	EmployeeEmail string `json:"employee_email"`
	Code          string `json:"code"`
}

func (d *SendInviteDTO) Normalize() {
	d.EmployeeEmail = strings.ToLower(strings.TrimSpace(d.EmployeeEmail))
	d.Code = strings.ToUpper(strings.TrimSpace(d.Code))
}

func (d *SendInviteDTO) Validate() *errors.AppError {
	if err := validation.ValidateEmail(d.EmployeeEmail); err != nil {
		return err
	}

	v := validation.NewValidator()
	v.Field("code", d.Code).Required().MinLength(CodeLength).MaxLength(CodeLength)
	return v.Validate()
}

type SubmitResponseResult struct {
	ResponseID int64  `json:"response_id"`
	Message    string `json:"message"`
}
