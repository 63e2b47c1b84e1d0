package survey

import (
	"time"

	"gorm.io/datatypes"
)

// AccessCode gates one anonymous submission. Consumption flips IsActive to
// false atomically; the code string (not the row id) links the response so the
// raw answers stay detached from the issuing record after submission.
type AccessCode struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Code         string    `gorm:"uniqueIndex;not null" json:"code"`
	DealershipID int64     `gorm:"column:dealership_id;not null" json:"dealership_id"`
	IsActive     bool      `gorm:"column:is_active;default:true" json:"is_active"`
	ExpiresAt    time.Time `gorm:"column:expires_at" json:"expires_at"`
	CreatedBy    *int64    `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (AccessCode) TableName() string {
	return "survey_access_codes"
}

func (c *AccessCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Response is the anonymous submission. Answers holds the bounded
// question-key -> answer-label map; FeedbackText is the only free-form field.
type Response struct {
	ID           int64             `gorm:"primaryKey" json:"id"`
	DealershipID int64             `gorm:"column:dealership_id;not null" json:"dealership_id"`
	AccessCode   string            `gorm:"column:access_code;not null" json:"access_code"`
	Answers      datatypes.JSONMap `gorm:"column:answers" json:"answers"`
	FeedbackText string            `gorm:"column:feedback_text" json:"feedback_text,omitempty"`

	RespondentRole   string  `gorm:"column:respondent_role" json:"respondent_role,omitempty"`
	EmploymentStatus string  `gorm:"column:employment_status" json:"employment_status,omitempty"`
	TerminationReason *string `gorm:"column:termination_reason" json:"termination_reason,omitempty"`
	LeaveReason       *string `gorm:"column:leave_reason" json:"leave_reason,omitempty"`

	SubmittedAt time.Time `gorm:"column:submitted_at" json:"submitted_at"`
}

func (Response) TableName() string {
	return "survey_responses"
}

// Answer is the denormalized per-question row written alongside each Response
// for dashboard aggregation.
type Answer struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	DealershipID int64     `gorm:"column:dealership_id;index;not null" json:"dealership_id"`
	ResponseID   int64     `gorm:"column:response_id;not null" json:"response_id"`
	QuestionKey  string    `gorm:"column:question_key;not null" json:"question_key"`
	AnswerLabel  string    `gorm:"column:answer_label;not null" json:"answer_label"`
	Score        int       `gorm:"column:score" json:"score"`
	RespondentRole string  `gorm:"column:respondent_role" json:"respondent_role,omitempty"`
	SubmittedAt  time.Time `gorm:"column:submitted_at" json:"submitted_at"`
}

func (Answer) TableName() string {
	return "survey_answers"
}
