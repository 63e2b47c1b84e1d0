package analytics

import (
	"context"
	"time"

	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

type Summary struct {
	TotalResponses int64   `db:"total_responses" json:"total_responses"`
	AverageScore   float64 `db:"average_score" json:"average_score"`
	ActiveCodes    int64   `db:"active_codes" json:"active_codes"`
	LastResponseAt *string `db:"last_response_at" json:"last_response_at,omitempty"`
}

type TimeSeriesPoint struct {
	Day          time.Time `db:"day" json:"day"`
	Responses    int64     `db:"responses" json:"responses"`
	AverageScore float64   `db:"average_score" json:"average_score"`
}

type QuestionAverage struct {
	QuestionKey  string  `db:"question_key" json:"question_key"`
	AverageScore float64 `db:"average_score" json:"average_score"`
	Answers      int64   `db:"answers" json:"answers"`
}

type RoleBreakdownRow struct {
	RespondentRole string  `db:"respondent_role" json:"respondent_role"`
	Responses      int64   `db:"responses" json:"responses"`
	AverageScore   float64 `db:"average_score" json:"average_score"`
}

// Repository runs the aggregation queries against the denormalized answer
// rows.
type Repository interface {
	Summary(ctx context.Context, dealershipID int64) (*Summary, error)
	TimeSeries(ctx context.Context, dealershipID int64, days int) ([]TimeSeriesPoint, error)
	Averages(ctx context.Context, dealershipID int64) ([]QuestionAverage, error)
	RoleBreakdown(ctx context.Context, dealershipID int64) ([]RoleBreakdownRow, error)
	IsDealershipAccessible(ctx context.Context, userID, dealershipID int64) (bool, error)
}

type PermissionChecker interface {
	HasPermission(u *userdm.User, key string) (bool, error)
}

type SubscriptionGate interface {
	EnsureActive(ctx context.Context, dealershipID int64) error
}

type ServiceAPI interface {
	Summary(ctx context.Context, actor *userdm.User, dealershipID int64) (*Summary, error)
	TimeSeries(ctx context.Context, actor *userdm.User, dealershipID int64, days int) ([]TimeSeriesPoint, error)
	Averages(ctx context.Context, actor *userdm.User, dealershipID int64) ([]QuestionAverage, error)
	RoleBreakdown(ctx context.Context, actor *userdm.User, dealershipID int64) ([]RoleBreakdownRow, error)
}
