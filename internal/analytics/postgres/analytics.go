package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/star4ce/star4ce-backend/internal/analytics"
)

// Repository runs the dashboard aggregations as raw SQL over sqlx; the
// queries only touch the denormalized survey_answers rows plus response
// counts, so they stay cheap even for large dealerships.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Summary(ctx context.Context, dealershipID int64) (*analytics.Summary, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM survey_responses WHERE dealership_id = $1) AS total_responses,
			COALESCE((SELECT AVG(score) FROM survey_answers WHERE dealership_id = $1), 0) AS average_score,
			(SELECT COUNT(*) FROM survey_access_codes WHERE dealership_id = $1 AND is_active = true) AS active_codes,
			(SELECT MAX(submitted_at)::text FROM survey_responses WHERE dealership_id = $1) AS last_response_at`

	var summary analytics.Summary
	if err := r.db.GetContext(ctx, &summary, query, dealershipID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &analytics.Summary{}, nil
		}
		return nil, err
	}
	return &summary, nil
}

func (r *Repository) TimeSeries(ctx context.Context, dealershipID int64, days int) ([]analytics.TimeSeriesPoint, error) {
	const query = `
		SELECT
			date_trunc('day', submitted_at) AS day,
			COUNT(DISTINCT response_id) AS responses,
			COALESCE(AVG(score), 0) AS average_score
		FROM survey_answers
		WHERE dealership_id = $1
		  AND submitted_at >= now() - ($2 || ' days')::interval
		GROUP BY day
		ORDER BY day`

	points := []analytics.TimeSeriesPoint{}
	if err := r.db.SelectContext(ctx, &points, query, dealershipID, days); err != nil {
		return nil, err
	}
	return points, nil
}

func (r *Repository) Averages(ctx context.Context, dealershipID int64) ([]analytics.QuestionAverage, error) {
	const query = `
		SELECT
			question_key,
			COALESCE(AVG(score), 0) AS average_score,
			COUNT(*) AS answers
		FROM survey_answers
		WHERE dealership_id = $1
		GROUP BY question_key
		ORDER BY question_key`

	averages := []analytics.QuestionAverage{}
	if err := r.db.SelectContext(ctx, &averages, query, dealershipID); err != nil {
		return nil, err
	}
	return averages, nil
}

func (r *Repository) RoleBreakdown(ctx context.Context, dealershipID int64) ([]analytics.RoleBreakdownRow, error) {
	const query = `
		SELECT
			COALESCE(NULLIF(respondent_role, ''), 'unknown') AS respondent_role,
			COUNT(DISTINCT response_id) AS responses,
			COALESCE(AVG(score), 0) AS average_score
		FROM survey_answers
		WHERE dealership_id = $1
		GROUP BY 1
		ORDER BY responses DESC`

	rows := []analytics.RoleBreakdownRow{}
	if err := r.db.SelectContext(ctx, &rows, query, dealershipID); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) IsDealershipAccessible(ctx context.Context, userID, dealershipID int64) (bool, error) {
	const query = `SELECT COUNT(*) FROM corporate_dealerships WHERE user_id = $1 AND dealership_id = $2`

	var count int64
	if err := r.db.GetContext(ctx, &count, query, userID, dealershipID); err != nil {
		return false, err
	}
	return count > 0, nil
}
