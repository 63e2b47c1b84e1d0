package analytics

import (
	"context"
	"log/slog"

	"github.com/star4ce/star4ce-backend/internal"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
	"github.com/star4ce/star4ce-backend/internal/permission"
)

const (
	DefaultTimeSeriesDays = 30
	MaxTimeSeriesDays     = 365
)

type Service struct {
	repo          Repository
	permissions   PermissionChecker
	subscriptions SubscriptionGate
	logger        *slog.Logger
}

func NewService(repo Repository, permissions PermissionChecker, subscriptions SubscriptionGate, logger *slog.Logger) *Service {
	return &Service{
		repo:          repo,
		permissions:   permissions,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

func (s *Service) Summary(ctx context.Context, actor *userdm.User, dealershipID int64) (*Summary, error) {
	id, err := s.gate(ctx, actor, dealershipID)
	if err != nil {
		return nil, err
	}

	summary, err := s.repo.Summary(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to compute summary", err)
	}
	return summary, nil
}

func (s *Service) TimeSeries(ctx context.Context, actor *userdm.User, dealershipID int64, days int) ([]TimeSeriesPoint, error) {
	id, err := s.gate(ctx, actor, dealershipID)
	if err != nil {
		return nil, err
	}

	if days <= 0 {
		days = DefaultTimeSeriesDays
	}
	if days > MaxTimeSeriesDays {
		days = MaxTimeSeriesDays
	}

	points, err := s.repo.TimeSeries(ctx, id, days)
	if err != nil {
		return nil, internal.NewInternalError("failed to compute time series", err)
	}
	return points, nil
}

func (s *Service) Averages(ctx context.Context, actor *userdm.User, dealershipID int64) ([]QuestionAverage, error) {
	id, err := s.gate(ctx, actor, dealershipID)
	if err != nil {
		return nil, err
	}

	averages, err := s.repo.Averages(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to compute question averages", err)
	}
	return averages, nil
}

func (s *Service) RoleBreakdown(ctx context.Context, actor *userdm.User, dealershipID int64) ([]RoleBreakdownRow, error) {
	id, err := s.gate(ctx, actor, dealershipID)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.RoleBreakdown(ctx, id)
	if err != nil {
		return nil, internal.NewInternalError("failed to compute role breakdown", err)
	}
	return rows, nil
}

// gate resolves the dealership scope, checks view_analytics, and enforces the
// subscription entitlement.
func (s *Service) gate(ctx context.Context, actor *userdm.User, requested int64) (int64, error) {
	allowed, err := s.permissions.HasPermission(actor, permission.KeyViewAnalytics)
	if err != nil {
		return 0, err
	}
	if !allowed {
		return 0, internal.ErrPermissionDenied
	}

	var id int64
	if actor.IsCorporate() {
		if requested == 0 {
			return 0, internal.NewValidationError("dealership_id is required", internal.ErrCodeValidationFailed)
		}
		accessible, err := s.repo.IsDealershipAccessible(ctx, actor.ID, requested)
		if err != nil {
			return 0, internal.NewInternalError("failed to check dealership access", err)
		}
		if !accessible {
			return 0, internal.ErrPermissionDenied
		}
		id = requested
	} else {
		if actor.DealershipID == nil {
			return 0, internal.ErrDealershipNotFound
		}
		if requested != 0 && requested != *actor.DealershipID {
			return 0, internal.ErrPermissionDenied
		}
		id = *actor.DealershipID
	}

	if err := s.subscriptions.EnsureActive(ctx, id); err != nil {
		return 0, err
	}
	return id, nil
}
