package employee

import (
	"context"
	"log/slog"
	"time"

	"github.com/star4ce/star4ce-backend/internal"
	employeedm "github.com/star4ce/star4ce-backend/internal/core/datamodel/employee"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
	"github.com/star4ce/star4ce-backend/internal/permission"
)

type Service struct {
	repo          Repository
	permissions   PermissionChecker
	subscriptions SubscriptionGate
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(repo Repository, permissions PermissionChecker, subscriptions SubscriptionGate, logger *slog.Logger) *Service {
	return &Service{
		repo:          repo,
		permissions:   permissions,
		subscriptions: subscriptions,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *Service) Create(ctx context.Context, actor *userdm.User, dto CreateEmployeeDTO) (*employeedm.Employee, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	key := permission.KeyCreateEmployee
	if dto.IsCandidate {
		key = permission.KeyCreateCandidate
	}
	if err := s.authorize(actor, key); err != nil {
		return nil, err
	}

	if actor.DealershipID == nil {
		return nil, internal.ErrDealershipNotFound
	}
	if err := s.subscriptions.EnsureActive(ctx, *actor.DealershipID); err != nil {
		return nil, err
	}

	e := &employeedm.Employee{
		DealershipID: *actor.DealershipID,
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		Email:        dto.Email,
		Phone:        dto.Phone,
		Position:     dto.Position,
		Department:   dto.Department,
		IsCandidate:  dto.IsCandidate,
		Status:       employeedm.StatusActive,
		HiredAt:      dto.HiredAt,
	}

	if err := s.repo.CreateEmployee(e); err != nil {
		return nil, internal.NewInternalError("failed to create employee", err)
	}

	s.logger.Info("employee created",
		"employee_id", e.ID,
		"dealership_id", e.DealershipID,
		"is_candidate", e.IsCandidate,
		"created_by", actor.ID)
	return e, nil
}

func (s *Service) Get(ctx context.Context, actor *userdm.User, id int64) (*employeedm.Employee, error) {
	e, err := s.loadScoped(actor, id)
	if err != nil {
		return nil, err
	}

	key := permission.KeyViewEmployees
	if e.IsCandidate {
		key = permission.KeyViewCandidates
	}
	if err := s.authorize(actor, key); err != nil {
		return nil, err
	}

	return e, nil
}

func (s *Service) Update(ctx context.Context, actor *userdm.User, id int64, dto UpdateEmployeeDTO) (*employeedm.Employee, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	e, err := s.loadScoped(actor, id)
	if err != nil {
		return nil, err
	}

	key := permission.KeyManageEmployee
	if e.IsCandidate {
		key = permission.KeyManageCandidate
	}
	if err := s.authorize(actor, key); err != nil {
		return nil, err
	}

	if err := s.subscriptions.EnsureActive(ctx, e.DealershipID); err != nil {
		return nil, err
	}

	if dto.FirstName != nil {
		e.FirstName = *dto.FirstName
	}
	if dto.LastName != nil {
		e.LastName = *dto.LastName
	}
	if dto.Email != nil {
		e.Email = *dto.Email
	}
	if dto.Phone != nil {
		e.Phone = *dto.Phone
	}
	if dto.Position != nil {
		e.Position = *dto.Position
	}
	if dto.Department != nil {
		e.Department = *dto.Department
	}
	if dto.HiredAt != nil {
		e.HiredAt = dto.HiredAt
	}
	if dto.Status != nil {
		e.Status = *dto.Status
		if *dto.Status == employeedm.StatusTerminated {
			if dto.TerminatedAt != nil {
				e.TerminatedAt = dto.TerminatedAt
			} else {
				now := s.now()
				e.TerminatedAt = &now
			}
		}
	}

	if err := s.repo.UpdateEmployee(e); err != nil {
		return nil, internal.NewInternalError("failed to update employee", err)
	}

	s.logger.Info("employee updated", "employee_id", e.ID, "updated_by", actor.ID)
	return e, nil
}

func (s *Service) Delete(ctx context.Context, actor *userdm.User, id int64) error {
	e, err := s.loadScoped(actor, id)
	if err != nil {
		return err
	}

	key := permission.KeyManageEmployee
	if e.IsCandidate {
		key = permission.KeyManageCandidate
	}
	if err := s.authorize(actor, key); err != nil {
		return err
	}

	if err := s.subscriptions.EnsureActive(ctx, e.DealershipID); err != nil {
		return err
	}

	if err := s.repo.DeleteEmployee(e.ID); err != nil {
		return internal.NewInternalError("failed to delete employee", err)
	}

	s.logger.Info("employee deleted", "employee_id", e.ID, "deleted_by", actor.ID)
	return nil
}

func (s *Service) List(ctx context.Context, actor *userdm.User, dealershipID int64, filter ListFilter) ([]employeedm.Employee, error) {
	key := permission.KeyViewEmployees
	if filter.Candidates != nil && *filter.Candidates {
		key = permission.KeyViewCandidates
	}
	if err := s.authorize(actor, key); err != nil {
		return nil, err
	}

	id, err := s.resolveDealershipScope(actor, dealershipID)
	if err != nil {
		return nil, err
	}

	employees, err := s.repo.ListEmployees(id, filter)
	if err != nil {
		return nil, internal.NewInternalError("failed to list employees", err)
	}
	return employees, nil
}

// ExportCSV returns employee rows ready for CSV encoding. Subscription-gated
// like every other export.
func (s *Service) ExportCSV(ctx context.Context, actor *userdm.User) ([][]string, error) {
	if err := s.authorize(actor, permission.KeyViewEmployees); err != nil {
		return nil, err
	}

	if actor.DealershipID == nil {
		return nil, internal.ErrDealershipNotFound
	}
	if err := s.subscriptions.EnsureActive(ctx, *actor.DealershipID); err != nil {
		return nil, err
	}

	employees, err := s.repo.ListEmployees(*actor.DealershipID, ListFilter{})
	if err != nil {
		return nil, internal.NewInternalError("failed to load employees for export", err)
	}

	rows := make([][]string, 0, len(employees)+1)
	rows = append(rows, []string{"first_name", "last_name", "email", "phone", "position", "department", "status", "is_candidate", "hired_at"})
	for _, e := range employees {
		hiredAt := ""
		if e.HiredAt != nil {
			hiredAt = e.HiredAt.Format(time.DateOnly)
		}
		isCandidate := "false"
		if e.IsCandidate {
			isCandidate = "true"
		}
		rows = append(rows, []string{
			e.FirstName, e.LastName, e.Email, e.Phone,
			e.Position, e.Department, e.Status, isCandidate, hiredAt,
		})
	}

	s.logger.Info("employees exported", "dealership_id", *actor.DealershipID, "count", len(employees), "exported_by", actor.ID)
	return rows, nil
}

func (s *Service) authorize(actor *userdm.User, key string) error {
	allowed, err := s.permissions.HasPermission(actor, key)
	if err != nil {
		return err
	}
	if !allowed {
		if actor.IsManager() && !actor.IsApproved {
			return internal.NewForbiddenError("Your account is pending approval", internal.ErrCodePendingApproval)
		}
		return internal.ErrPermissionDenied
	}

	// Unapproved managers can authenticate but cannot act.
	if actor.IsManager() && !actor.IsApproved {
		return internal.NewForbiddenError("Your account is pending approval", internal.ErrCodePendingApproval)
	}
	return nil
}

func (s *Service) loadScoped(actor *userdm.User, id int64) (*employeedm.Employee, error) {
	e, err := s.repo.GetEmployeeByID(id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load employee", err)
	}
	if e == nil {
		return nil, internal.ErrEmployeeNotFound
	}

	if _, err := s.resolveDealershipScope(actor, e.DealershipID); err != nil {
		return nil, internal.ErrEmployeeNotFound
	}
	return e, nil
}

func (s *Service) resolveDealershipScope(actor *userdm.User, requested int64) (int64, error) {
	if actor.IsCorporate() {
		if requested == 0 {
			return 0, internal.NewValidationError("dealership_id is required", internal.ErrCodeValidationFailed)
		}
		accessible, err := s.repo.IsDealershipAccessible(actor.ID, requested)
		if err != nil {
			return 0, internal.NewInternalError("failed to check dealership access", err)
		}
		if !accessible {
			return 0, internal.ErrPermissionDenied
		}
		return requested, nil
	}

	if actor.DealershipID == nil {
		return 0, internal.ErrDealershipNotFound
	}
	if requested != 0 && requested != *actor.DealershipID {
		return 0, internal.ErrPermissionDenied
	}
	return *actor.DealershipID, nil
}
