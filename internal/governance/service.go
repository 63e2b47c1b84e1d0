package governance

import (
	"context"
	"log/slog"
	"time"

	"github.com/star4ce/star4ce-backend/internal"
	governancedm "github.com/star4ce/star4ce-backend/internal/core/datamodel/governance"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
	"github.com/star4ce/star4ce-backend/internal/core/events"
)

type Service struct {
	repo     Repository
	eventBus *events.EventBus
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// ApproveManager flips is_approved and stamps the approver. One-shot:
// approving an already-approved manager is an error, not a no-op.
func (s *Service) ApproveManager(ctx context.Context, actor *userdm.User, managerID int64) error {
	if !actor.IsAdmin() && !actor.IsCorporate() {
		return internal.ErrPermissionDenied
	}

	manager, err := s.repo.GetUserByID(managerID)
	if err != nil {
		return internal.NewInternalError("failed to load user", err)
	}
	if manager == nil {
		return internal.ErrUserNotFound
	}
	if !manager.IsManager() {
		return internal.NewValidationError("user is not a manager", internal.ErrCodeValidationFailed)
	}
	if manager.IsApproved {
		return internal.NewConflictError("manager is already approved", internal.ErrCodeAlreadyApproved)
	}

	if err := s.checkManagerScope(actor, manager); err != nil {
		return err
	}

	now := s.now()
	manager.IsApproved = true
	manager.ApprovedBy = &actor.ID
	manager.ApprovedAt = &now
	if manager.DealershipID == nil && actor.DealershipID != nil {
		manager.DealershipID = actor.DealershipID
	}

	if err := s.repo.UpdateUser(manager); err != nil {
		return internal.NewInternalError("failed to approve manager", err)
	}

	s.eventBus.Publish(ctx, events.NewManagerApprovedEvent(manager.ID, actor.ID))

	s.logger.Info("manager approved", "manager_id", manager.ID, "approved_by", actor.ID)
	return nil
}

// RejectManager deletes the manager record outright.
func (s *Service) RejectManager(ctx context.Context, actor *userdm.User, managerID int64) error {
	if !actor.IsAdmin() && !actor.IsCorporate() {
		return internal.ErrPermissionDenied
	}

	manager, err := s.repo.GetUserByID(managerID)
	if err != nil {
		return internal.NewInternalError("failed to load user", err)
	}
	if manager == nil {
		return internal.ErrUserNotFound
	}
	if !manager.IsManager() {
		return internal.NewValidationError("user is not a manager", internal.ErrCodeValidationFailed)
	}
	if manager.IsApproved {
		return internal.NewConflictError("manager is already approved", internal.ErrCodeAlreadyApproved)
	}

	if err := s.checkManagerScope(actor, manager); err != nil {
		return err
	}

	if err := s.repo.DeleteUser(manager.ID); err != nil {
		return internal.NewInternalError("failed to reject manager", err)
	}

	s.logger.Info("manager rejected", "manager_id", managerID, "rejected_by", actor.ID)
	return nil
}

func (s *Service) ListPendingManagers(actor *userdm.User) ([]userdm.User, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrPermissionDenied
	}
	if actor.DealershipID == nil {
		return nil, internal.ErrDealershipNotFound
	}

	managers, err := s.repo.ListPendingManagers(*actor.DealershipID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list pending managers", err)
	}
	return managers, nil
}

// RequestManagerDealership asks to bind the requesting manager to a
// dealership.
func (s *Service) RequestManagerDealership(actor *userdm.User, dealershipID int64) (*governancedm.ManagerDealershipRequest, error) {
	if !actor.IsManager() {
		return nil, internal.ErrPermissionDenied
	}

	if err := s.ensureDealershipExists(dealershipID); err != nil {
		return nil, err
	}

	req := &governancedm.ManagerDealershipRequest{
		UserID:       actor.ID,
		DealershipID: dealershipID,
		Status:       governancedm.StatusPending,
	}
	if err := s.repo.CreateManagerDealershipRequest(req); err != nil {
		return nil, internal.NewInternalError("failed to create request", err)
	}

	s.logger.Info("manager dealership request created", "request_id", req.ID, "user_id", actor.ID)
	return req, nil
}

func (s *Service) ResolveManagerDealershipRequest(actor *userdm.User, requestID int64, approve bool) error {
	if !actor.IsAdmin() {
		return internal.ErrPermissionDenied
	}

	req, err := s.repo.GetManagerDealershipRequestByID(requestID)
	if err != nil {
		return internal.NewInternalError("failed to load request", err)
	}
	if req == nil {
		return internal.ErrRequestNotFound
	}
	if !governancedm.IsPending(req.Status) {
		return internal.NewConflictError("request has already been resolved", internal.ErrCodeAlreadyApproved)
	}
	if actor.DealershipID == nil || *actor.DealershipID != req.DealershipID {
		return internal.ErrPermissionDenied
	}

	now := s.now()
	req.ResolvedBy = &actor.ID
	req.ResolvedAt = &now

	if approve {
		manager, err := s.repo.GetUserByID(req.UserID)
		if err != nil || manager == nil {
			return internal.ErrUserNotFound
		}
		manager.DealershipID = &req.DealershipID
		if err := s.repo.UpdateUser(manager); err != nil {
			return internal.NewInternalError("failed to bind manager to dealership", err)
		}
		req.Status = governancedm.StatusApproved
	} else {
		req.Status = governancedm.StatusRejected
	}

	if err := s.repo.UpdateManagerDealershipRequest(req); err != nil {
		return internal.NewInternalError("failed to resolve request", err)
	}

	s.logger.Info("manager dealership request resolved",
		"request_id", req.ID, "approved", approve, "resolved_by", actor.ID)
	return nil
}

// RequestDealershipAccess asks to add a dealership to a corporate user's
// accessible set.
func (s *Service) RequestDealershipAccess(actor *userdm.User, dealershipID int64, message string) (*governancedm.DealershipAccessRequest, error) {
	if !actor.IsCorporate() {
		return nil, internal.ErrPermissionDenied
	}

	if err := s.ensureDealershipExists(dealershipID); err != nil {
		return nil, err
	}

	req := &governancedm.DealershipAccessRequest{
		UserID:       actor.ID,
		DealershipID: dealershipID,
		Status:       governancedm.StatusPending,
		Message:      message,
	}
	if err := s.repo.CreateDealershipAccessRequest(req); err != nil {
		return nil, internal.NewInternalError("failed to create request", err)
	}

	s.logger.Info("dealership access request created", "request_id", req.ID, "user_id", actor.ID)
	return req, nil
}

func (s *Service) ResolveDealershipAccessRequest(actor *userdm.User, requestID int64, approve bool) error {
	if !actor.IsAdmin() {
		return internal.ErrPermissionDenied
	}

	req, err := s.repo.GetDealershipAccessRequestByID(requestID)
	if err != nil {
		return internal.NewInternalError("failed to load request", err)
	}
	if req == nil {
		return internal.ErrRequestNotFound
	}
	if !governancedm.IsPending(req.Status) {
		return internal.NewConflictError("request has already been resolved", internal.ErrCodeAlreadyApproved)
	}
	if actor.DealershipID == nil || *actor.DealershipID != req.DealershipID {
		return internal.ErrPermissionDenied
	}

	now := s.now()
	req.ResolvedBy = &actor.ID
	req.ResolvedAt = &now

	if approve {
		assignment := &userdm.CorporateDealership{
			UserID:       req.UserID,
			DealershipID: req.DealershipID,
			AssignedBy:   &actor.ID,
		}
		if err := s.repo.AssignCorporateDealership(assignment); err != nil {
			return internal.NewInternalError("failed to assign dealership", err)
		}
		req.Status = governancedm.StatusApproved
	} else {
		req.Status = governancedm.StatusRejected
	}

	if err := s.repo.UpdateDealershipAccessRequest(req); err != nil {
		return internal.NewInternalError("failed to resolve request", err)
	}

	s.logger.Info("dealership access request resolved",
		"request_id", req.ID, "approved", approve, "resolved_by", actor.ID)
	return nil
}

// RequestAdmin asks for admin rights on a dealership.
func (s *Service) RequestAdmin(actor *userdm.User, dealershipID int64, message string) (*governancedm.AdminRequest, error) {
	if actor.IsAdmin() {
		return nil, internal.NewConflictError("you are already an admin", internal.ErrCodeAlreadyApproved)
	}

	if err := s.ensureDealershipExists(dealershipID); err != nil {
		return nil, err
	}

	req := &governancedm.AdminRequest{
		UserID:       actor.ID,
		DealershipID: dealershipID,
		Status:       governancedm.StatusPending,
		Message:      message,
	}
	if err := s.repo.CreateAdminRequest(req); err != nil {
		return nil, internal.NewInternalError("failed to create request", err)
	}

	s.logger.Info("admin request created", "request_id", req.ID, "user_id", actor.ID)
	return req, nil
}

func (s *Service) ResolveAdminRequest(actor *userdm.User, requestID int64, approve bool) error {
	if !actor.IsAdmin() {
		return internal.ErrPermissionDenied
	}

	req, err := s.repo.GetAdminRequestByID(requestID)
	if err != nil {
		return internal.NewInternalError("failed to load request", err)
	}
	if req == nil {
		return internal.ErrRequestNotFound
	}
	if !governancedm.IsPending(req.Status) {
		return internal.NewConflictError("request has already been resolved", internal.ErrCodeAlreadyApproved)
	}
	if actor.DealershipID == nil || *actor.DealershipID != req.DealershipID {
		return internal.ErrPermissionDenied
	}

	now := s.now()
	req.ResolvedBy = &actor.ID
	req.ResolvedAt = &now

	if approve {
		u, err := s.repo.GetUserByID(req.UserID)
		if err != nil || u == nil {
			return internal.ErrUserNotFound
		}
		u.Role = userdm.RoleAdmin
		u.DealershipID = &req.DealershipID
		u.IsApproved = true
		if err := s.repo.UpdateUser(u); err != nil {
			return internal.NewInternalError("failed to promote user", err)
		}
		req.Status = governancedm.StatusApproved
	} else {
		req.Status = governancedm.StatusRejected
	}

	if err := s.repo.UpdateAdminRequest(req); err != nil {
		return internal.NewInternalError("failed to resolve request", err)
	}

	s.logger.Info("admin request resolved",
		"request_id", req.ID, "approved", approve, "resolved_by", actor.ID)
	return nil
}

// AssignDealershipToCorporate adds a dealership to a corporate user's
// accessible set directly, without a request.
func (s *Service) AssignDealershipToCorporate(actor *userdm.User, corporateUserID, dealershipID int64) error {
	if !actor.IsAdmin() {
		return internal.ErrPermissionDenied
	}
	if actor.DealershipID == nil || *actor.DealershipID != dealershipID {
		return internal.ErrPermissionDenied
	}

	target, err := s.repo.GetUserByID(corporateUserID)
	if err != nil {
		return internal.NewInternalError("failed to load user", err)
	}
	if target == nil {
		return internal.ErrUserNotFound
	}
	if !target.IsCorporate() {
		return internal.NewValidationError("user is not a corporate user", internal.ErrCodeValidationFailed)
	}

	assignment := &userdm.CorporateDealership{
		UserID:       corporateUserID,
		DealershipID: dealershipID,
		AssignedBy:   &actor.ID,
	}
	if err := s.repo.AssignCorporateDealership(assignment); err != nil {
		return internal.NewInternalError("failed to assign dealership", err)
	}

	s.logger.Info("dealership assigned to corporate user",
		"user_id", corporateUserID, "dealership_id", dealershipID, "assigned_by", actor.ID)
	return nil
}

// AccessibleDealershipIDs is the single source of truth for a corporate
// user's scope.
func (s *Service) AccessibleDealershipIDs(userID int64) ([]int64, error) {
	ids, err := s.repo.AccessibleDealershipIDs(userID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load accessible dealerships", err)
	}
	return ids, nil
}

// checkManagerScope restricts admin approvers to managers of (or bound for)
// their own dealership. Corporate approvers are cross-dealership by design.
func (s *Service) checkManagerScope(actor, manager *userdm.User) error {
	if actor.IsCorporate() {
		return nil
	}
	if manager.DealershipID != nil && actor.DealershipID != nil && *manager.DealershipID != *actor.DealershipID {
		return internal.ErrPermissionDenied
	}
	return nil
}

func (s *Service) ensureDealershipExists(dealershipID int64) error {
	d, err := s.repo.GetDealershipByID(dealershipID)
	if err != nil {
		return internal.NewInternalError("failed to load dealership", err)
	}
	if d == nil {
		return internal.ErrDealershipNotFound
	}
	return nil
}
