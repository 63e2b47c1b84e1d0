package permission

import (
	"log/slog"

	"github.com/star4ce/star4ce-backend/internal"
	permdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/permission"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

// Repository is the persistence surface for permission overrides. Lookups
// return nil when no override row exists.
type Repository interface {
	GetUserOverride(userID int64, key string) (*permdm.UserPermission, error)
	GetRoleOverride(dealershipID int64, role, key string) (*permdm.RolePermission, error)
	ListUserOverrides(userID int64) ([]permdm.UserPermission, error)
	ListRoleOverrides(dealershipID int64, role string) ([]permdm.RolePermission, error)
	UpsertRolePermission(p *permdm.RolePermission) error
	UpsertUserPermission(p *permdm.UserPermission) error
	GetUserByID(id int64) (*userdm.User, error)
}

type ServiceAPI interface {
	HasPermission(u *userdm.User, key string) (bool, error)
	EffectivePermissions(u *userdm.User) (map[string]bool, error)
	SetRolePermission(actor *userdm.User, role, key string, allowed bool) error
	SetUserPermission(actor *userdm.User, targetUserID int64, key string, allowed bool) error
	ListRoleOverrides(actor *userdm.User, role string) ([]permdm.RolePermission, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// HasPermission resolves the effective boolean for a user and key.
// Resolution order: admin always allows; managers consult their user-level
// override, then the dealership's role-level override, then the hard-coded
// default; corporate users skip the user-level layer.
func (s *Service) HasPermission(u *userdm.User, key string) (bool, error) {
	if !IsValidKey(key) {
		return false, internal.NewValidationError("unknown permission key", internal.ErrCodeValidationFailed)
	}

	if u.IsAdmin() {
		return true, nil
	}

	if u.IsManager() {
		override, err := s.repo.GetUserOverride(u.ID, key)
		if err != nil {
			return false, internal.NewInternalError("failed to load user permission override", err)
		}
		if override != nil {
			return override.Allowed, nil
		}
	}

	if u.DealershipID != nil {
		roleOverride, err := s.repo.GetRoleOverride(*u.DealershipID, u.Role, key)
		if err != nil {
			return false, internal.NewInternalError("failed to load role permission override", err)
		}
		if roleOverride != nil {
			return roleOverride.Allowed, nil
		}
	}

	return DefaultFor(u.Role, key), nil
}

// EffectivePermissions resolves every key for a user, for dashboards and the
// profile endpoint.
func (s *Service) EffectivePermissions(u *userdm.User) (map[string]bool, error) {
	result := make(map[string]bool, len(AllKeys))

	if u.IsAdmin() {
		for _, key := range AllKeys {
			result[key] = true
		}
		return result, nil
	}

	for _, key := range AllKeys {
		result[key] = DefaultFor(u.Role, key)
	}

	if u.DealershipID != nil {
		roleOverrides, err := s.repo.ListRoleOverrides(*u.DealershipID, u.Role)
		if err != nil {
			return nil, internal.NewInternalError("failed to load role permission overrides", err)
		}
		for _, o := range roleOverrides {
			if IsValidKey(o.PermissionKey) {
				result[o.PermissionKey] = o.Allowed
			}
		}
	}

	if u.IsManager() {
		userOverrides, err := s.repo.ListUserOverrides(u.ID)
		if err != nil {
			return nil, internal.NewInternalError("failed to load user permission overrides", err)
		}
		for _, o := range userOverrides {
			if IsValidKey(o.PermissionKey) {
				result[o.PermissionKey] = o.Allowed
			}
		}
	}

	return result, nil
}

// SetRolePermission writes a dealership-scoped role override. Admin-only, and
// the admin role itself cannot be overridden.
func (s *Service) SetRolePermission(actor *userdm.User, role, key string, allowed bool) error {
	if !actor.IsAdmin() {
		return internal.ErrPermissionDenied
	}
	if actor.DealershipID == nil {
		return internal.ErrDealershipNotFound
	}
	if role == userdm.RoleAdmin || (role != userdm.RoleManager && role != userdm.RoleCorporate) {
		return internal.NewValidationError("role must be manager or corporate", internal.ErrCodeValidationFailed)
	}
	if !IsValidKey(key) {
		return internal.NewValidationError("unknown permission key", internal.ErrCodeValidationFailed)
	}

	p := &permdm.RolePermission{
		DealershipID:  *actor.DealershipID,
		Role:          role,
		PermissionKey: key,
		Allowed:       allowed,
		UpdatedBy:     &actor.ID,
	}

	if err := s.repo.UpsertRolePermission(p); err != nil {
		return internal.NewInternalError("failed to save role permission", err)
	}

	s.logger.Info("role permission updated",
		"dealership_id", *actor.DealershipID,
		"role", role,
		"key", key,
		"allowed", allowed,
		"updated_by", actor.ID)
	return nil
}

// SetUserPermission writes a per-user override for a manager in the admin's
// own dealership.
func (s *Service) SetUserPermission(actor *userdm.User, targetUserID int64, key string, allowed bool) error {
	if !actor.IsAdmin() {
		return internal.ErrPermissionDenied
	}
	if !IsValidKey(key) {
		return internal.NewValidationError("unknown permission key", internal.ErrCodeValidationFailed)
	}

	target, err := s.repo.GetUserByID(targetUserID)
	if err != nil {
		return internal.NewInternalError("failed to load user", err)
	}
	if target == nil {
		return internal.ErrUserNotFound
	}
	if !target.IsManager() {
		return internal.NewValidationError("per-user overrides only apply to managers", internal.ErrCodeValidationFailed)
	}
	if actor.DealershipID == nil || target.DealershipID == nil || *actor.DealershipID != *target.DealershipID {
		return internal.ErrPermissionDenied
	}

	p := &permdm.UserPermission{
		UserID:        targetUserID,
		PermissionKey: key,
		Allowed:       allowed,
		GrantedBy:     &actor.ID,
	}

	if err := s.repo.UpsertUserPermission(p); err != nil {
		return internal.NewInternalError("failed to save user permission", err)
	}

	s.logger.Info("user permission updated",
		"user_id", targetUserID,
		"key", key,
		"allowed", allowed,
		"granted_by", actor.ID)
	return nil
}

func (s *Service) ListRoleOverrides(actor *userdm.User, role string) ([]permdm.RolePermission, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrPermissionDenied
	}
	if actor.DealershipID == nil {
		return nil, internal.ErrDealershipNotFound
	}

	overrides, err := s.repo.ListRoleOverrides(*actor.DealershipID, role)
	if err != nil {
		return nil, internal.NewInternalError("failed to load role permission overrides", err)
	}
	return overrides, nil
}
