package permission

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/star4ce/star4ce-backend/internal/auth"
	"github.com/star4ce/star4ce-backend/internal/transport"
	"github.com/star4ce/star4ce-backend/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

type SetRolePermissionDTO struct {
	Role          string `json:"role"`
	PermissionKey string `json:"permission_key"`
	Allowed       bool   `json:"allowed"`
}

type SetUserPermissionDTO struct {
	UserID        int64  `json:"user_id"`
	PermissionKey string `json:"permission_key"`
	Allowed       bool   `json:"allowed"`
}

func (h *Handler) GetMyPermissions(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		h.WriteError(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	perms, err := h.Service.EffectivePermissions(u)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"permissions": perms})
}

func (h *Handler) SetRolePermission(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		h.WriteError(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var dto SetRolePermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.SetRolePermission(u, dto.Role, dto.PermissionKey, dto.Allowed); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "role permission updated"})
}

func (h *Handler) SetUserPermission(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		h.WriteError(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var dto SetUserPermissionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.SetUserPermission(u, dto.UserID, dto.PermissionKey, dto.Allowed); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "user permission updated"})
}

func (h *Handler) ListRoleOverrides(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		h.WriteError(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	role := r.URL.Query().Get("role")
	overrides, err := h.Service.ListRoleOverrides(u, role)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"overrides": overrides})
}

// Require gates a route on a permission key for the authenticated user.
func (h *Handler) Require(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := auth.UserFromContext(r.Context())
			if u == nil {
				h.WriteError(w, http.StatusUnauthorized, "user not found in context")
				return
			}

			allowed, err := h.Service.HasPermission(u, key)
			if err != nil {
				h.WriteAppError(w, err)
				return
			}
			if !allowed {
				h.WriteError(w, http.StatusForbidden, "you do not have permission to perform this action")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
