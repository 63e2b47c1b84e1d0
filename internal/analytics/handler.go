package analytics

import (
	"log/slog"
	"net/http"
	"strconv"

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

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		h.WriteError(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	summary, err := h.Service.Summary(r.Context(), u, h.dealershipID(r))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) TimeSeries(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		h.WriteError(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid days parameter")
			return
		}
		days = parsed
	}

	points, err := h.Service.TimeSeries(r.Context(), u, h.dealershipID(r), days)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"points": points})
}

func (h *Handler) Averages(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		h.WriteError(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	averages, err := h.Service.Averages(r.Context(), u, h.dealershipID(r))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"averages": averages})
}

func (h *Handler) RoleBreakdown(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		h.WriteError(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	rows, err := h.Service.RoleBreakdown(r.Context(), u, h.dealershipID(r))
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"breakdown": rows})
}

func (h *Handler) dealershipID(r *http.Request) int64 {
	raw := r.URL.Query().Get("dealership_id")
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
