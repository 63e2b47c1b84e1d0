package subscription

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/star4ce/star4ce-backend/internal/auth"
	billingtypes "github.com/star4ce/star4ce-backend/internal/core/datamodel/billing"
	"github.com/star4ce/star4ce-backend/internal/transport"
	"github.com/star4ce/star4ce-backend/pkg/logger"
)

// SignatureHeader carries the provider's HMAC over the raw webhook payload.
const SignatureHeader = "X-Billing-Signature"

const maxWebhookBody = 1 << 20

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

func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		h.WriteError(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var dto StartCheckoutDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Service.StartCheckout(r.Context(), u, dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		h.WriteError(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var dealershipID int64
	if raw := r.URL.Query().Get("dealership_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "invalid dealership_id")
			return
		}
		dealershipID = parsed
	}

	status, err := h.Service.Status(r.Context(), u, dealershipID)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, status)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		h.WriteError(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var dto CancelDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.Cancel(r.Context(), u, dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "subscription canceled"})
}

func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		h.WriteError(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var dto CancelDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.Resume(r.Context(), u, dto.DealershipID); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "subscription resumed"})
}

// Webhook is authenticated by the provider's signature over the raw body, not
// a bearer token. Handlers are idempotent; unknown event types are
// acknowledged and ignored so the provider stops retrying.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if !h.Service.VerifyWebhookSignature(payload, signature) {
		h.Logger.Warn("webhook signature verification failed")
		h.WriteError(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	var event billingtypes.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	h.Logger.Info("webhook received", "event_id", event.ID, "event_type", event.Type)

	switch event.Type {
	case billingtypes.WebhookTypePaymentConfirmed:
		err = h.Service.HandlePaymentConfirmed(r.Context(), &event)
	case billingtypes.WebhookTypeSubscriptionUpdate:
		err = h.Service.HandleStatusChanged(r.Context(), &event)
	case billingtypes.WebhookTypeSubscriptionDelete:
		err = h.Service.HandleCanceled(r.Context(), &event)
	default:
		h.Logger.Info("unknown webhook event type, acknowledging", "event_type", event.Type)
		h.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err != nil {
		h.Logger.Error("webhook processing failed", "event_id", event.ID, "error", err)
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
