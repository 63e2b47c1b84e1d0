package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/star4ce/star4ce-backend/internal"
	billingtypes "github.com/star4ce/star4ce-backend/internal/core/datamodel/billing"
	dealershipdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/dealership"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
	"github.com/star4ce/star4ce-backend/internal/core/events"
)

type Service struct {
	repo     Repository
	billing  BillingAPI
	eventBus *events.EventBus
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, billingAPI BillingAPI, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		billing:  billingAPI,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// IsActive reconciles against the provider before answering. The provider is
// authoritative; local state is a cache that may be stale between webhooks.
func (s *Service) IsActive(ctx context.Context, dealershipID int64) (bool, error) {
	d, err := s.repo.GetDealershipByID(dealershipID)
	if err != nil {
		return false, internal.NewInternalError("failed to load dealership", err)
	}
	if d == nil {
		return false, internal.ErrDealershipNotFound
	}

	s.reconcileDealership(ctx, d)

	return d.IsSubscriptionActive(s.now()), nil
}

// EnsureActive is the gate feature endpoints call before proceeding.
func (s *Service) EnsureActive(ctx context.Context, dealershipID int64) error {
	active, err := s.IsActive(ctx, dealershipID)
	if err != nil {
		return err
	}
	if !active {
		return internal.ErrSubscriptionLapsed
	}
	return nil
}

func (s *Service) Status(ctx context.Context, actor *userdm.User, dealershipID int64) (*StatusResponse, error) {
	id, err := s.resolveDealershipScope(actor, dealershipID)
	if err != nil {
		return nil, err
	}

	d, err := s.repo.GetDealershipByID(id)
	if err != nil {
		return nil, internal.NewInternalError("failed to load dealership", err)
	}
	if d == nil {
		return nil, internal.ErrDealershipNotFound
	}

	s.reconcileDealership(ctx, d)

	return &StatusResponse{
		DealershipID:       d.ID,
		Status:             d.SubscriptionStatus,
		IsActive:           d.IsSubscriptionActive(s.now()),
		TrialEndsAt:        d.TrialEndsAt,
		SubscriptionEndsAt: d.SubscriptionEndsAt,
		CancelAtPeriodEnd:  d.CancelAtPeriodEnd,
		Plan:               d.SubscriptionPlan,
	}, nil
}

// StartCheckout creates a provider checkout session. For actors without a
// dealership, creation is deferred until payment confirmation so abandoned
// checkouts leave no orphaned tenant records. Provider failures are surfaced;
// the user cannot proceed without a session.
func (s *Service) StartCheckout(ctx context.Context, actor *userdm.User, dto StartCheckoutDTO) (*CheckoutResponse, error) {
	metadata := map[string]string{
		"payer_email": actor.Email,
	}

	switch {
	case actor.IsCorporate():
		if dto.DealershipID == 0 {
			return nil, internal.NewValidationError("dealership_id is required for corporate checkout", internal.ErrCodeValidationFailed)
		}
		accessible, err := s.repo.IsDealershipAccessible(actor.ID, dto.DealershipID)
		if err != nil {
			return nil, internal.NewInternalError("failed to check dealership access", err)
		}
		if !accessible {
			return nil, internal.ErrPermissionDenied
		}
		metadata["dealership_id"] = fmt.Sprintf("%d", dto.DealershipID)

	case actor.DealershipID != nil:
		metadata["dealership_id"] = fmt.Sprintf("%d", *actor.DealershipID)

	default:
		// New registrant: the dealership is created by the payment-confirmed
		// webhook, keyed off this metadata.
		if dto.DealershipName != "" {
			metadata["dealership_name"] = dto.DealershipName
		}
	}

	session, err := s.billing.CreateCheckoutSession(ctx, &billingtypes.CheckoutSessionRequest{
		CustomerEmail: actor.Email,
		PriceID:       s.billing.PriceID(),
		SuccessURL:    dto.SuccessURL,
		CancelURL:     dto.CancelURL,
		Metadata:      metadata,
	})
	if err != nil {
		return nil, internal.NewExternalError("failed to create checkout session", internal.ErrCodeBillingProviderError, err)
	}

	s.logger.Info("checkout session created", "user_id", actor.ID, "session_id", session.ID)

	return &CheckoutResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	}, nil
}

// HandlePaymentConfirmed is idempotent: re-delivery of the same event must not
// double-create dealerships or re-promote users beyond the same end state.
// Events older than the last applied billing event are dropped, same as the
// other webhook handlers.
func (s *Service) HandlePaymentConfirmed(ctx context.Context, event *billingtypes.WebhookEvent) error {
	sub := &event.Data.Subscription
	payerEmail := strings.ToLower(strings.TrimSpace(event.Data.CustomerEmail))
	eventTime := event.OccurredAt()

	d, err := s.resolveDealershipForEvent(event, payerEmail)
	if err != nil {
		return err
	}

	if d != nil && d.LastBillingEventAt != nil && eventTime.Before(*d.LastBillingEventAt) {
		s.logger.Info("stale payment confirmation, ignoring",
			"dealership_id", d.ID,
			"event_time", eventTime,
			"last_event_time", *d.LastBillingEventAt)
		return nil
	}

	if d == nil {
		name := event.Data.DealershipName
		if name == "" {
			name = fmt.Sprintf("Dealership (%s)", payerEmail)
		}
		d = dealershipdm.NewTrial(name, s.now())
		if err := s.repo.CreateDealership(d); err != nil {
			return internal.NewInternalError("failed to create dealership", err)
		}
		s.logger.Info("dealership created from payment confirmation", "dealership_id", d.ID)
	}

	periodEnd := s.periodEndOrFallback(sub)

	d.SubscriptionStatus = dealershipdm.StatusActive
	d.TrialEndsAt = nil
	d.SubscriptionEndsAt = &periodEnd
	d.CancelAtPeriodEnd = false
	if sub.CustomerID != "" {
		d.BillingCustomerID = &sub.CustomerID
	}
	if sub.ID != "" {
		d.BillingSubscriptionID = &sub.ID
	}
	if sub.PlanID != "" {
		d.SubscriptionPlan = &sub.PlanID
	}
	d.LastBillingEventAt = &eventTime

	if err := s.repo.UpdateDealership(d); err != nil {
		return internal.NewInternalError("failed to update dealership", err)
	}

	if payerEmail != "" {
		if err := s.promotePayer(payerEmail, d.ID); err != nil {
			s.logger.Error("failed to promote payer", "email_domain", emailDomain(payerEmail), "error", err)
		}
	}

	s.eventBus.Publish(ctx, events.NewSubscriptionActivatedEvent(d.ID, sub.CustomerID, sub.ID, payerEmail))

	s.logger.Info("payment confirmed", "dealership_id", d.ID, "subscription_id", sub.ID)
	return nil
}

// HandleStatusChanged maps the provider's status onto ours. Events older than
// the last applied billing event are dropped so a late stale webhook cannot
// regress newer state.
func (s *Service) HandleStatusChanged(ctx context.Context, event *billingtypes.WebhookEvent) error {
	sub := &event.Data.Subscription

	d, err := s.resolveDealershipForEvent(event, "")
	if err != nil {
		return err
	}
	if d == nil {
		s.logger.Warn("status change for unknown dealership, ignoring", "subscription_id", sub.ID)
		return nil
	}

	status, ok := mapProviderStatus(sub.Status)
	if !ok {
		s.logger.Info("unknown provider status, ignoring", "provider_status", sub.Status)
		return nil
	}

	eventTime := event.OccurredAt()
	if !s.applyStatus(d, status, sub, eventTime) {
		return nil
	}

	if err := s.repo.UpdateDealership(d); err != nil {
		return internal.NewInternalError("failed to update dealership", err)
	}

	if status == dealershipdm.StatusPastDue {
		s.eventBus.Publish(ctx, events.BaseEvent{
			Type:      events.EventTypeSubscriptionPastDue,
			Timestamp: s.now(),
			Data:      map[string]interface{}{"dealership_id": d.ID},
		})
	}

	s.logger.Info("subscription status changed", "dealership_id", d.ID, "status", status)
	return nil
}

func (s *Service) HandleCanceled(ctx context.Context, event *billingtypes.WebhookEvent) error {
	sub := &event.Data.Subscription

	d, err := s.resolveDealershipForEvent(event, "")
	if err != nil {
		return err
	}
	if d == nil {
		s.logger.Warn("cancellation for unknown dealership, ignoring", "subscription_id", sub.ID)
		return nil
	}

	eventTime := event.OccurredAt()
	if d.LastBillingEventAt != nil && eventTime.Before(*d.LastBillingEventAt) {
		s.logger.Info("stale cancellation event, ignoring", "dealership_id", d.ID)
		return nil
	}

	periodEnd := s.periodEndOrFallback(sub)
	d.SubscriptionStatus = dealershipdm.StatusCanceled
	d.SubscriptionEndsAt = &periodEnd
	d.CancelAtPeriodEnd = false
	d.LastBillingEventAt = &eventTime

	if err := s.repo.UpdateDealership(d); err != nil {
		return internal.NewInternalError("failed to update dealership", err)
	}

	s.eventBus.Publish(ctx, events.NewSubscriptionCanceledEvent(d.ID, &periodEnd, false))

	s.logger.Info("subscription canceled by provider", "dealership_id", d.ID)
	return nil
}

// Cancel cancels the subscription at the provider. With atPeriodEnd the
// dealership stays active with a pending-cancellation flag and a cutover date;
// otherwise it flips to canceled immediately.
func (s *Service) Cancel(ctx context.Context, actor *userdm.User, dto CancelDTO) error {
	id, err := s.resolveDealershipScope(actor, dto.DealershipID)
	if err != nil {
		return err
	}

	d, err := s.repo.GetDealershipByID(id)
	if err != nil {
		return internal.NewInternalError("failed to load dealership", err)
	}
	if d == nil {
		return internal.ErrDealershipNotFound
	}
	if d.BillingSubscriptionID == nil {
		return internal.NewConflictError("dealership has no billing subscription", internal.ErrCodeInvalidSubscriptionState)
	}

	sub, err := s.billing.CancelSubscription(ctx, *d.BillingSubscriptionID, dto.AtPeriodEnd)
	if err != nil {
		return internal.NewExternalError("failed to cancel subscription", internal.ErrCodeBillingProviderError, err)
	}

	now := s.now()
	if dto.AtPeriodEnd {
		periodEnd := s.periodEndOrFallback(sub)
		d.CancelAtPeriodEnd = true
		d.SubscriptionEndsAt = &periodEnd
	} else {
		d.SubscriptionStatus = dealershipdm.StatusCanceled
		d.SubscriptionEndsAt = &now
		d.CancelAtPeriodEnd = false
	}
	d.LastBillingEventAt = &now

	if err := s.repo.UpdateDealership(d); err != nil {
		return internal.NewInternalError("failed to update dealership", err)
	}

	s.eventBus.Publish(ctx, events.NewSubscriptionCanceledEvent(d.ID, d.SubscriptionEndsAt, dto.AtPeriodEnd))

	s.logger.Info("subscription canceled", "dealership_id", d.ID, "at_period_end", dto.AtPeriodEnd, "actor_id", actor.ID)
	return nil
}

// Resume is only valid while active with a pending cancellation.
func (s *Service) Resume(ctx context.Context, actor *userdm.User, dealershipID int64) error {
	id, err := s.resolveDealershipScope(actor, dealershipID)
	if err != nil {
		return err
	}

	d, err := s.repo.GetDealershipByID(id)
	if err != nil {
		return internal.NewInternalError("failed to load dealership", err)
	}
	if d == nil {
		return internal.ErrDealershipNotFound
	}

	if d.SubscriptionStatus != dealershipdm.StatusActive || !d.CancelAtPeriodEnd {
		return internal.NewConflictError("subscription has no pending cancellation to resume", internal.ErrCodeInvalidSubscriptionState)
	}
	if d.BillingSubscriptionID == nil {
		return internal.NewConflictError("dealership has no billing subscription", internal.ErrCodeInvalidSubscriptionState)
	}

	sub, err := s.billing.ResumeSubscription(ctx, *d.BillingSubscriptionID)
	if err != nil {
		return internal.NewExternalError("failed to resume subscription", internal.ErrCodeBillingProviderError, err)
	}

	now := s.now()
	periodEnd := s.periodEndOrFallback(sub)
	d.CancelAtPeriodEnd = false
	d.SubscriptionEndsAt = &periodEnd
	d.LastBillingEventAt = &now

	if err := s.repo.UpdateDealership(d); err != nil {
		return internal.NewInternalError("failed to update dealership", err)
	}

	s.logger.Info("subscription resumed", "dealership_id", d.ID, "actor_id", actor.ID)
	return nil
}

// Reconcile re-derives local state from the provider for one dealership. This
// is the explicit operation the poller and profile flows call instead of
// embedding billing reconciliation into unrelated reads.
func (s *Service) Reconcile(ctx context.Context, dealershipID int64) error {
	d, err := s.repo.GetDealershipByID(dealershipID)
	if err != nil {
		return internal.NewInternalError("failed to load dealership", err)
	}
	if d == nil {
		return internal.ErrDealershipNotFound
	}

	s.reconcileDealership(ctx, d)
	return nil
}

// ApplyProviderState is the reconcile entry point for the billing worker pool.
func (s *Service) ApplyProviderState(dealershipID int64, sub *billingtypes.Subscription) error {
	d, err := s.repo.GetDealershipByID(dealershipID)
	if err != nil || d == nil {
		return internal.ErrDealershipNotFound
	}

	status, ok := mapProviderStatus(sub.Status)
	if !ok {
		return nil
	}

	if !s.applyStatus(d, status, sub, s.now()) {
		return nil
	}

	if err := s.repo.UpdateDealership(d); err != nil {
		return internal.NewInternalError("failed to update dealership", err)
	}
	return nil
}

// ExpireLapsedTrials flips trial dealerships whose window has passed to
// expired. Run by the periodic worker; entitlement checks are lazy and do not
// depend on it.
func (s *Service) ExpireLapsedTrials(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireLapsedTrials(s.now())
	if err != nil {
		return 0, internal.NewInternalError("failed to expire lapsed trials", err)
	}
	if n > 0 {
		s.logger.Info("expired lapsed trials", "count", n)
	}
	return n, nil
}

// ListForReconciliation returns dealerships with a provider subscription for
// the polling worker.
func (s *Service) ListForReconciliation() ([]dealershipdm.Dealership, error) {
	return s.repo.ListDealershipsWithBilling()
}

func (s *Service) VerifyWebhookSignature(payload []byte, signature string) bool {
	return s.billing.VerifyWebhookSignature(payload, signature)
}

// reconcileDealership queries the provider and lazily folds the result into
// local state. Provider failures fall back to local state; staleness is
// preferable to an outage cascading into every entitlement check.
func (s *Service) reconcileDealership(ctx context.Context, d *dealershipdm.Dealership) {
	if d.BillingSubscriptionID == nil {
		return
	}

	sub, err := s.billing.GetSubscription(ctx, *d.BillingSubscriptionID)
	if err != nil {
		s.logger.Warn("reconciliation against provider failed, using local state",
			"dealership_id", d.ID, "error", err)
		return
	}

	status, ok := mapProviderStatus(sub.Status)
	if !ok {
		return
	}

	if !s.applyStatus(d, status, sub, s.now()) {
		return
	}

	if err := s.repo.UpdateDealership(d); err != nil {
		s.logger.Error("failed to persist reconciled state", "dealership_id", d.ID, "error", err)
	}
}

// applyStatus folds a mapped provider status into the dealership, honoring
// the monotonic last-billing-event guard. Returns false when nothing changed
// or the event is stale.
func (s *Service) applyStatus(d *dealershipdm.Dealership, status string, sub *billingtypes.Subscription, eventTime time.Time) bool {
	if d.LastBillingEventAt != nil && eventTime.Before(*d.LastBillingEventAt) {
		s.logger.Info("stale billing event, ignoring",
			"dealership_id", d.ID,
			"event_time", eventTime,
			"last_event_time", *d.LastBillingEventAt)
		return false
	}

	periodEnd := s.periodEndOrFallback(sub)
	changed := false

	if d.SubscriptionStatus != status {
		d.SubscriptionStatus = status
		changed = true
	}
	if status == dealershipdm.StatusActive && d.TrialEndsAt != nil {
		d.TrialEndsAt = nil
		changed = true
	}
	if d.SubscriptionEndsAt == nil || !d.SubscriptionEndsAt.Equal(periodEnd) {
		d.SubscriptionEndsAt = &periodEnd
		changed = true
	}
	if d.CancelAtPeriodEnd != sub.CancelAtPeriodEnd {
		d.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		changed = true
	}

	if changed {
		d.LastBillingEventAt = &eventTime
	}
	return changed
}

func (s *Service) resolveDealershipForEvent(event *billingtypes.WebhookEvent, payerEmail string) (*dealershipdm.Dealership, error) {
	sub := &event.Data.Subscription

	if sub.CustomerID != "" {
		d, err := s.repo.GetDealershipByCustomerID(sub.CustomerID)
		if err != nil {
			return nil, internal.NewInternalError("failed to look up dealership by customer", err)
		}
		if d != nil {
			return d, nil
		}
	}

	if sub.ID != "" {
		d, err := s.repo.GetDealershipBySubscriptionID(sub.ID)
		if err != nil {
			return nil, internal.NewInternalError("failed to look up dealership by subscription", err)
		}
		if d != nil {
			return d, nil
		}
	}

	if payerEmail != "" {
		u, err := s.repo.GetUserByEmail(payerEmail)
		if err == nil && u != nil && u.DealershipID != nil {
			d, err := s.repo.GetDealershipByID(*u.DealershipID)
			if err != nil {
				return nil, internal.NewInternalError("failed to look up payer dealership", err)
			}
			return d, nil
		}
	}

	return nil, nil
}

// promotePayer makes the paying user the dealership admin. Idempotent: a user
// already admin of the dealership is left untouched.
func (s *Service) promotePayer(email string, dealershipID int64) error {
	u, err := s.repo.GetUserByEmail(email)
	if err != nil || u == nil {
		return fmt.Errorf("payer not found")
	}

	if u.Role == userdm.RoleAdmin && u.DealershipID != nil && *u.DealershipID == dealershipID {
		return nil
	}

	u.Role = userdm.RoleAdmin
	u.DealershipID = &dealershipID
	u.IsApproved = true

	if err := s.repo.UpdateUser(u); err != nil {
		return err
	}

	s.logger.Info("payer promoted to admin", "user_id", u.ID, "dealership_id", dealershipID)
	return nil
}

// resolveDealershipScope authorizes the actor's access to a dealership and
// returns the effective id: admins and managers operate on their own
// dealership, corporate users on any dealership in their accessible set.
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

func (s *Service) periodEndOrFallback(sub *billingtypes.Subscription) time.Time {
	if sub != nil && sub.CurrentPeriodEnd > 0 {
		return sub.PeriodEnd()
	}
	return s.now().Add(FallbackPeriod)
}

func emailDomain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[i+1:]
	}
	return ""
}
