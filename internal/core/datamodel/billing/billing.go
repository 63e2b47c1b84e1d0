package billing

import (
	"fmt"
	"time"
)

// Provider-side subscription statuses. These are the billing provider's
// vocabulary, not ours; the subscription service maps them onto dealership
// statuses and never maps any of them back to trial.
const (
	ProviderStatusActive   = "active"
	ProviderStatusPastDue  = "past_due"
	ProviderStatusUnpaid   = "unpaid"
	ProviderStatusCanceled = "canceled"
)

type CheckoutSessionRequest struct {
	CustomerEmail string            `json:"customer_email"`
	PriceID       string            `json:"price_id"`
	SuccessURL    string            `json:"success_url"`
	CancelURL     string            `json:"cancel_url"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func (r *CheckoutSessionRequest) Validate() error {
	if r.CustomerEmail == "" {
		return fmt.Errorf("customer_email is required")
	}
	if r.PriceID == "" {
		return fmt.Errorf("price_id is required")
	}
	return nil
}

type CheckoutSession struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	CustomerID  string `json:"customer"`
	PriceID     string `json:"price_id"`
	PayerEmail  string `json:"customer_email"`
}

type Subscription struct {
	ID                string `json:"id"`
	CustomerID        string `json:"customer"`
	Status            string `json:"status"`
	PlanID            string `json:"plan_id"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}

// PeriodEnd converts the provider's unix timestamp to time.Time.
func (s *Subscription) PeriodEnd() time.Time {
	return time.Unix(s.CurrentPeriodEnd, 0).UTC()
}

// WebhookEvent is the envelope the provider POSTs to our webhook endpoint.
type WebhookEvent struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	CreatedAt int64        `json:"created_at"`
	Data      WebhookData  `json:"data"`
}

type WebhookData struct {
	Subscription   Subscription      `json:"subscription"`
	CustomerEmail  string            `json:"customer_email"`
	DealershipName string            `json:"dealership_name"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func (e *WebhookEvent) OccurredAt() time.Time {
	return time.Unix(e.CreatedAt, 0).UTC()
}

const (
	WebhookTypePaymentConfirmed   = "checkout.completed"
	WebhookTypeSubscriptionUpdate = "subscription.updated"
	WebhookTypeSubscriptionDelete = "subscription.deleted"
)
