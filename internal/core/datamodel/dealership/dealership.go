package dealership

import (
	"time"
)

const (
	StatusTrial   = "trial"
	StatusActive  = "active"
	StatusPastDue = "past_due"
	StatusCanceled = "canceled"
	StatusExpired  = "expired"
)

// TrialDuration is granted to self-provisioned dealerships.
const TrialDuration = 14 * 24 * time.Hour

// Dealership is the tenant and billing unit. Local subscription fields are a
// cache of the billing provider's state; LastBillingEventAt guards against a
// late-arriving stale webhook regressing a newer state.
type Dealership struct {
	ID      int64  `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"not null" json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `gorm:"column:zip_code" json:"zip_code"`

	BillingCustomerID     *string    `gorm:"column:billing_customer_id" json:"-"`
	BillingSubscriptionID *string    `gorm:"column:billing_subscription_id" json:"-"`
	SubscriptionStatus    string     `gorm:"column:subscription_status;default:'trial'" json:"subscription_status"`
	SubscriptionPlan      *string    `gorm:"column:subscription_plan" json:"subscription_plan,omitempty"`
	TrialEndsAt           *time.Time `gorm:"column:trial_ends_at" json:"trial_ends_at,omitempty"`
	SubscriptionEndsAt    *time.Time `gorm:"column:subscription_ends_at" json:"subscription_ends_at,omitempty"`
	CancelAtPeriodEnd     bool       `gorm:"column:cancel_at_period_end;default:false" json:"cancel_at_period_end"`
	LastBillingEventAt    *time.Time `gorm:"column:last_billing_event_at" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Dealership) TableName() string {
	return "dealerships"
}

// IsSubscriptionActive reports entitlement from local state alone: a live
// trial, or an active subscription. Every other status is not entitled.
func (d *Dealership) IsSubscriptionActive(now time.Time) bool {
	if d.SubscriptionStatus == StatusTrial {
		return d.TrialEndsAt != nil && now.Before(*d.TrialEndsAt)
	}
	return d.SubscriptionStatus == StatusActive
}

// NewTrial builds a fresh dealership with a running trial window.
func NewTrial(name string, now time.Time) *Dealership {
	trialEnd := now.Add(TrialDuration)
	return &Dealership{
		Name:               name,
		SubscriptionStatus: StatusTrial,
		TrialEndsAt:        &trialEnd,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
