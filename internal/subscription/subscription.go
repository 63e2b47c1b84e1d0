package subscription

import (
	"context"
	"time"

	billingtypes "github.com/star4ce/star4ce-backend/internal/core/datamodel/billing"
	dealershipdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/dealership"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

// FallbackPeriod is used when the provider does not report a period end.
const FallbackPeriod = 30 * 24 * time.Hour

// Repository is the persistence surface for subscription state.
type Repository interface {
	GetDealershipByID(id int64) (*dealershipdm.Dealership, error)
	GetDealershipByCustomerID(customerID string) (*dealershipdm.Dealership, error)
	GetDealershipBySubscriptionID(subscriptionID string) (*dealershipdm.Dealership, error)
	CreateDealership(d *dealershipdm.Dealership) error
	UpdateDealership(d *dealershipdm.Dealership) error
	ListDealershipsWithBilling() ([]dealershipdm.Dealership, error)
	ExpireLapsedTrials(now time.Time) (int64, error)

	GetUserByEmail(email string) (*userdm.User, error)
	UpdateUser(u *userdm.User) error
	IsDealershipAccessible(userID, dealershipID int64) (bool, error)
}

// BillingAPI is the slice of the billing provider client the service uses.
type BillingAPI interface {
	CreateCheckoutSession(ctx context.Context, req *billingtypes.CheckoutSessionRequest) (*billingtypes.CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*billingtypes.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*billingtypes.Subscription, error)
	ResumeSubscription(ctx context.Context, subscriptionID string) (*billingtypes.Subscription, error)
	VerifyWebhookSignature(payload []byte, signature string) bool
	PriceID() string
}

type ServiceAPI interface {
	IsActive(ctx context.Context, dealershipID int64) (bool, error)
	EnsureActive(ctx context.Context, dealershipID int64) error
	Status(ctx context.Context, actor *userdm.User, dealershipID int64) (*StatusResponse, error)
	StartCheckout(ctx context.Context, actor *userdm.User, dto StartCheckoutDTO) (*CheckoutResponse, error)
	Cancel(ctx context.Context, actor *userdm.User, dto CancelDTO) error
	Resume(ctx context.Context, actor *userdm.User, dealershipID int64) error
	Reconcile(ctx context.Context, dealershipID int64) error

	HandlePaymentConfirmed(ctx context.Context, event *billingtypes.WebhookEvent) error
	HandleStatusChanged(ctx context.Context, event *billingtypes.WebhookEvent) error
	HandleCanceled(ctx context.Context, event *billingtypes.WebhookEvent) error

	VerifyWebhookSignature(payload []byte, signature string) bool
}

type StartCheckoutDTO struct {
	DealershipID   int64  `json:"dealership_id,omitempty"`
	DealershipName string `json:"dealership_name,omitempty"`
	SuccessURL     string `json:"success_url,omitempty"`
	CancelURL      string `json:"cancel_url,omitempty"`
}

type CancelDTO struct {
	DealershipID int64 `json:"dealership_id,omitempty"`
	AtPeriodEnd  bool  `json:"at_period_end"`
}

type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

type StatusResponse struct {
	DealershipID       int64      `json:"dealership_id"`
	Status             string     `json:"status"`
	IsActive           bool       `json:"is_active"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	Plan               *string    `json:"plan,omitempty"`
}

// mapProviderStatus translates the provider's vocabulary into ours. Trial is
// never a mapping target; it is only set locally at dealership creation.
func mapProviderStatus(providerStatus string) (string, bool) {
	switch providerStatus {
	case billingtypes.ProviderStatusActive:
		return dealershipdm.StatusActive, true
	case billingtypes.ProviderStatusPastDue, billingtypes.ProviderStatusUnpaid:
		return dealershipdm.StatusPastDue, true
	case billingtypes.ProviderStatusCanceled:
		return dealershipdm.StatusCanceled, true
	default:
		return "", false
	}
}
