package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/star4ce/star4ce-backend/internal"
	billingtypes "github.com/star4ce/star4ce-backend/internal/core/datamodel/billing"
	dealershipdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/dealership"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
	"github.com/star4ce/star4ce-backend/internal/core/events"
	"github.com/star4ce/star4ce-backend/pkg/logger"
)

func TestSubscription(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Subscription Module Suite")
}

type mockDealershipRepository struct {
	dealerships map[int64]*dealershipdm.Dealership
	users       map[string]*userdm.User
	accessible  map[int64]map[int64]bool
	nextID      int64
	createCount int
}

func newMockDealershipRepository() *mockDealershipRepository {
	return &mockDealershipRepository{
		dealerships: map[int64]*dealershipdm.Dealership{},
		users:       map[string]*userdm.User{},
		accessible:  map[int64]map[int64]bool{},
		nextID:      1,
	}
}

func (m *mockDealershipRepository) GetDealershipByID(id int64) (*dealershipdm.Dealership, error) {
	return m.dealerships[id], nil
}

func (m *mockDealershipRepository) GetDealershipByCustomerID(customerID string) (*dealershipdm.Dealership, error) {
	for _, d := range m.dealerships {
		if d.BillingCustomerID != nil && *d.BillingCustomerID == customerID {
			return d, nil
		}
	}
	return nil, nil
}

func (m *mockDealershipRepository) GetDealershipBySubscriptionID(subscriptionID string) (*dealershipdm.Dealership, error) {
	for _, d := range m.dealerships {
		if d.BillingSubscriptionID != nil && *d.BillingSubscriptionID == subscriptionID {
			return d, nil
		}
	}
	return nil, nil
}

func (m *mockDealershipRepository) CreateDealership(d *dealershipdm.Dealership) error {
	d.ID = m.nextID
	m.nextID++
	m.createCount++
	m.dealerships[d.ID] = d
	return nil
}

func (m *mockDealershipRepository) UpdateDealership(d *dealershipdm.Dealership) error {
	m.dealerships[d.ID] = d
	return nil
}

func (m *mockDealershipRepository) ListDealershipsWithBilling() ([]dealershipdm.Dealership, error) {
	var out []dealershipdm.Dealership
	for _, d := range m.dealerships {
		if d.BillingSubscriptionID != nil {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *mockDealershipRepository) ExpireLapsedTrials(now time.Time) (int64, error) {
	var n int64
	for _, d := range m.dealerships {
		if d.SubscriptionStatus == dealershipdm.StatusTrial && d.TrialEndsAt != nil && now.After(*d.TrialEndsAt) {
			d.SubscriptionStatus = dealershipdm.StatusExpired
			n++
		}
	}
	return n, nil
}

func (m *mockDealershipRepository) GetUserByEmail(email string) (*userdm.User, error) {
	return m.users[email], nil
}

func (m *mockDealershipRepository) UpdateUser(u *userdm.User) error {
	m.users[u.Email] = u
	return nil
}

func (m *mockDealershipRepository) IsDealershipAccessible(userID, dealershipID int64) (bool, error) {
	return m.accessible[userID][dealershipID], nil
}

type mockBillingAPI struct {
	subscriptions map[string]*billingtypes.Subscription
	session       *billingtypes.CheckoutSession
	lastRequest   *billingtypes.CheckoutSessionRequest
	failGet       bool
	failCheckout  bool
	cancelCalls   int
	resumeCalls   int
}

func newMockBillingAPI() *mockBillingAPI {
	return &mockBillingAPI{
		subscriptions: map[string]*billingtypes.Subscription{},
		session:       &billingtypes.CheckoutSession{ID: "cs_123", URL: "https://billing.example.com/cs_123"},
	}
}

func (m *mockBillingAPI) CreateCheckoutSession(ctx context.Context, req *billingtypes.CheckoutSessionRequest) (*billingtypes.CheckoutSession, error) {
	if m.failCheckout {
		return nil, errors.New("provider unavailable")
	}
	m.lastRequest = req
	return m.session, nil
}

func (m *mockBillingAPI) GetSubscription(ctx context.Context, subscriptionID string) (*billingtypes.Subscription, error) {
	if m.failGet {
		return nil, errors.New("provider unavailable")
	}
	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil, errors.New("not found")
	}
	return sub, nil
}

func (m *mockBillingAPI) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*billingtypes.Subscription, error) {
	m.cancelCalls++
	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil, errors.New("not found")
	}
	if atPeriodEnd {
		sub.CancelAtPeriodEnd = true
	} else {
		sub.Status = billingtypes.ProviderStatusCanceled
	}
	return sub, nil
}

func (m *mockBillingAPI) ResumeSubscription(ctx context.Context, subscriptionID string) (*billingtypes.Subscription, error) {
	m.resumeCalls++
	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil, errors.New("not found")
	}
	sub.CancelAtPeriodEnd = false
	return sub, nil
}

func (m *mockBillingAPI) VerifyWebhookSignature(payload []byte, signature string) bool {
	return signature == "valid"
}

func (m *mockBillingAPI) PriceID() string { return "price_basic" }

var _ = ginkgo.Describe("SubscriptionService", func() {
	var (
		service  *Service
		mockRepo *mockDealershipRepository
		mockAPI  *mockBillingAPI
		ctx      context.Context
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockDealershipRepository()
		mockAPI = newMockBillingAPI()
		service = NewService(mockRepo, mockAPI, events.NewEventBus(logger.LoggerWrapper()), logger.LoggerWrapper())
		ctx = context.Background()
	})

	addTrialDealership := func(trialEndsIn time.Duration) *dealershipdm.Dealership {
		d := dealershipdm.NewTrial("Trial Motors", time.Now().Add(trialEndsIn-dealershipdm.TrialDuration))
		gomega.Expect(mockRepo.CreateDealership(d)).To(gomega.Succeed())
		return d
	}

	addBilledDealership := func(status, subID string) *dealershipdm.Dealership {
		custID := "cus_" + subID
		d := &dealershipdm.Dealership{
			Name:                  "Billed Motors",
			SubscriptionStatus:    status,
			BillingCustomerID:     &custID,
			BillingSubscriptionID: &subID,
		}
		gomega.Expect(mockRepo.CreateDealership(d)).To(gomega.Succeed())
		return d
	}

	ginkgo.Describe("IsActive", func() {
		ginkgo.It("should report a live trial as active", func() {
			// Given
			d := addTrialDealership(24 * time.Hour)

			// When
			active, err := service.IsActive(ctx, d.ID)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(active).To(gomega.BeTrue())
		})

		ginkgo.It("should report a lapsed trial as inactive", func() {
			// Given
			d := addTrialDealership(-time.Hour)

			// When
			active, err := service.IsActive(ctx, d.ID)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(active).To(gomega.BeFalse())
		})

		ginkgo.It("should reconcile against the provider before answering", func() {
			// Given a locally active dealership the provider says is canceled
			d := addBilledDealership(dealershipdm.StatusActive, "sub_1")
			mockAPI.subscriptions["sub_1"] = &billingtypes.Subscription{
				ID: "sub_1", Status: billingtypes.ProviderStatusCanceled,
				CurrentPeriodEnd: time.Now().Add(-time.Hour).Unix(),
			}

			// When
			active, err := service.IsActive(ctx, d.ID)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(active).To(gomega.BeFalse())
			gomega.Expect(mockRepo.dealerships[d.ID].SubscriptionStatus).To(gomega.Equal(dealershipdm.StatusCanceled))
		})

		ginkgo.It("should fall back to local state when the provider is down", func() {
			// Given
			d := addBilledDealership(dealershipdm.StatusActive, "sub_1")
			mockAPI.failGet = true

			// When
			active, err := service.IsActive(ctx, d.ID)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(active).To(gomega.BeTrue())
		})

		ginkgo.It("should report past_due as inactive", func() {
			// Given
			d := addBilledDealership(dealershipdm.StatusPastDue, "sub_1")
			mockAPI.failGet = true

			// When
			active, err := service.IsActive(ctx, d.ID)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(active).To(gomega.BeFalse())
		})
	})

	ginkgo.Describe("EnsureActive", func() {
		ginkgo.It("should return the subscription lapsed error for inactive dealerships", func() {
			// Given
			d := addTrialDealership(-time.Hour)

			// When
			err := service.EnsureActive(ctx, d.ID)

			// Then
			gomega.Expect(err).To(gomega.Equal(internal.ErrSubscriptionLapsed))
		})
	})

	ginkgo.Describe("HandlePaymentConfirmed", func() {
		confirmedEvent := func(subID, custID, email, dealershipName string) *billingtypes.WebhookEvent {
			return &billingtypes.WebhookEvent{
				ID:        "evt_1",
				Type:      billingtypes.WebhookTypePaymentConfirmed,
				CreatedAt: time.Now().Unix(),
				Data: billingtypes.WebhookData{
					Subscription: billingtypes.Subscription{
						ID: subID, CustomerID: custID,
						Status:           billingtypes.ProviderStatusActive,
						PlanID:           "price_basic",
						CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour).Unix(),
					},
					CustomerEmail:  email,
					DealershipName: dealershipName,
				},
			}
		}

		ginkgo.It("should create a dealership and promote the payer for a new registrant", func() {
			// Given a verified user with no dealership
			mockRepo.users["owner@example.com"] = &userdm.User{
				ID: 1, Email: "owner@example.com", Role: userdm.RoleManager, IsVerified: true,
			}

			// When
			err := service.HandlePaymentConfirmed(ctx, confirmedEvent("sub_9", "cus_9", "owner@example.com", "Fresh Motors"))

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.createCount).To(gomega.Equal(1))

			var created *dealershipdm.Dealership
			for _, d := range mockRepo.dealerships {
				created = d
			}
			gomega.Expect(created.Name).To(gomega.Equal("Fresh Motors"))
			gomega.Expect(created.SubscriptionStatus).To(gomega.Equal(dealershipdm.StatusActive))
			gomega.Expect(created.TrialEndsAt).To(gomega.BeNil())
			gomega.Expect(created.LastBillingEventAt).ToNot(gomega.BeNil())

			payer := mockRepo.users["owner@example.com"]
			gomega.Expect(payer.Role).To(gomega.Equal(userdm.RoleAdmin))
			gomega.Expect(payer.IsApproved).To(gomega.BeTrue())
			gomega.Expect(*payer.DealershipID).To(gomega.Equal(created.ID))
		})

		ginkgo.It("should be idempotent on re-delivery", func() {
			// Given
			mockRepo.users["owner@example.com"] = &userdm.User{
				ID: 1, Email: "owner@example.com", Role: userdm.RoleManager, IsVerified: true,
			}
			event := confirmedEvent("sub_9", "cus_9", "owner@example.com", "Fresh Motors")
			gomega.Expect(service.HandlePaymentConfirmed(ctx, event)).To(gomega.Succeed())

			// When delivered again
			err := service.HandlePaymentConfirmed(ctx, event)

			// Then no second dealership appears and the payer stays admin
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.createCount).To(gomega.Equal(1))
			gomega.Expect(mockRepo.users["owner@example.com"].Role).To(gomega.Equal(userdm.RoleAdmin))
		})

		ginkgo.It("should activate an existing trial dealership", func() {
			// Given
			d := addTrialDealership(24 * time.Hour)
			dealershipID := d.ID
			mockRepo.users["owner@example.com"] = &userdm.User{
				ID: 1, Email: "owner@example.com", Role: userdm.RoleAdmin, DealershipID: &dealershipID, IsApproved: true,
			}

			// When
			err := service.HandlePaymentConfirmed(ctx, confirmedEvent("sub_9", "cus_9", "owner@example.com", ""))

			// Then the trial clears rather than a new tenant appearing
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.createCount).To(gomega.Equal(1))
			updated := mockRepo.dealerships[d.ID]
			gomega.Expect(updated.SubscriptionStatus).To(gomega.Equal(dealershipdm.StatusActive))
			gomega.Expect(updated.TrialEndsAt).To(gomega.BeNil())
		})

		ginkgo.It("should drop a confirmation older than the last applied event", func() {
			// Given a dealership canceled by a newer billing event
			d := addBilledDealership(dealershipdm.StatusCanceled, "sub_9")
			lastEvent := time.Now()
			d.LastBillingEventAt = &lastEvent

			// When a delayed checkout confirmation stamped an hour earlier arrives
			event := confirmedEvent("sub_9", "cus_sub_9", "owner@example.com", "")
			event.CreatedAt = lastEvent.Add(-time.Hour).Unix()
			err := service.HandlePaymentConfirmed(ctx, event)

			// Then the cancellation survives and the marker does not rewind
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			updated := mockRepo.dealerships[d.ID]
			gomega.Expect(updated.SubscriptionStatus).To(gomega.Equal(dealershipdm.StatusCanceled))
			gomega.Expect(updated.LastBillingEventAt.Equal(lastEvent)).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("HandleStatusChanged", func() {
		statusEvent := func(subID, status string, at time.Time) *billingtypes.WebhookEvent {
			return &billingtypes.WebhookEvent{
				ID:        "evt_2",
				Type:      billingtypes.WebhookTypeSubscriptionUpdate,
				CreatedAt: at.Unix(),
				Data: billingtypes.WebhookData{
					Subscription: billingtypes.Subscription{
						ID: subID, Status: status,
						CurrentPeriodEnd: at.Add(30 * 24 * time.Hour).Unix(),
					},
				},
			}
		}

		ginkgo.It("should map past_due and unpaid onto past_due", func() {
			for _, providerStatus := range []string{billingtypes.ProviderStatusPastDue, billingtypes.ProviderStatusUnpaid} {
				// Given
				d := addBilledDealership(dealershipdm.StatusActive, "sub_"+providerStatus)

				// When
				err := service.HandleStatusChanged(ctx, statusEvent("sub_"+providerStatus, providerStatus, time.Now()))

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(mockRepo.dealerships[d.ID].SubscriptionStatus).To(gomega.Equal(dealershipdm.StatusPastDue))
			}
		})

		ginkgo.It("should drop events older than the last applied one", func() {
			// Given a dealership that saw a billing event just now
			d := addBilledDealership(dealershipdm.StatusActive, "sub_1")
			now := time.Now()
			d.LastBillingEventAt = &now

			// When a webhook dated an hour earlier arrives
			err := service.HandleStatusChanged(ctx, statusEvent("sub_1", billingtypes.ProviderStatusCanceled, now.Add(-time.Hour)))

			// Then the newer local state survives
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.dealerships[d.ID].SubscriptionStatus).To(gomega.Equal(dealershipdm.StatusActive))
		})

		ginkgo.It("should persist clearing a leftover trial timestamp", func() {
			// Given an already-active dealership still carrying a trial date,
			// with every other field matching the incoming event
			at := time.Now()
			d := addBilledDealership(dealershipdm.StatusActive, "sub_1")
			periodEnd := time.Unix(at.Add(30*24*time.Hour).Unix(), 0)
			trialEnd := at.Add(24 * time.Hour)
			d.SubscriptionEndsAt = &periodEnd
			d.TrialEndsAt = &trialEnd

			// When
			err := service.HandleStatusChanged(ctx, statusEvent("sub_1", billingtypes.ProviderStatusActive, at))

			// Then the cleared trial date counts as a change and is written
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			updated := mockRepo.dealerships[d.ID]
			gomega.Expect(updated.TrialEndsAt).To(gomega.BeNil())
			gomega.Expect(updated.LastBillingEventAt).ToNot(gomega.BeNil())
		})

		ginkgo.It("should never map a provider status back to trial", func() {
			// Given
			d := addBilledDealership(dealershipdm.StatusActive, "sub_1")

			// When an unknown provider status arrives
			err := service.HandleStatusChanged(ctx, statusEvent("sub_1", "trialing", time.Now()))

			// Then it is ignored
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.dealerships[d.ID].SubscriptionStatus).To(gomega.Equal(dealershipdm.StatusActive))
		})

		ginkgo.It("should ack events for unknown dealerships without error", func() {
			err := service.HandleStatusChanged(ctx, statusEvent("sub_ghost", billingtypes.ProviderStatusActive, time.Now()))
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("Cancel and Resume", func() {
		var (
			admin *userdm.User
			d     *dealershipdm.Dealership
		)

		ginkgo.BeforeEach(func() {
			d = addBilledDealership(dealershipdm.StatusActive, "sub_1")
			mockAPI.subscriptions["sub_1"] = &billingtypes.Subscription{
				ID: "sub_1", Status: billingtypes.ProviderStatusActive,
				CurrentPeriodEnd: time.Now().Add(20 * 24 * time.Hour).Unix(),
			}
			dealershipID := d.ID
			admin = &userdm.User{ID: 1, Email: "admin@example.com", Role: userdm.RoleAdmin, DealershipID: &dealershipID}
		})

		ginkgo.It("should keep the dealership active when canceling at period end", func() {
			// When
			err := service.Cancel(ctx, admin, CancelDTO{AtPeriodEnd: true})

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			updated := mockRepo.dealerships[d.ID]
			gomega.Expect(updated.SubscriptionStatus).To(gomega.Equal(dealershipdm.StatusActive))
			gomega.Expect(updated.CancelAtPeriodEnd).To(gomega.BeTrue())
			gomega.Expect(updated.SubscriptionEndsAt).ToNot(gomega.BeNil())
		})

		ginkgo.It("should end entitlement immediately on a hard cancel", func() {
			// When
			err := service.Cancel(ctx, admin, CancelDTO{AtPeriodEnd: false})

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			updated := mockRepo.dealerships[d.ID]
			gomega.Expect(updated.SubscriptionStatus).To(gomega.Equal(dealershipdm.StatusCanceled))
			gomega.Expect(updated.IsSubscriptionActive(time.Now())).To(gomega.BeFalse())
		})

		ginkgo.It("should resume only a pending cancellation", func() {
			// Given
			gomega.Expect(service.Cancel(ctx, admin, CancelDTO{AtPeriodEnd: true})).To(gomega.Succeed())

			// When
			err := service.Resume(ctx, admin, 0)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.dealerships[d.ID].CancelAtPeriodEnd).To(gomega.BeFalse())
			gomega.Expect(mockAPI.resumeCalls).To(gomega.Equal(1))
		})

		ginkgo.It("should refuse to resume without a pending cancellation", func() {
			// When
			err := service.Resume(ctx, admin, 0)

			// Then
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeInvalidSubscriptionState))
			gomega.Expect(mockAPI.resumeCalls).To(gomega.Equal(0))
		})

		ginkgo.It("should refuse cross-tenant cancellation", func() {
			// Given another dealership
			other := addBilledDealership(dealershipdm.StatusActive, "sub_2")

			// When
			err := service.Cancel(ctx, admin, CancelDTO{DealershipID: other.ID})

			// Then
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionDenied))
			gomega.Expect(mockAPI.cancelCalls).To(gomega.Equal(0))
		})
	})

	ginkgo.Describe("StartCheckout", func() {
		ginkgo.It("should defer dealership creation for a new registrant", func() {
			// Given
			actor := &userdm.User{ID: 5, Email: "new@example.com", Role: userdm.RoleManager}

			// When
			resp, err := service.StartCheckout(ctx, actor, StartCheckoutDTO{DealershipName: "Someday Motors"})

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(resp.CheckoutURL).ToNot(gomega.BeEmpty())
			gomega.Expect(mockRepo.createCount).To(gomega.Equal(0))
			gomega.Expect(mockAPI.lastRequest.Metadata["dealership_name"]).To(gomega.Equal("Someday Motors"))
		})

		ginkgo.It("should surface provider failures", func() {
			// Given
			mockAPI.failCheckout = true
			actor := &userdm.User{ID: 5, Email: "new@example.com", Role: userdm.RoleManager}

			// When
			_, err := service.StartCheckout(ctx, actor, StartCheckoutDTO{})

			// Then
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeBillingProviderError))
		})

		ginkgo.It("should require an accessible dealership for corporate actors", func() {
			// Given
			d := addBilledDealership(dealershipdm.StatusActive, "sub_1")
			corp := &userdm.User{ID: 7, Email: "corp@example.com", Role: userdm.RoleCorporate}

			// When not accessible
			_, err := service.StartCheckout(ctx, corp, StartCheckoutDTO{DealershipID: d.ID})
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionDenied))

			// When accessible
			mockRepo.accessible[corp.ID] = map[int64]bool{d.ID: true}
			_, err = service.StartCheckout(ctx, corp, StartCheckoutDTO{DealershipID: d.ID})

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("ExpireLapsedTrials", func() {
		ginkgo.It("should expire only lapsed trials", func() {
			// Given
			lapsed := addTrialDealership(-time.Hour)
			live := addTrialDealership(24 * time.Hour)

			// When
			n, err := service.ExpireLapsedTrials(ctx)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(n).To(gomega.Equal(int64(1)))
			gomega.Expect(mockRepo.dealerships[lapsed.ID].SubscriptionStatus).To(gomega.Equal(dealershipdm.StatusExpired))
			gomega.Expect(mockRepo.dealerships[live.ID].SubscriptionStatus).To(gomega.Equal(dealershipdm.StatusTrial))
		})
	})
})
