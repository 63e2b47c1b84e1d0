package governance

import (
	"context"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/star4ce/star4ce-backend/internal"
	dealershipdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/dealership"
	governancedm "github.com/star4ce/star4ce-backend/internal/core/datamodel/governance"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
	"github.com/star4ce/star4ce-backend/internal/core/events"
	"github.com/star4ce/star4ce-backend/pkg/logger"
)

func TestGovernance(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Governance Module Suite")
}

type mockGovernanceRepository struct {
	users       map[int64]*userdm.User
	dealerships map[int64]*dealershipdm.Dealership

	adminRequests   map[int64]*governancedm.AdminRequest
	managerRequests map[int64]*governancedm.ManagerDealershipRequest
	accessRequests  map[int64]*governancedm.DealershipAccessRequest
	assignments     []userdm.CorporateDealership
	deletedUserIDs  []int64
	nextRequestID   int64
}

func newMockGovernanceRepository() *mockGovernanceRepository {
	return &mockGovernanceRepository{
		users:           map[int64]*userdm.User{},
		dealerships:     map[int64]*dealershipdm.Dealership{},
		adminRequests:   map[int64]*governancedm.AdminRequest{},
		managerRequests: map[int64]*governancedm.ManagerDealershipRequest{},
		accessRequests:  map[int64]*governancedm.DealershipAccessRequest{},
		nextRequestID:   1,
	}
}

func (m *mockGovernanceRepository) GetUserByID(id int64) (*userdm.User, error) {
	return m.users[id], nil
}

func (m *mockGovernanceRepository) UpdateUser(u *userdm.User) error {
	m.users[u.ID] = u
	return nil
}

func (m *mockGovernanceRepository) DeleteUser(id int64) error {
	delete(m.users, id)
	m.deletedUserIDs = append(m.deletedUserIDs, id)
	return nil
}

func (m *mockGovernanceRepository) ListPendingManagers(dealershipID int64) ([]userdm.User, error) {
	var out []userdm.User
	for _, u := range m.users {
		if u.IsManager() && !u.IsApproved && u.DealershipID != nil && *u.DealershipID == dealershipID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockGovernanceRepository) GetDealershipByID(id int64) (*dealershipdm.Dealership, error) {
	return m.dealerships[id], nil
}

func (m *mockGovernanceRepository) CreateAdminRequest(req *governancedm.AdminRequest) error {
	req.ID = m.nextRequestID
	m.nextRequestID++
	m.adminRequests[req.ID] = req
	return nil
}

func (m *mockGovernanceRepository) GetAdminRequestByID(id int64) (*governancedm.AdminRequest, error) {
	return m.adminRequests[id], nil
}

func (m *mockGovernanceRepository) UpdateAdminRequest(req *governancedm.AdminRequest) error {
	m.adminRequests[req.ID] = req
	return nil
}

func (m *mockGovernanceRepository) ListPendingAdminRequests(dealershipID int64) ([]governancedm.AdminRequest, error) {
	var out []governancedm.AdminRequest
	for _, r := range m.adminRequests {
		if r.DealershipID == dealershipID && governancedm.IsPending(r.Status) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockGovernanceRepository) CreateManagerDealershipRequest(req *governancedm.ManagerDealershipRequest) error {
	req.ID = m.nextRequestID
	m.nextRequestID++
	m.managerRequests[req.ID] = req
	return nil
}

func (m *mockGovernanceRepository) GetManagerDealershipRequestByID(id int64) (*governancedm.ManagerDealershipRequest, error) {
	return m.managerRequests[id], nil
}

func (m *mockGovernanceRepository) UpdateManagerDealershipRequest(req *governancedm.ManagerDealershipRequest) error {
	m.managerRequests[req.ID] = req
	return nil
}

func (m *mockGovernanceRepository) ListPendingManagerDealershipRequests(dealershipID int64) ([]governancedm.ManagerDealershipRequest, error) {
	var out []governancedm.ManagerDealershipRequest
	for _, r := range m.managerRequests {
		if r.DealershipID == dealershipID && governancedm.IsPending(r.Status) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockGovernanceRepository) CreateDealershipAccessRequest(req *governancedm.DealershipAccessRequest) error {
	req.ID = m.nextRequestID
	m.nextRequestID++
	m.accessRequests[req.ID] = req
	return nil
}

func (m *mockGovernanceRepository) GetDealershipAccessRequestByID(id int64) (*governancedm.DealershipAccessRequest, error) {
	return m.accessRequests[id], nil
}

func (m *mockGovernanceRepository) UpdateDealershipAccessRequest(req *governancedm.DealershipAccessRequest) error {
	m.accessRequests[req.ID] = req
	return nil
}

func (m *mockGovernanceRepository) ListPendingDealershipAccessRequests(dealershipID int64) ([]governancedm.DealershipAccessRequest, error) {
	var out []governancedm.DealershipAccessRequest
	for _, r := range m.accessRequests {
		if r.DealershipID == dealershipID && governancedm.IsPending(r.Status) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockGovernanceRepository) AssignCorporateDealership(assignment *userdm.CorporateDealership) error {
	m.assignments = append(m.assignments, *assignment)
	return nil
}

func (m *mockGovernanceRepository) AccessibleDealershipIDs(userID int64) ([]int64, error) {
	var ids []int64
	for _, a := range m.assignments {
		if a.UserID == userID {
			ids = append(ids, a.DealershipID)
		}
	}
	return ids, nil
}

var _ = ginkgo.Describe("GovernanceService", func() {
	var (
		service  *Service
		mockRepo *mockGovernanceRepository
		ctx      context.Context

		dealershipID int64 = 10
		admin        *userdm.User
		corporate    *userdm.User
		manager      *userdm.User
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockGovernanceRepository()
		bus := events.NewEventBus(logger.LoggerWrapper())
		service = NewService(mockRepo, bus, logger.LoggerWrapper())
		ctx = context.Background()

		mockRepo.dealerships[dealershipID] = &dealershipdm.Dealership{ID: dealershipID, Name: "Demo Motors"}

		admin = &userdm.User{ID: 1, Role: userdm.RoleAdmin, DealershipID: &dealershipID, IsApproved: true}
		corporate = &userdm.User{ID: 2, Role: userdm.RoleCorporate}
		manager = &userdm.User{ID: 3, Role: userdm.RoleManager, DealershipID: &dealershipID, IsApproved: false}
		for _, u := range []*userdm.User{admin, corporate, manager} {
			mockRepo.users[u.ID] = u
		}
	})

	ginkgo.Describe("ApproveManager", func() {
		ginkgo.It("should approve a pending manager and stamp the approver", func() {
			// When
			err := service.ApproveManager(ctx, admin, manager.ID)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			approved := mockRepo.users[manager.ID]
			gomega.Expect(approved.IsApproved).To(gomega.BeTrue())
			gomega.Expect(approved.ApprovedBy).To(gomega.Equal(&admin.ID))
			gomega.Expect(approved.ApprovedAt).ToNot(gomega.BeNil())
		})

		ginkgo.It("should be one-shot and conflict on a second approval", func() {
			// Given
			gomega.Expect(service.ApproveManager(ctx, admin, manager.ID)).To(gomega.Succeed())

			// When
			err := service.ApproveManager(ctx, admin, manager.ID)

			// Then
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeAlreadyApproved))
		})

		ginkgo.It("should refuse managers as approvers", func() {
			err := service.ApproveManager(ctx, manager, manager.ID)
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionDenied))
		})

		ginkgo.It("should keep admins inside their own dealership", func() {
			// Given a manager bound to another dealership
			other := int64(99)
			outsider := &userdm.User{ID: 9, Role: userdm.RoleManager, DealershipID: &other}
			mockRepo.users[outsider.ID] = outsider

			// When
			err := service.ApproveManager(ctx, admin, outsider.ID)

			// Then
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionDenied))
		})

		ginkgo.It("should let corporate users approve across dealerships", func() {
			// Given
			other := int64(99)
			outsider := &userdm.User{ID: 9, Role: userdm.RoleManager, DealershipID: &other}
			mockRepo.users[outsider.ID] = outsider

			// When
			err := service.ApproveManager(ctx, corporate, outsider.ID)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.users[outsider.ID].IsApproved).To(gomega.BeTrue())
		})

		ginkgo.It("should reject non-manager targets", func() {
			err := service.ApproveManager(ctx, admin, corporate.ID)
			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should bind an unbound manager to the approver's dealership", func() {
			// Given
			unbound := &userdm.User{ID: 8, Role: userdm.RoleManager}
			mockRepo.users[unbound.ID] = unbound

			// When
			err := service.ApproveManager(ctx, admin, unbound.ID)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.users[unbound.ID].DealershipID).To(gomega.Equal(&dealershipID))
		})
	})

	ginkgo.Describe("RejectManager", func() {
		ginkgo.It("should delete the pending manager record", func() {
			// When
			err := service.RejectManager(ctx, admin, manager.ID)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.users[manager.ID]).To(gomega.BeNil())
			gomega.Expect(mockRepo.deletedUserIDs).To(gomega.ContainElement(manager.ID))
		})

		ginkgo.It("should refuse to reject an approved manager", func() {
			// Given
			gomega.Expect(service.ApproveManager(ctx, admin, manager.ID)).To(gomega.Succeed())

			// When
			err := service.RejectManager(ctx, admin, manager.ID)

			// Then
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeAlreadyApproved))
		})
	})

	ginkgo.Describe("ListPendingManagers", func() {
		ginkgo.It("should list only unapproved managers of the admin's dealership", func() {
			// Given one pending manager elsewhere
			other := int64(99)
			mockRepo.users[9] = &userdm.User{ID: 9, Role: userdm.RoleManager, DealershipID: &other}

			// When
			pending, err := service.ListPendingManagers(admin)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(pending).To(gomega.HaveLen(1))
			gomega.Expect(pending[0].ID).To(gomega.Equal(manager.ID))
		})
	})

	ginkgo.Describe("ResolveManagerDealershipRequest", func() {
		ginkgo.It("should bind the manager on approval and stamp the resolver", func() {
			// Given
			unbound := &userdm.User{ID: 8, Role: userdm.RoleManager}
			mockRepo.users[unbound.ID] = unbound
			req, err := service.RequestManagerDealership(unbound, dealershipID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			err = service.ResolveManagerDealershipRequest(admin, req.ID, true)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.users[unbound.ID].DealershipID).To(gomega.Equal(&dealershipID))
			resolved := mockRepo.managerRequests[req.ID]
			gomega.Expect(resolved.Status).To(gomega.Equal(governancedm.StatusApproved))
			gomega.Expect(resolved.ResolvedBy).To(gomega.Equal(&admin.ID))
		})

		ginkgo.It("should leave the manager unbound on rejection", func() {
			// Given
			unbound := &userdm.User{ID: 8, Role: userdm.RoleManager}
			mockRepo.users[unbound.ID] = unbound
			req, err := service.RequestManagerDealership(unbound, dealershipID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			err = service.ResolveManagerDealershipRequest(admin, req.ID, false)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.users[unbound.ID].DealershipID).To(gomega.BeNil())
			gomega.Expect(mockRepo.managerRequests[req.ID].Status).To(gomega.Equal(governancedm.StatusRejected))
		})

		ginkgo.It("should conflict on a second resolution", func() {
			// Given
			req, err := service.RequestManagerDealership(manager, dealershipID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(service.ResolveManagerDealershipRequest(admin, req.ID, false)).To(gomega.Succeed())

			// When
			err = service.ResolveManagerDealershipRequest(admin, req.ID, true)

			// Then
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeAlreadyApproved))
		})

		ginkgo.It("should refuse admins of another dealership", func() {
			// Given
			req, err := service.RequestManagerDealership(manager, dealershipID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			other := int64(99)
			foreignAdmin := &userdm.User{ID: 12, Role: userdm.RoleAdmin, DealershipID: &other, IsApproved: true}

			// When
			err = service.ResolveManagerDealershipRequest(foreignAdmin, req.ID, true)

			// Then
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionDenied))
		})
	})

	ginkgo.Describe("RequestDealershipAccess", func() {
		ginkgo.It("should refuse non-corporate requesters", func() {
			_, err := service.RequestDealershipAccess(manager, dealershipID, "")
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionDenied))
		})

		ginkgo.It("should refuse unknown dealerships", func() {
			_, err := service.RequestDealershipAccess(corporate, 404, "")
			gomega.Expect(err).To(gomega.Equal(internal.ErrDealershipNotFound))
		})

		ginkgo.It("should grant access through the assignment table on approval", func() {
			// Given
			req, err := service.RequestDealershipAccess(corporate, dealershipID, "quarterly review")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			err = service.ResolveDealershipAccessRequest(admin, req.ID, true)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			ids, err := service.AccessibleDealershipIDs(corporate.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(ids).To(gomega.Equal([]int64{dealershipID}))
		})
	})

	ginkgo.Describe("ResolveAdminRequest", func() {
		ginkgo.It("should promote the requester to an approved admin", func() {
			// Given
			req, err := service.RequestAdmin(manager, dealershipID, "taking over")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			err = service.ResolveAdminRequest(admin, req.ID, true)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			promoted := mockRepo.users[manager.ID]
			gomega.Expect(promoted.Role).To(gomega.Equal(userdm.RoleAdmin))
			gomega.Expect(promoted.IsApproved).To(gomega.BeTrue())
			gomega.Expect(promoted.DealershipID).To(gomega.Equal(&dealershipID))
		})

		ginkgo.It("should refuse a request from someone who is already an admin", func() {
			_, err := service.RequestAdmin(admin, dealershipID, "")
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeAlreadyApproved))
		})

		ginkgo.It("should keep the requester's role on rejection", func() {
			// Given
			req, err := service.RequestAdmin(manager, dealershipID, "")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			err = service.ResolveAdminRequest(admin, req.ID, false)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(mockRepo.users[manager.ID].Role).To(gomega.Equal(userdm.RoleManager))
			gomega.Expect(mockRepo.adminRequests[req.ID].Status).To(gomega.Equal(governancedm.StatusRejected))
		})
	})

	ginkgo.Describe("AssignDealershipToCorporate", func() {
		ginkgo.It("should assign directly when the actor administers the dealership", func() {
			// When
			err := service.AssignDealershipToCorporate(admin, corporate.ID, dealershipID)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			ids, err := service.AccessibleDealershipIDs(corporate.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(ids).To(gomega.ContainElement(dealershipID))
		})

		ginkgo.It("should refuse non-corporate targets", func() {
			err := service.AssignDealershipToCorporate(admin, manager.ID, dealershipID)
			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(mockRepo.assignments).To(gomega.BeEmpty())
		})

		ginkgo.It("should refuse dealerships the actor does not administer", func() {
			err := service.AssignDealershipToCorporate(admin, corporate.ID, 99)
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionDenied))
		})
	})
})
