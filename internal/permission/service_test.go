package permission

import (
	"fmt"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/star4ce/star4ce-backend/internal"
	permdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/permission"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
	"github.com/star4ce/star4ce-backend/pkg/logger"
)

func TestPermission(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Permission Module Suite")
}

type mockPermissionRepository struct {
	userOverrides map[string]*permdm.UserPermission
	roleOverrides map[string]*permdm.RolePermission
	users         map[int64]*userdm.User
}

func newMockPermissionRepository() *mockPermissionRepository {
	return &mockPermissionRepository{
		userOverrides: map[string]*permdm.UserPermission{},
		roleOverrides: map[string]*permdm.RolePermission{},
		users:         map[int64]*userdm.User{},
	}
}

func userKey(userID int64, key string) string {
	return fmt.Sprintf("%d:%s", userID, key)
}

func roleKey(dealershipID int64, role, key string) string {
	return fmt.Sprintf("%d:%s:%s", dealershipID, role, key)
}

func (m *mockPermissionRepository) GetUserOverride(userID int64, key string) (*permdm.UserPermission, error) {
	return m.userOverrides[userKey(userID, key)], nil
}

func (m *mockPermissionRepository) GetRoleOverride(dealershipID int64, role, key string) (*permdm.RolePermission, error) {
	return m.roleOverrides[roleKey(dealershipID, role, key)], nil
}

func (m *mockPermissionRepository) ListUserOverrides(userID int64) ([]permdm.UserPermission, error) {
	var out []permdm.UserPermission
	for _, o := range m.userOverrides {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockPermissionRepository) ListRoleOverrides(dealershipID int64, role string) ([]permdm.RolePermission, error) {
	var out []permdm.RolePermission
	for _, o := range m.roleOverrides {
		if o.DealershipID == dealershipID && o.Role == role {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockPermissionRepository) UpsertRolePermission(p *permdm.RolePermission) error {
	m.roleOverrides[roleKey(p.DealershipID, p.Role, p.PermissionKey)] = p
	return nil
}

func (m *mockPermissionRepository) UpsertUserPermission(p *permdm.UserPermission) error {
	m.userOverrides[userKey(p.UserID, p.PermissionKey)] = p
	return nil
}

func (m *mockPermissionRepository) GetUserByID(id int64) (*userdm.User, error) {
	return m.users[id], nil
}

var _ = ginkgo.Describe("PermissionService", func() {
	var (
		service  *Service
		mockRepo *mockPermissionRepository

		dealershipID int64 = 10
		admin        *userdm.User
		manager      *userdm.User
		corporate    *userdm.User
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockPermissionRepository()
		service = NewService(mockRepo, logger.LoggerWrapper())

		admin = &userdm.User{ID: 1, Role: userdm.RoleAdmin, DealershipID: &dealershipID}
		manager = &userdm.User{ID: 2, Role: userdm.RoleManager, DealershipID: &dealershipID}
		corporate = &userdm.User{ID: 3, Role: userdm.RoleCorporate, DealershipID: &dealershipID}
		for _, u := range []*userdm.User{admin, manager, corporate} {
			mockRepo.users[u.ID] = u
		}
	})

	ginkgo.Describe("HasPermission defaults", func() {
		ginkgo.It("should always allow admins", func() {
			for _, key := range AllKeys {
				allowed, err := service.HasPermission(admin, key)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(allowed).To(gomega.BeTrue(), key)
			}
		})

		ginkgo.It("should apply the manager defaults", func() {
			expected := map[string]bool{
				KeyViewDashboard:    true,
				KeyViewEmployees:    true,
				KeyViewCandidates:   true,
				KeyViewAnalytics:    false,
				KeyViewSurveys:      true,
				KeyViewSubscription: true,
				KeyCreateSurvey:     false,
				KeyManageSurvey:     false,
				KeyCreateEmployee:   false,
				KeyManageEmployee:   false,
				KeyCreateCandidate:  true,
				KeyManageCandidate:  true,
			}

			for key, want := range expected {
				allowed, err := service.HasPermission(manager, key)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(allowed).To(gomega.Equal(want), key)
			}
		})

		ginkgo.It("should apply the corporate defaults", func() {
			expected := map[string]bool{
				KeyViewDashboard:    true,
				KeyViewEmployees:    true,
				KeyViewCandidates:   true,
				KeyViewAnalytics:    true,
				KeyViewSurveys:      true,
				KeyViewSubscription: true,
				KeyCreateSurvey:     false,
				KeyManageSurvey:     false,
				KeyCreateEmployee:   false,
				KeyManageEmployee:   false,
				KeyCreateCandidate:  false,
				KeyManageCandidate:  false,
			}

			for key, want := range expected {
				allowed, err := service.HasPermission(corporate, key)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(allowed).To(gomega.Equal(want), key)
			}
		})

		ginkgo.It("should reject an unknown key", func() {
			_, err := service.HasPermission(manager, "launch_rockets")
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("HasPermission precedence", func() {
		ginkgo.It("should let a role override shadow the default", func() {
			// Given
			gomega.Expect(service.SetRolePermission(admin, userdm.RoleManager, KeyViewAnalytics, true)).To(gomega.Succeed())

			// When
			allowed, err := service.HasPermission(manager, KeyViewAnalytics)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(allowed).To(gomega.BeTrue())
		})

		ginkgo.It("should let a user override shadow the role override", func() {
			// Given a role override granting, and a user override denying
			gomega.Expect(service.SetRolePermission(admin, userdm.RoleManager, KeyViewAnalytics, true)).To(gomega.Succeed())
			gomega.Expect(service.SetUserPermission(admin, manager.ID, KeyViewAnalytics, false)).To(gomega.Succeed())

			// When
			allowed, err := service.HasPermission(manager, KeyViewAnalytics)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(allowed).To(gomega.BeFalse())
		})

		ginkgo.It("should not give corporate users a user-level layer", func() {
			// Given a stray user-level row for the corporate user
			mockRepo.userOverrides[userKey(corporate.ID, KeyViewAnalytics)] = &permdm.UserPermission{
				UserID: corporate.ID, PermissionKey: KeyViewAnalytics, Allowed: false,
			}

			// When
			allowed, err := service.HasPermission(corporate, KeyViewAnalytics)

			// Then the corporate default wins; the row is never consulted
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(allowed).To(gomega.BeTrue())
		})

		ginkgo.It("should scope role overrides to the dealership", func() {
			// Given an override in another dealership
			otherDealership := int64(99)
			mockRepo.roleOverrides[roleKey(otherDealership, userdm.RoleManager, KeyViewAnalytics)] = &permdm.RolePermission{
				DealershipID: otherDealership, Role: userdm.RoleManager, PermissionKey: KeyViewAnalytics, Allowed: true,
			}

			// When
			allowed, err := service.HasPermission(manager, KeyViewAnalytics)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(allowed).To(gomega.BeFalse())
		})
	})

	ginkgo.Describe("EffectivePermissions", func() {
		ginkgo.It("should merge defaults, role overrides and user overrides", func() {
			// Given
			gomega.Expect(service.SetRolePermission(admin, userdm.RoleManager, KeyCreateSurvey, true)).To(gomega.Succeed())
			gomega.Expect(service.SetUserPermission(admin, manager.ID, KeyViewCandidates, false)).To(gomega.Succeed())

			// When
			perms, err := service.EffectivePermissions(manager)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(perms).To(gomega.HaveLen(len(AllKeys)))
			gomega.Expect(perms[KeyCreateSurvey]).To(gomega.BeTrue())
			gomega.Expect(perms[KeyViewCandidates]).To(gomega.BeFalse())
			gomega.Expect(perms[KeyViewDashboard]).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("SetRolePermission", func() {
		ginkgo.It("should reject non-admin actors", func() {
			err := service.SetRolePermission(manager, userdm.RoleManager, KeyViewAnalytics, true)
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionDenied))
		})

		ginkgo.It("should refuse to override the admin role", func() {
			err := service.SetRolePermission(admin, userdm.RoleAdmin, KeyViewAnalytics, false)
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("SetUserPermission", func() {
		ginkgo.It("should reject targets outside the admin's dealership", func() {
			// Given
			otherDealership := int64(55)
			outsider := &userdm.User{ID: 77, Role: userdm.RoleManager, DealershipID: &otherDealership}
			mockRepo.users[outsider.ID] = outsider

			// When
			err := service.SetUserPermission(admin, outsider.ID, KeyViewAnalytics, true)

			// Then
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionDenied))
		})

		ginkgo.It("should reject non-manager targets", func() {
			err := service.SetUserPermission(admin, corporate.ID, KeyViewAnalytics, false)
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})
})
