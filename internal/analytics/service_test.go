package analytics

import (
	"context"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/star4ce/star4ce-backend/internal"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
	"github.com/star4ce/star4ce-backend/internal/permission"
	"github.com/star4ce/star4ce-backend/pkg/logger"
)

func TestAnalytics(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Analytics Module Suite")
}

type mockAnalyticsRepository struct {
	accessible    map[int64]map[int64]bool
	queriedIDs    []int64
	requestedDays []int
}

func newMockAnalyticsRepository() *mockAnalyticsRepository {
	return &mockAnalyticsRepository{accessible: map[int64]map[int64]bool{}}
}

func (m *mockAnalyticsRepository) Summary(ctx context.Context, dealershipID int64) (*Summary, error) {
	m.queriedIDs = append(m.queriedIDs, dealershipID)
	return &Summary{TotalResponses: 42, AverageScore: 3.5, ActiveCodes: 7}, nil
}

func (m *mockAnalyticsRepository) TimeSeries(ctx context.Context, dealershipID int64, days int) ([]TimeSeriesPoint, error) {
	m.queriedIDs = append(m.queriedIDs, dealershipID)
	m.requestedDays = append(m.requestedDays, days)
	return []TimeSeriesPoint{}, nil
}

func (m *mockAnalyticsRepository) Averages(ctx context.Context, dealershipID int64) ([]QuestionAverage, error) {
	m.queriedIDs = append(m.queriedIDs, dealershipID)
	return []QuestionAverage{{QuestionKey: "work_environment", AverageScore: 3.2, Answers: 12}}, nil
}

func (m *mockAnalyticsRepository) RoleBreakdown(ctx context.Context, dealershipID int64) ([]RoleBreakdownRow, error) {
	m.queriedIDs = append(m.queriedIDs, dealershipID)
	return []RoleBreakdownRow{}, nil
}

func (m *mockAnalyticsRepository) IsDealershipAccessible(ctx context.Context, userID, dealershipID int64) (bool, error) {
	return m.accessible[userID][dealershipID], nil
}

type stubPermissions struct{ allowed bool }

func (p stubPermissions) HasPermission(u *userdm.User, key string) (bool, error) {
	if key != permission.KeyViewAnalytics {
		return false, nil
	}
	return p.allowed || u.IsAdmin(), nil
}

type stubGate struct{ err error }

func (g *stubGate) EnsureActive(ctx context.Context, dealershipID int64) error { return g.err }

var _ = ginkgo.Describe("AnalyticsService", func() {
	var (
		service  *Service
		mockRepo *mockAnalyticsRepository
		gate     *stubGate
		ctx      context.Context

		dealershipID int64 = 10
		admin        *userdm.User
		corporate    *userdm.User
	)

	ginkgo.BeforeEach(func() {
		mockRepo = newMockAnalyticsRepository()
		gate = &stubGate{}
		service = NewService(mockRepo, stubPermissions{allowed: true}, gate, logger.LoggerWrapper())
		ctx = context.Background()

		admin = &userdm.User{ID: 1, Role: userdm.RoleAdmin, DealershipID: &dealershipID, IsApproved: true}
		corporate = &userdm.User{ID: 2, Role: userdm.RoleCorporate}
	})

	ginkgo.Describe("Summary", func() {
		ginkgo.It("should scope the query to the actor's dealership", func() {
			// When
			summary, err := service.Summary(ctx, admin, 0)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(summary.TotalResponses).To(gomega.Equal(int64(42)))
			gomega.Expect(mockRepo.queriedIDs).To(gomega.Equal([]int64{dealershipID}))
		})

		ginkgo.It("should deny users without the analytics permission", func() {
			// Given
			service = NewService(mockRepo, stubPermissions{allowed: false}, gate, logger.LoggerWrapper())
			manager := &userdm.User{ID: 3, Role: userdm.RoleManager, DealershipID: &dealershipID, IsApproved: true}

			// When
			_, err := service.Summary(ctx, manager, 0)

			// Then
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionDenied))
		})

		ginkgo.It("should refuse when the subscription lapsed", func() {
			// Given
			gate.err = internal.ErrSubscriptionLapsed

			// When
			_, err := service.Summary(ctx, admin, 0)

			// Then
			gomega.Expect(err).To(gomega.Equal(internal.ErrSubscriptionLapsed))
		})

		ginkgo.It("should require a dealership_id for corporate users", func() {
			// When
			_, err := service.Summary(ctx, corporate, 0)

			// Then
			appErr, ok := internal.IsAppError(err)
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(appErr.Code).To(gomega.Equal(internal.ErrCodeValidationFailed))
		})

		ginkgo.It("should check corporate access to the requested dealership", func() {
			// When not assigned
			_, err := service.Summary(ctx, corporate, dealershipID)
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionDenied))

			// When assigned
			mockRepo.accessible[corporate.ID] = map[int64]bool{dealershipID: true}
			_, err = service.Summary(ctx, corporate, dealershipID)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		ginkgo.It("should refuse cross-dealership requests from admins", func() {
			_, err := service.Summary(ctx, admin, 99)
			gomega.Expect(err).To(gomega.Equal(internal.ErrPermissionDenied))
		})
	})

	ginkgo.Describe("TimeSeries", func() {
		ginkgo.It("should default and cap the window", func() {
			// When
			_, err := service.TimeSeries(ctx, admin, 0, 0)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			_, err = service.TimeSeries(ctx, admin, 0, 1000)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// Then
			gomega.Expect(mockRepo.requestedDays).To(gomega.Equal([]int{DefaultTimeSeriesDays, MaxTimeSeriesDays}))
		})
	})

	ginkgo.Describe("Averages", func() {
		ginkgo.It("should return per-question averages", func() {
			// When
			averages, err := service.Averages(ctx, admin, 0)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(averages).To(gomega.HaveLen(1))
			gomega.Expect(averages[0].QuestionKey).To(gomega.Equal("work_environment"))
		})
	})
})
