package postgres_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/star4ce/star4ce-backend/internal"
	surveydm "github.com/star4ce/star4ce-backend/internal/core/datamodel/survey"
	surveyPostgres "github.com/star4ce/star4ce-backend/internal/survey/postgres"
)

func TestSurveyPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Survey Postgres Suite")
}

var _ = Describe("Survey PostgreSQL Repository", func() {
	var (
		db   *gorm.DB
		repo *surveyPostgres.Repository
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&surveydm.AccessCode{}, &surveydm.Response{}, &surveydm.Answer{})
		Expect(err).NotTo(HaveOccurred())

		repo = surveyPostgres.NewRepository(db)
	})

	seedCode := func(code string, active bool) *surveydm.AccessCode {
		c := &surveydm.AccessCode{
			Code:         code,
			DealershipID: 10,
			IsActive:     active,
			ExpiresAt:    time.Now().Add(time.Hour),
		}
		Expect(repo.CreateAccessCode(c)).To(Succeed())
		return c
	}

	newResponse := func(code string) (*surveydm.Response, []surveydm.Answer) {
		resp := &surveydm.Response{
			DealershipID: 10,
			AccessCode:   code,
			Answers:      datatypes.JSONMap{"work_environment": "satisfied"},
			SubmittedAt:  time.Now(),
		}
		answers := []surveydm.Answer{
			{DealershipID: 10, QuestionKey: "work_environment", AnswerLabel: "satisfied", Score: 4, SubmittedAt: time.Now()},
		}
		return resp, answers
	}

	Describe("CreateAccessCode", func() {
		It("should enforce code uniqueness", func() {
			seedCode("UNIQ2345", true)

			dup := &surveydm.AccessCode{
				Code:         "UNIQ2345",
				DealershipID: 11,
				IsActive:     true,
				ExpiresAt:    time.Now().Add(time.Hour),
			}
			Expect(repo.CreateAccessCode(dup)).NotTo(Succeed())
		})
	})

	Describe("GetAccessCodeByCode", func() {
		It("should return nil without error for a missing code", func() {
			c, err := repo.GetAccessCodeByCode("MISSING1")
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNil())
		})
	})

	Describe("ConsumeCodeAndStoreResponse", func() {
		It("should deactivate the code and store response with answer rows", func() {
			seedCode("TAKE2345", true)
			resp, answers := newResponse("TAKE2345")

			stored, err := repo.ConsumeCodeAndStoreResponse("TAKE2345", resp, answers)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ID).NotTo(BeZero())

			updated, err := repo.GetAccessCodeByCode("TAKE2345")
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.IsActive).To(BeFalse())

			var answerRows []surveydm.Answer
			Expect(db.Where("response_id = ?", stored.ID).Find(&answerRows).Error).To(Succeed())
			Expect(answerRows).To(HaveLen(1))
			Expect(answerRows[0].Score).To(Equal(4))
		})

		It("should fail on an already consumed code and write nothing", func() {
			seedCode("ONCE2345", true)
			first, firstAnswers := newResponse("ONCE2345")
			_, err := repo.ConsumeCodeAndStoreResponse("ONCE2345", first, firstAnswers)
			Expect(err).NotTo(HaveOccurred())

			second, secondAnswers := newResponse("ONCE2345")
			_, err = repo.ConsumeCodeAndStoreResponse("ONCE2345", second, secondAnswers)
			Expect(err).To(Equal(internal.ErrInvalidAccessCode))

			var count int64
			Expect(db.Model(&surveydm.Response{}).Where("access_code = ?", "ONCE2345").Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})

		It("should fail for an unknown code", func() {
			resp, answers := newResponse("GHOST234")
			_, err := repo.ConsumeCodeAndStoreResponse("GHOST234", resp, answers)
			Expect(err).To(Equal(internal.ErrInvalidAccessCode))
		})
	})
})
