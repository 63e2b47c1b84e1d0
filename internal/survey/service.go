package survey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/star4ce/star4ce-backend/internal"
	dealershipdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/dealership"
	surveydm "github.com/star4ce/star4ce-backend/internal/core/datamodel/survey"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
	"github.com/star4ce/star4ce-backend/internal/core/events"
	"github.com/star4ce/star4ce-backend/internal/mailer"
	"github.com/star4ce/star4ce-backend/internal/permission"
)

type Service struct {
	repo            Repository
	permissions     PermissionChecker
	subscriptions   SubscriptionGate
	mailer          mailer.Mailer
	eventBus        *events.EventBus
	frontendBaseURL string
	logger          *slog.Logger
	now             func() time.Time
}

func NewService(
	repo Repository,
	permissions PermissionChecker,
	subscriptions SubscriptionGate,
	m mailer.Mailer,
	eventBus *events.EventBus,
	frontendBaseURL string,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:            repo,
		permissions:     permissions,
		subscriptions:   subscriptions,
		mailer:          m,
		eventBus:        eventBus,
		frontendBaseURL: strings.TrimRight(frontendBaseURL, "/"),
		logger:          logger,
		now:             time.Now,
	}
}

// CreateAccessCode issues a one-time code for the actor's dealership. An
// admin with no dealership yet gets a trial dealership auto-provisioned; this
// is self-service onboarding, not an error path.
func (s *Service) CreateAccessCode(ctx context.Context, actor *userdm.User, dto CreateAccessCodeDTO) (*surveydm.AccessCode, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if !actor.IsAdmin() {
		allowed, err := s.permissions.HasPermission(actor, permission.KeyCreateSurvey)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, internal.ErrPermissionDenied
		}
	}

	dealershipID, err := s.ensureDealership(actor)
	if err != nil {
		return nil, err
	}

	if err := s.subscriptions.EnsureActive(ctx, dealershipID); err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(dto.TTL())

	var accessCode *surveydm.AccessCode
	for attempt := 0; attempt < maxGenerateRetries; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, internal.NewInternalError("failed to generate access code", err)
		}

		candidate := &surveydm.AccessCode{
			Code:         code,
			DealershipID: dealershipID,
			IsActive:     true,
			ExpiresAt:    expiresAt,
			CreatedBy:    &actor.ID,
		}

		if err := s.repo.CreateAccessCode(candidate); err != nil {
			s.logger.Warn("access code collision, retrying", "attempt", attempt+1)
			continue
		}
		accessCode = candidate
		break
	}

	if accessCode == nil {
		return nil, internal.NewInternalError("failed to generate a unique access code", fmt.Errorf("exhausted %d attempts", maxGenerateRetries))
	}

	s.logger.Info("access code created",
		"dealership_id", dealershipID,
		"created_by", actor.ID,
		"expires_at", accessCode.ExpiresAt)
	return accessCode, nil
}

func (s *Service) ListAccessCodes(ctx context.Context, actor *userdm.User) ([]surveydm.AccessCode, error) {
	if !actor.IsAdmin() {
		allowed, err := s.permissions.HasPermission(actor, permission.KeyViewSurveys)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, internal.ErrPermissionDenied
		}
	}

	if actor.DealershipID == nil {
		return []surveydm.AccessCode{}, nil
	}

	codes, err := s.repo.ListAccessCodes(*actor.DealershipID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list access codes", err)
	}
	return codes, nil
}

// ValidateCode is read-only; it never consumes the code.
func (s *Service) ValidateCode(code string) (*ValidateCodeResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	c, err := s.repo.GetAccessCodeByCode(code)
	if err != nil {
		return nil, internal.NewInternalError("failed to look up access code", err)
	}
	if c == nil || !c.IsActive {
		return nil, internal.ErrInvalidAccessCode
	}
	if c.IsExpired(s.now()) {
		return nil, internal.ErrAccessCodeExpired
	}

	return &ValidateCodeResponse{
		DealershipID: c.DealershipID,
		ExpiresAt:    c.ExpiresAt,
	}, nil
}

// SubmitResponse consumes the code and records the response in one atomic
// unit: either the code is deactivated and both the response and its answer
// rows exist, or nothing changed. Concurrent submissions against the same
// code resolve so at most one wins.
func (s *Service) SubmitResponse(ctx context.Context, dto SubmitResponseDTO) (int64, error) {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return 0, err
	}

	c, err := s.repo.GetAccessCodeByCode(dto.AccessCode)
	if err != nil {
		return 0, internal.NewInternalError("failed to look up access code", err)
	}
	if c == nil || !c.IsActive {
		return 0, internal.ErrInvalidAccessCode
	}
	if c.IsExpired(s.now()) {
		return 0, internal.ErrAccessCodeExpired
	}

	now := s.now()
	answersMap := make(datatypes.JSONMap, len(dto.Answers))
	answers := make([]surveydm.Answer, 0, len(dto.Answers))
	for key, label := range dto.Answers {
		answersMap[key] = label
		score, _ := ScoreForAnswer(label)
		answers = append(answers, surveydm.Answer{
			DealershipID:   c.DealershipID,
			QuestionKey:    key,
			AnswerLabel:    label,
			Score:          score,
			RespondentRole: dto.RespondentRole,
			SubmittedAt:    now,
		})
	}

	resp := &surveydm.Response{
		DealershipID:     c.DealershipID,
		AccessCode:       dto.AccessCode,
		Answers:          answersMap,
		FeedbackText:     dto.FeedbackText,
		RespondentRole:   dto.RespondentRole,
		EmploymentStatus: dto.EmploymentStatus,
		SubmittedAt:      now,
	}
	if dto.TerminationReason != "" {
		resp.TerminationReason = &dto.TerminationReason
	}
	if dto.LeaveReason != "" {
		resp.LeaveReason = &dto.LeaveReason
	}

	stored, err := s.repo.ConsumeCodeAndStoreResponse(dto.AccessCode, resp, answers)
	if err != nil {
		return 0, err
	}

	s.eventBus.Publish(ctx, events.NewSurveySubmittedEvent(stored.DealershipID, stored.ID, dto.AccessCode))

	s.logger.Info("survey response submitted", "dealership_id", stored.DealershipID, "response_id", stored.ID)
	return stored.ID, nil
}

// SendInvite emails an existing active code to an employee. It never mutates
// code state.
func (s *Service) SendInvite(ctx context.Context, actor *userdm.User, dto SendInviteDTO) error {
	dto.Normalize()
	if err := dto.Validate(); err != nil {
		return err
	}

	if !actor.IsAdmin() {
		allowed, err := s.permissions.HasPermission(actor, permission.KeyManageSurvey)
		if err != nil {
			return err
		}
		if !allowed {
			return internal.ErrPermissionDenied
		}
	}

	c, err := s.repo.GetAccessCodeByCode(dto.Code)
	if err != nil {
		return internal.NewInternalError("failed to look up access code", err)
	}
	if c == nil || !c.IsActive {
		return internal.ErrInvalidAccessCode
	}
	if c.IsExpired(s.now()) {
		return internal.ErrAccessCodeExpired
	}
	if actor.DealershipID == nil || c.DealershipID != *actor.DealershipID {
		return internal.ErrPermissionDenied
	}

	surveyURL := fmt.Sprintf("%s/survey?code=%s", s.frontendBaseURL, dto.Code)

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.mailer.SendSurveyInvite(sendCtx, dto.EmployeeEmail, dto.Code, surveyURL); err != nil {
			s.logger.Error("failed to send survey invite", "error", err)
		}
	}()

	s.logger.Info("survey invite queued", "dealership_id", c.DealershipID, "sent_by", actor.ID)
	return nil
}

// ensureDealership returns the actor's dealership id, provisioning a 14-day
// trial dealership for admins who have none.
func (s *Service) ensureDealership(actor *userdm.User) (int64, error) {
	if actor.DealershipID != nil {
		return *actor.DealershipID, nil
	}

	if !actor.IsAdmin() {
		return 0, internal.ErrDealershipNotFound
	}

	name := fmt.Sprintf("Dealership (%s)", actor.Email)
	d := dealershipdm.NewTrial(name, s.now())
	if err := s.repo.CreateDealership(d); err != nil {
		return 0, internal.NewInternalError("failed to provision trial dealership", err)
	}

	actor.DealershipID = &d.ID
	if err := s.repo.UpdateUser(actor); err != nil {
		return 0, internal.NewInternalError("failed to bind dealership to user", err)
	}

	s.logger.Info("trial dealership auto-provisioned", "dealership_id", d.ID, "user_id", actor.ID)
	return d.ID, nil
}
