package survey

import (
	"context"
	"crypto/rand"
	"time"

	dealershipdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/dealership"
	surveydm "github.com/star4ce/star4ce-backend/internal/core/datamodel/survey"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

// codeAlphabet excludes visually ambiguous characters (0/O/1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	CodeLength = 8

	// maxGenerateRetries bounds retries on a uniqueness conflict.
	maxGenerateRetries = 5

	DefaultCodeTTL = 7 * 24 * time.Hour
)

// Satisfaction question keys. Answers outside this set are rejected.
var QuestionKeys = []string{
	"work_environment",
	"management_support",
	"compensation",
	"career_growth",
	"work_life_balance",
	"team_culture",
	"resources_tools",
	"recognition",
}

// answerScores maps the closed answer-label enum to its dashboard score.
var answerScores = map[string]int{
	"very_satisfied":    5,
	"satisfied":         4,
	"neutral":           3,
	"dissatisfied":      2,
	"very_dissatisfied": 1,
}

var respondentRoles = map[string]bool{
	"sales":      true,
	"service":    true,
	"parts":      true,
	"finance":    true,
	"management": true,
	"other":      true,
}

var employmentStatuses = map[string]bool{
	"current":    true,
	"terminated": true,
	"on_leave":   true,
}

func IsValidQuestionKey(key string) bool {
	for _, k := range QuestionKeys {
		if k == key {
			return true
		}
	}
	return false
}

func ScoreForAnswer(label string) (int, bool) {
	score, ok := answerScores[label]
	return score, ok
}

func IsValidRespondentRole(role string) bool {
	return respondentRoles[role]
}

func IsValidEmploymentStatus(status string) bool {
	return employmentStatuses[status]
}

// GenerateCode returns an 8-character code from the 32-symbol alphabet using
// a cryptographically strong source.
func GenerateCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf), nil
}

// Repository is the persistence surface for access codes and responses.
type Repository interface {
	CreateAccessCode(c *surveydm.AccessCode) error
	GetAccessCodeByCode(code string) (*surveydm.AccessCode, error)
	ListAccessCodes(dealershipID int64) ([]surveydm.AccessCode, error)

	// ConsumeCodeAndStoreResponse atomically deactivates the code and persists
	// the response plus its denormalized answer rows. Returns the stored
	// response. At most one concurrent caller wins the code.
	ConsumeCodeAndStoreResponse(code string, resp *surveydm.Response, answers []surveydm.Answer) (*surveydm.Response, error)

	// Auto-provisioning for admins without a dealership.
	CreateDealership(d *dealershipdm.Dealership) error
	UpdateUser(u *userdm.User) error
}

// PermissionChecker is the slice of the permission service the engine needs.
type PermissionChecker interface {
	HasPermission(u *userdm.User, key string) (bool, error)
}

// SubscriptionGate gates code creation and listing on entitlement.
type SubscriptionGate interface {
	EnsureActive(ctx context.Context, dealershipID int64) error
}

type ServiceAPI interface {
	CreateAccessCode(ctx context.Context, actor *userdm.User, dto CreateAccessCodeDTO) (*surveydm.AccessCode, error)
	ListAccessCodes(ctx context.Context, actor *userdm.User) ([]surveydm.AccessCode, error)
	ValidateCode(code string) (*ValidateCodeResponse, error)
	SubmitResponse(ctx context.Context, dto SubmitResponseDTO) (int64, error)
	SendInvite(ctx context.Context, actor *userdm.User, dto SendInviteDTO) error
}
