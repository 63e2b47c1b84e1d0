package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/star4ce/star4ce-backend/internal"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

const (
	VerificationCodeTTL = time.Hour
	ResetCodeTTL        = 10 * time.Minute
)

// Claims represents JWT token claims. Subject carries the user's email.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenGenerator creates and verifies signed session tokens.
type TokenGenerator interface {
	GenerateAccessToken(email, role string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

type JWTTokenGenerator struct {
	Secret   []byte
	TokenTTL time.Duration
}

func NewJWTTokenGenerator(secret string, ttl time.Duration) *JWTTokenGenerator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTTokenGenerator{
		Secret:   []byte(secret),
		TokenTTL: ttl,
	}
}

func (j *JWTTokenGenerator) GenerateAccessToken(email, role string) (string, error) {
	now := time.Now()

	claims := &Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// ValidateToken distinguishes expired tokens from structurally invalid ones so
// callers can message the user appropriately.
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, internal.ErrInvalidToken
}

// Repository is the persistence surface the auth service needs.
type Repository interface {
	GetUserByEmail(email string) (*userdm.User, error)
	GetUserByID(id int64) (*userdm.User, error)
	CreateUser(u *userdm.User) error
	UpdateUser(u *userdm.User) error
	DeleteUser(id int64) error
	DeleteUnverifiedBefore(cutoff time.Time) (int64, error)
}

// ServiceAPI is what handlers and middleware depend on.
type ServiceAPI interface {
	Register(dto RegisterDTO) (*userdm.User, error)
	Authenticate(dto LoginDTO) (*AuthResult, error)
	VerifyEmail(dto VerifyDTO) error
	ResendVerification(email string) error
	RequestReset(email string) error
	ResetPassword(dto ResetPasswordDTO) error
	Me(userID int64) (*userdm.User, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	GetUserByEmail(email string) (*userdm.User, error)
}

type AuthResult struct {
	Token string
	User  *userdm.User
}

// GenerateNumericCode returns an n-digit zero-padded code from a
// cryptographically strong source.
func GenerateNumericCode(n int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < n; i++ {
		max.Mul(max, big.NewInt(10))
	}

	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", n, v), nil
}
