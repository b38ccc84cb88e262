// Package auth resolves bearer tokens issued by the identity provider into
// callers. Accounts and sessions live with the provider; this service only
// verifies signatures and loads the profile projection.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"activity-hub/internal/domain"
	"activity-hub/internal/repository"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrUserNotFound = errors.New("user not found")
)

type Service interface {
	ValidateAccessToken(token string) (*Claims, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// CurrentUser validates token and returns the active user it belongs to.
	CurrentUser(ctx context.Context, token string) (*domain.User, error)
	IssueAccessToken(user *domain.User, ttl time.Duration) (string, error)
}

type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

type service struct {
	userRepo repository.UserRepository
	secret   []byte
	now      func() time.Time
}

func NewService(userRepo repository.UserRepository, jwtSecret string) Service {
	return &service{
		userRepo: userRepo,
		secret:   []byte(jwtSecret),
		now:      time.Now,
	}
}

func (s *service) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *service) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *service) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// IssueAccessToken signs a token the same way the identity provider does.
// Used by internal tooling and tests.
func (s *service) IssueAccessToken(user *domain.User, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
