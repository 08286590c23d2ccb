package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// AuthService coordinates the dashboard login flow.
type AuthService struct {
	passwordHash string
	tokenMgr     *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.DashboardConfig, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		passwordHash: cfg.PasswordHash,
		tokenMgr:     tokens,
	}
}

// Login checks the dashboard password and returns a bearer token.
func (s *AuthService) Login(_ context.Context, password string) (string, time.Time, error) {
	if err := auth.ComparePassword(s.passwordHash, password); err != nil {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(auth.DashboardSubject, uuid.NewString())
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return token, exp, nil
}
