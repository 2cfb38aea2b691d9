package services

import (
	"context"
	"time"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
	"github.com/custodia-labs/broker-core/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// DefaultTokenTTL is how long issued API tokens stay valid
const DefaultTokenTTL = 24 * time.Hour

// authService implements the AuthService interface
type authService struct {
	authAdapter driven.AuthAdapter
	audience    string
	tokenTTL    time.Duration
}

// NewAuthService creates a new AuthService. Tokens are issued for and
// checked against audience when it is non-empty.
func NewAuthService(authAdapter driven.AuthAdapter, audience string, tokenTTL time.Duration) driving.AuthService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &authService{
		authAdapter: authAdapter,
		audience:    audience,
		tokenTTL:    tokenTTL,
	}
}

// ValidateToken validates a JWT token and returns its claims
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		return nil, err
	}

	if claims.IsExpired() {
		return nil, domain.ErrTokenExpired
	}
	if s.audience != "" && claims.Audience != s.audience {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// IssueToken signs a token for subject
func (s *authService) IssueToken(ctx context.Context, subject string) (string, error) {
	if subject == "" {
		return "", domain.ErrInvalidInput
	}
	return s.authAdapter.GenerateToken(domain.NewTokenClaims(subject, s.audience, s.tokenTTL))
}
