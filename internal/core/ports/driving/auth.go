package driving

import (
	"context"

	"github.com/custodia-labs/broker-core/internal/core/domain"
)

// AuthService validates API bearer tokens
type AuthService interface {
	// ValidateToken parses a token and returns its claims
	ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error)

	// IssueToken creates a token for subject (used by operators and tests)
	IssueToken(ctx context.Context, subject string) (string, error)
}
