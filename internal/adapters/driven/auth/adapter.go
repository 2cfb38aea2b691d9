package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/broker-core/internal/core/domain"
	"github.com/custodia-labs/broker-core/internal/core/ports/driven"
)

// Ensure Adapter implements AuthAdapter
var _ driven.AuthAdapter = (*Adapter)(nil)

// Adapter signs and verifies HS256 JWTs
type Adapter struct {
	jwtSecret []byte
}

// NewAdapter creates a new auth adapter with the given JWT secret
func NewAdapter(jwtSecret string) *Adapter {
	return &Adapter{
		jwtSecret: []byte(jwtSecret),
	}
}

// GenerateToken creates a signed JWT from domain claims
func (a *Adapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	if claims == nil || claims.Subject == "" {
		return "", fmt.Errorf("generate token: subject is required: %w", domain.ErrInvalidInput)
	}

	rc := jwt.RegisteredClaims{
		Subject:   claims.Subject,
		IssuedAt:  jwt.NewNumericDate(time.Unix(claims.IssuedAt, 0)),
		ExpiresAt: jwt.NewNumericDate(time.Unix(claims.ExpiresAt, 0)),
	}
	if claims.Audience != "" {
		rc.Audience = jwt.ClaimStrings{claims.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, rc)
	return token.SignedString(a.jwtSecret)
}

// ParseToken validates a JWT and extracts domain claims.
// Expired tokens yield domain.ErrTokenExpired, anything else domain.ErrTokenInvalid.
func (a *Adapter) ParseToken(tokenString string) (*domain.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, domain.ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.ExpiresAt == nil {
		return nil, domain.ErrTokenInvalid
	}

	parsed := &domain.TokenClaims{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Unix(),
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Unix()
	}
	if len(claims.Audience) > 0 {
		parsed.Audience = claims.Audience[0]
	}
	return parsed, nil
}
