package domain

import "time"

// TokenClaims represents the claims carried by an API or broker token
type TokenClaims struct {
	Subject   string `json:"sub"`
	Audience  string `json:"aud,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// NewTokenClaims issues claims for subject valid for ttl from now.
func NewTokenClaims(subject, audience string, ttl time.Duration) *TokenClaims {
	now := time.Now()
	return &TokenClaims{
		Subject:   subject,
		Audience:  audience,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

// IsExpired returns true if the claims are past their expiry
func (c *TokenClaims) IsExpired() bool {
	return time.Now().Unix() > c.ExpiresAt
}
