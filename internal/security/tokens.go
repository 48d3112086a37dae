// Package security inspects session tokens and seals persisted session data.
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is not a parseable JWT.
	ErrInvalidToken = errors.New("invalid token")
)

// sessionClaims is what the platform backend signs into its session tokens.
// The user ID has been seen under sub, id and userId.
type sessionClaims struct {
	jwt.RegisteredClaims
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// Claims is the subset of session-token claims the client relies on.
type Claims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time // zero when the token carries no exp
}

// Expired reports whether the token had an exp claim at or before now.
func (c *Claims) Expired(now time.Time) bool {
	return c != nil && !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// InspectToken decodes a session token without verifying its signature.
// The client never holds the signing key; the server remains the authority and this is only
// used to fail fast on expired tokens and to recover the user ID.
// Returns ErrInvalidToken for opaque (non-JWT) tokens.
func InspectToken(token string) (*Claims, error) {
	var sc sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c := &Claims{Subject: sc.Subject, Role: sc.Role}
	if c.Subject == "" {
		c.Subject = sc.ID
	}
	if c.Subject == "" {
		c.Subject = sc.UserID
	}
	if sc.ExpiresAt != nil {
		c.ExpiresAt = sc.ExpiresAt.Time
	}
	return c, nil
}
