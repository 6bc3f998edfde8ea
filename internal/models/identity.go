package models

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the authenticated identity the sync engine partitions on.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session holds the persisted authentication state.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// IsExpired reports whether the access token can no longer be used.
func (s *Session) IsExpired() bool {
	return s.ExpiresAt.IsZero() || time.Now().After(s.ExpiresAt)
}

// ExpiresSoon reports whether the token expires within the window.
func (s *Session) ExpiresSoon(window time.Duration) bool {
	return time.Until(s.ExpiresAt) < window
}

// sessionClaims is the subset of JWT claims the client reads. The
// token is issued and verified by the remote; locally the claims are
// decoded without signature verification just to recover the user id
// and expiry.
type sessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SessionFromToken decodes an access token into a session.
func SessionFromToken(accessToken string) (*Session, error) {
	var claims sessionClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("access token has no subject claim")
	}

	session := &Session{
		AccessToken: accessToken,
		User:        User{ID: claims.Subject, Email: claims.Email},
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
