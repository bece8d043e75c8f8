package settings

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo describes a bearer token as far as it can be read without
// the signing key.
type TokenInfo struct {
	Present   bool
	Opaque    bool // not a JWT
	Subject   string
	ExpiresAt time.Time
	Expired   bool
}

// InspectToken decodes token's registered claims without verifying the
// signature. The backend remains the authority; this only feeds the
// settings view.
func InspectToken(token string, now time.Time) TokenInfo {
	if token == "" {
		return TokenInfo{}
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{Present: true, Opaque: true}
	}

	info := TokenInfo{Present: true, Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		info.Expired = !now.Before(info.ExpiresAt)
	}
	return info
}

// ExpiresIn is the time left before expiry; zero when unknown or expired.
func (t TokenInfo) ExpiresIn(now time.Time) time.Duration {
	if t.ExpiresAt.IsZero() || t.Expired {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}
