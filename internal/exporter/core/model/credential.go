package model

import "time"

// Credential is the OAuth2 token pair with its metadata. It is replaced wholesale
// on every refresh and never mutated in place.
type Credential struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	// ExpiresAt is capture time plus the issuer reported lifetime.
	ExpiresAt time.Time
	Scope     string
	CreatedAt time.Time
}

// Remaining returns the lifetime left at now. It is negative once expired.
func (c *Credential) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// Usable reports whether the access token can be sent at now without refreshing.
// A credential with less than margin left is not usable.
func (c *Credential) Usable(now time.Time, margin time.Duration) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return c.Remaining(now) > margin
}

// Type returns the token type, defaulting to Bearer.
func (c *Credential) Type() string {
	if c.TokenType == "" {
		return "Bearer"
	}
	return c.TokenType
}
