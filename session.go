package session

import (
	"fmt"
	"time"
)

// Session is a provider-issued proof of authentication. It is opaque to the
// controller beyond the subject identity and the expiry instant; tokens are
// carried only so provider clients can round-trip them.
type Session struct {
	Subject      string     `json:"subject,omitempty"`
	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	IssuedAt     *time.Time `json:"issued_at,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at,omitempty"`
}

// TimeRemaining reports how long the session is still valid at the given
// instant. Never negative; zero for a nil session.
func (s *Session) TimeRemaining(now time.Time) time.Duration {
	if s == nil || s.ExpiresAt.IsZero() {
		return 0
	}
	if remaining := s.ExpiresAt.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// Expired reports whether the session's expiry instant has passed.
func (s *Session) Expired(now time.Time) bool {
	return s.TimeRemaining(now) == 0
}

func (s Session) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"subject=%s iat=%s exp=%s",
		s.Subject,
		issuedAt,
		s.ExpiresAt.Format(time.RFC1123),
	)
}
