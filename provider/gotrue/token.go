package gotrue

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-session"
)

// tokenResponse is the shape GoTrue returns from the token, signup and
// refresh endpoints.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// sessionFromToken converts a token response into the controller's session
// value. The subject and expiry come from the response payload when
// present, with the access token's own claims as fallback; when a JWKS is
// configured the token signature is verified as well.
func (c *Client) sessionFromToken(tr tokenResponse, now time.Time) (*session.Session, error) {
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("gotrue: token response carries no access token")
	}

	claims, err := c.parseClaims(tr.AccessToken)
	if err != nil {
		return nil, err
	}

	subject := tr.User.ID
	if subject == "" && claims != nil {
		subject = claims.Subject
	}

	expiresAt := time.Unix(tr.ExpiresAt, 0)
	if tr.ExpiresAt == 0 {
		if tr.ExpiresIn > 0 {
			expiresAt = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
		} else if claims != nil && claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		} else {
			return nil, fmt.Errorf("gotrue: token response carries no expiry")
		}
	}

	issuedAt := now
	if claims != nil && claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}

	return &session.Session{
		Subject:      subject,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		IssuedAt:     &issuedAt,
		ExpiresAt:    expiresAt,
	}, nil
}

// parseClaims decodes the access token's registered claims. With a JWKS
// configured the signature is verified; without one the token is only
// decoded, matching clients that trust the TLS channel to the provider.
func (c *Client) parseClaims(accessToken string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}

	if c.jwks != nil {
		if _, err := jwt.ParseWithClaims(accessToken, claims, c.jwks.Keyfunc); err != nil {
			return nil, fmt.Errorf("gotrue: access token failed validation: %w", err)
		}
		return claims, nil
	}

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		// opaque tokens are tolerated as long as the payload carried
		// subject and expiry
		return nil, nil
	}
	return claims, nil
}
