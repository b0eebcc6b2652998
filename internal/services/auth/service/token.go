package service

import (
	"net/http"
	"strings"
	"time"

	perr "opscreen/internal/platform/errors"
	"opscreen/internal/services/auth/domain"

	"github.com/golang-jwt/jwt/v5"
)

// claims is the token payload: registered claims plus the role and email
type claims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Email string `json:"email"`
}

const tokenIssuer = "opscreen"

// signToken issues an HS256 token for the user
func (s *Service) signToken(u domain.User, now time.Time) (token string, expires time.Time, err error) {
	expires = now.Add(s.cfg.TokenTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role:  u.Role,
		Email: u.Email,
	})
	token, err = t.SignedString([]byte(s.cfg.SigningSecret))
	if err != nil {
		return "", time.Time{}, perr.Internalf("token signing: %v", err)
	}
	return token, expires, nil
}

// parseToken validates signature, method, and expiry
func (s *Service) parseToken(raw string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, perr.Unauthorizedf("unexpected signing method")
		}
		return []byte(s.cfg.SigningSecret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, perr.Unauthorizedf("invalid or expired token")
	}
	return &c, nil
}

// Parse implements middleware.AuthPort: bearer token to user id and role.
// Tokens minted before the user's last password change are refused
func (s *Service) Parse(r *http.Request) (string, string, error) {
	authz := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(authz) < len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
		return "", "", perr.Unauthorizedf("missing bearer token")
	}
	raw := strings.TrimSpace(authz[len(prefix):])
	if raw == "" {
		return "", "", perr.Unauthorizedf("missing bearer token")
	}

	c, err := s.parseToken(raw)
	if err != nil {
		return "", "", err
	}
	if s.tx != nil {
		u, err := s.users.Bind(s.tx).GetByID(r.Context(), c.Subject)
		if err != nil {
			return "", "", err
		}
		if u == nil || !u.Active {
			return "", "", perr.Unauthorizedf("account disabled")
		}
		if c.IssuedAt != nil && c.IssuedAt.Time.Before(u.PasswordChangedAt.Add(-time.Second)) {
			return "", "", perr.Unauthorizedf("token predates password change")
		}
		return u.ID, u.Role, nil
	}
	return c.Subject, c.Role, nil
}
