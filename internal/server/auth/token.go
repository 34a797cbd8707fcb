// Package auth issues and verifies the signed identity token carried in the
// session cookie.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/bookclub/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret   []byte
	KeyID    string
	Issuer   string
	Lifetime time.Duration

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// TokenService signs HS256 tokens whose subject is a numeric user id.
type TokenService struct {
	secret   []byte
	kid      string
	issuer   string
	lifetime time.Duration
	now      func() time.Time
}

func NewTokenService(cfg TokenConfig) *TokenService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenService{
		secret:   cfg.Secret,
		kid:      cfg.KeyID,
		issuer:   cfg.Issuer,
		lifetime: cfg.Lifetime,
		now:      now,
	}
}

// Lifetime reports how long issued tokens stay valid.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue returns a signed token for subjectID.
func (s *TokenService) Issue(subjectID int64) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   strconv.FormatInt(subjectID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
	})
	if s.kid != "" {
		token.Header["kid"] = s.kid
	}

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%w: signing token: %v", common.ErrSecurity, err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm, key id, issuer and expiry of
// tokenString and returns its subject. An expired token yields
// common.ErrTokenExpired, every other failure common.ErrInvalidToken; the
// underlying reason is wrapped for internal logging.
func (s *TokenService) Verify(tokenString string) (int64, error) {
	if tokenString == "" {
		return 0, common.ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("%w: %v", common.ErrTokenExpired, err)
		}
		return 0, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: subject %q is not a user id", common.ErrInvalidToken, claims.Subject)
	}
	return id, nil
}

func (s *TokenService) keyFunc(t *jwt.Token) (any, error) {
	if s.kid != "" {
		if kid, _ := t.Header["kid"].(string); kid != s.kid {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
	}
	return s.secret, nil
}
