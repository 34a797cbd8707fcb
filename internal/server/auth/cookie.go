package auth

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/bookclub/internal/common"
)

// NewSessionCookie wraps token in the HTTP-only session cookie, valid for
// lifetime from now.
func NewSessionCookie(token string, now time.Time, lifetime time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(lifetime),
		MaxAge:   int(lifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredSessionCookie overwrites the session cookie with an already
// expired, empty value.
func ExpiredSessionCookie(now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  now.Add(-time.Hour),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
