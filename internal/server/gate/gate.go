// Package gate decides per request whether identity is required and, when
// it is, verifies the session token before the request reaches the router.
package gate

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/bookclub/internal/common"
	"github.com/dmitrijs2005/bookclub/internal/logging"
	"github.com/dmitrijs2005/bookclub/internal/netx"
	"github.com/dmitrijs2005/bookclub/internal/server/respond"
)

// PermissionDeniedMessage is the only rejection text clients ever see.
const PermissionDeniedMessage = "Permission denied"

// Verifier recovers the subject from a token.
type Verifier interface {
	Verify(token string) (int64, error)
}

// RejectionObserver counts rejections by internal reason.
type RejectionObserver interface {
	ObserveRejection(reason string)
}

// Decision is the outcome of Authenticate for an accepted request. UserID
// is zero for anonymous requests to public paths.
type Decision struct {
	Public bool
	UserID int64
}

type Gate struct {
	routes   RouteTable
	verifier Verifier
	logger   logging.Logger
	observer RejectionObserver
}

func New(routes RouteTable, verifier Verifier, logger logging.Logger, observer RejectionObserver) *Gate {
	return &Gate{
		routes:   routes,
		verifier: verifier,
		logger:   logger.With("component", "gate"),
		observer: observer,
	}
}

// Authenticate classifies r and, for private paths, verifies the session
// cookie. Every failure is the same 401 error; the reason only reaches the
// log. On public paths a valid cookie still identifies the caller, and an
// invalid one is ignored.
func (g *Gate) Authenticate(r *http.Request) (Decision, error) {
	var token string
	if c, err := r.Cookie(common.SessionCookieName); err == nil {
		token = c.Value
	}

	if g.routes.IsPublic(r.URL.Path) {
		d := Decision{Public: true}
		if token != "" {
			if id, err := g.verifier.Verify(token); err == nil {
				d.UserID = id
			}
		}
		return d, nil
	}

	id, err := g.verifier.Verify(token)
	if err != nil {
		reason := rejectionReason(err)
		g.logger.Warn(r.Context(), PermissionDeniedMessage,
			"path", r.URL.Path,
			"client_ip", netx.ClientIP(r),
			"reason", reason,
			"error", err.Error(),
		)
		if g.observer != nil {
			g.observer.ObserveRejection(reason)
		}
		return Decision{}, respond.Unauthorized(PermissionDeniedMessage)
	}

	return Decision{UserID: id}, nil
}

// Middleware enforces Authenticate in front of next and exposes the
// subject through UserIDFromContext.
func (g *Gate) Middleware(responder *respond.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := g.Authenticate(r)
			if err != nil {
				responder.Error(w, r, err)
				return
			}
			if d.UserID > 0 {
				r = r.WithContext(WithUserID(r.Context(), d.UserID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, common.ErrMissingToken):
		return "missing"
	case errors.Is(err, common.ErrTokenExpired):
		return "expired"
	default:
		return "invalid"
	}
}

type userIDKey struct{}

func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFromContext returns the authenticated subject, if any.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey{}).(int64)
	return id, ok
}
