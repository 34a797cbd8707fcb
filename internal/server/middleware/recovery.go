// Package middleware contains the HTTP middleware chain wrapped around the
// router: panic recovery, request logging and CORS.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dmitrijs2005/bookclub/internal/logging"
	"github.com/dmitrijs2005/bookclub/internal/server/respond"
)

// Recovery turns a panic in a downstream handler into the generic 500
// envelope. The panic value and stack go to the responder's log.
func Recovery(logger logging.Logger, responder *respond.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.Error(r.Context(), "panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				responder.Error(w, r, fmt.Errorf("panic: %v", p))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middleware so that the first argument is outermost.
func Chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
