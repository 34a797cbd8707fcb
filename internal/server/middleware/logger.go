package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookclub/internal/logging"
	"github.com/dmitrijs2005/bookclub/internal/netx"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestObserver records one observation per completed request.
type RequestObserver interface {
	ObserveRequest(method, path string, status int, d time.Duration)
}

// RouteMatcher reports whether a request hits a declared route. Unknown
// paths are reported to the observer as "other".
type RouteMatcher func(method, path string) bool

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

// RequestLogger assigns a request id, stores it in the context, echoes it
// in the response and logs the completed request.
func RequestLogger(logger logging.Logger, observer RequestObserver, known RouteMatcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := logging.WithRequestID(r.Context(), id)
			r = r.WithContext(ctx)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			elapsed := time.Since(start)

			logger.Info(ctx, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"client_ip", netx.ClientIP(r),
				"duration_ms", elapsed.Milliseconds(),
			)

			if observer != nil {
				path := "other"
				if known != nil && known(r.Method, r.URL.Path) {
					path = strings.ToLower(r.URL.Path)
				}
				observer.ObserveRequest(r.Method, path, rec.status, elapsed)
			}
		})
	}
}
