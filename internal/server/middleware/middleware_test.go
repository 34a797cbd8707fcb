package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/bookclub/internal/logging"
	"github.com/dmitrijs2005/bookclub/internal/server/respond"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textLogger() (logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil))), &buf
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRecovery(t *testing.T) {
	logger, logs := textLogger()
	h := Recovery(logger, respond.NewResponder(logger, nil))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"Success":false,"result":"an error occurred, please try again later!"}`, rec.Body.String())
	assert.Contains(t, logs.String(), "panic recovered")
	assert.NotContains(t, rec.Body.String(), "nil map")
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	logger, _ := textLogger()
	h := Recovery(logger, respond.NewResponder(logger, nil))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	})
}

type requestObs struct {
	path   string
	status int
}

func (o *requestObs) ObserveRequest(_ string, path string, status int, _ time.Duration) {
	o.path, o.status = path, status
}

func TestRequestLogger(t *testing.T) {
	logger, logs := textLogger()
	obs := &requestObs{}

	var ctxID string
	h := RequestLogger(logger, obs, func(method, path string) bool { return path == "/known" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxID, _ = logging.RequestIDFromContext(r.Context())
			w.WriteHeader(http.StatusTeapot)
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/known", nil))

	id := rec.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, ctxID)
	assert.Contains(t, logs.String(), "request_id="+id)
	assert.Contains(t, logs.String(), "status=418")
	assert.Equal(t, "/known", obs.path)
	assert.Equal(t, http.StatusTeapot, obs.status)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/random/123", nil))
	assert.Equal(t, "other", obs.path)
}

func TestRequestLogger_LabelsKnownPathsInLowerCase(t *testing.T) {
	logger, _ := textLogger()
	obs := &requestObs{}
	known := func(_, path string) bool { return strings.EqualFold(path, "/api/v1/products/getProducts") }
	h := RequestLogger(logger, obs, known)(okHandler)

	for _, p := range []string{"/api/v1/products/getProducts", "/API/V1/Products/GETPRODUCTS", "/api/v1/PRODUCTS/getproducts"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, "/api/v1/products/getproducts", obs.path, p)
	}
}

func TestRequestLogger_KeepsValidIncomingID(t *testing.T) {
	logger, _ := textLogger()
	h := RequestLogger(logger, nil, nil)(okHandler)

	incoming := uuid.NewString()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, incoming)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, incoming, rec.Header().Get(RequestIDHeader))

	r.Header.Set(RequestIDHeader, "<script>")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.NotEqual(t, "<script>", rec.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	logger, _ := textLogger()
	h := CORS([]string{"https://shop.example"}, logger)(okHandler)

	t.Run("no origin passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allowed origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("Origin", "https://shop.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight", func(t *testing.T) {
		called := false
		h := CORS([]string{"https://shop.example"}, logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/users/loginUser", nil)
		r.Header.Set("Origin", "https://shop.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, called)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	})

	t.Run("disallowed origin", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"Success":false,"result":"Failed CORS validation!"}`, rec.Body.String())
	})

	t.Run("wildcard", func(t *testing.T) {
		h := CORS([]string{"*"}, logger)(okHandler)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://any.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mk := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Chain(okHandler, mk("a"), mk("b"), mk("c")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}
