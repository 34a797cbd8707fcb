package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/bookclub/internal/cryptox"
	"github.com/dmitrijs2005/bookclub/internal/logging"
	"github.com/dmitrijs2005/bookclub/internal/server/auth"
	"github.com/dmitrijs2005/bookclub/internal/server/config"
	"github.com/dmitrijs2005/bookclub/internal/server/handlers"
	"github.com/dmitrijs2005/bookclub/internal/server/metrics"
	"github.com/dmitrijs2005/bookclub/internal/server/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type memorySink struct {
	mu      sync.Mutex
	entries map[string]string
}

func (s *memorySink) Write(_ context.Context, name string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = map[string]string{}
	}
	s.entries[name] += string(body)
	return nil
}

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.SecretKey = "test-secret"
	c.Pepper = "test-pepper"
	c.EncryptionKey = "0123456789abcdef"
	return c
}

type apiFixture struct {
	cfg     *config.Config
	handler http.Handler
	mock    sqlmock.Sqlmock
	db      *sql.DB
	metrics *metrics.Metrics
	spans   *tracetest.SpanRecorder
	sink    *memorySink
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg, reg)
	require.NoError(t, err)

	f := &apiFixture{cfg: testConfig(), mock: mock, db: db, metrics: m, spans: tracetest.NewSpanRecorder(), sink: &memorySink{}}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(f.spans))

	f.handler, err = newAPIHandler(f.cfg, db, logging.Nop(), m, tp, f.sink)
	require.NoError(t, err)
	return f
}

func (f *apiFixture) do(r *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestNewAPIHandler_InvalidKey(t *testing.T) {
	c := testConfig()
	c.EncryptionKey = "short"

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg, reg)
	require.NoError(t, err)

	_, err = newAPIHandler(c, nil, logging.Nop(), m, sdktrace.NewTracerProvider(), &memorySink{})
	require.Error(t, err)
}

func TestDefaultPublicRoutesAreDeclared(t *testing.T) {
	h, err := handlers.New(nil, mustSecurity(t), nil, logging.Nop())
	require.NoError(t, err)

	declared := map[string]bool{}
	for _, r := range h.Routes() {
		declared[r.Path] = true
	}
	for _, p := range testConfig().PublicRoutes {
		assert.True(t, declared[p], p)
	}
}

func mustSecurity(t *testing.T) *cryptox.SecurityManager {
	t.Helper()
	m, err := cryptox.NewSecurityManager("test-pepper", []byte("0123456789abcdef"))
	require.NoError(t, err)
	return m
}

func TestAPI_PublicRouteCallsProcedure(t *testing.T) {
	f := newAPIFixture(t)
	f.mock.ExpectQuery(`SELECT * FROM "GetProducts"("limit" => $1, "offset" => $2)`).
		WithArgs(int64(2), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"productId", "name"}).AddRow(int64(1), "Dune"))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/products/getProducts?limit=2", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	w, body := f.do(r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["Success"])
	assert.Equal(t, []any{map[string]any{"productId": float64(1), "name": "Dune"}}, body["result"])
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	require.NoError(t, f.mock.ExpectationsWereMet())

	require.Len(t, f.spans.Ended(), 1)
	assert.Equal(t, "procedure.call", f.spans.Ended()[0].Name())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RequestCount.WithLabelValues(http.MethodGet, "/api/v1/products/getproducts", "200")))
}

func TestAPI_PrivateRouteRequiresSession(t *testing.T) {
	f := newAPIFixture(t)

	w, body := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/getUserBillingInfo", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Permission denied", body["result"])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuthRejections.WithLabelValues("missing")))

	sec := mustSecurity(t)
	email, err := sec.EncryptField("ada@example.com")
	require.NoError(t, err)

	f.mock.ExpectQuery(`SELECT * FROM "GetUserInformation"("userId" => $1)`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"email", "city"}).AddRow(email, "Utrecht"))

	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret:   []byte(f.cfg.SecretKey),
		KeyID:    f.cfg.KeyID,
		Issuer:   f.cfg.TokenIssuer,
		Lifetime: f.cfg.TokenLifetime,
	})
	tok, err := tokens.Issue(5)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/users/getUserBillingInfo", nil)
	r.AddCookie(&http.Cookie{Name: "jwt", Value: tok})
	w, body = f.do(r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"email": "ada@example.com", "city": "Utrecht"}, body["result"])
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAPI_ProcedureFailureWritesIncident(t *testing.T) {
	f := newAPIFixture(t)
	f.mock.ExpectQuery(`SELECT * FROM "GetCityByZipCode"("zipCode" => $1)`).
		WithArgs("1234AB").
		WillReturnError(errors.New(`relation "zip" does not exist`))

	w, body := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/orders/getCityFromZipCode?zipCode=1234ab", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, body["Success"])
	assert.NotContains(t, w.Body.String(), "relation")

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	require.Len(t, f.sink.entries, 1)
	for name, entry := range f.sink.entries {
		assert.True(t, strings.HasSuffix(name, ".txt"))
		assert.Contains(t, entry, w.Header().Get(middleware.RequestIDHeader))
	}
}

func TestAPI_EdgeResponses(t *testing.T) {
	f := newAPIFixture(t)

	w, body := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/products/nope", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "unknown paths are private")
	assert.Equal(t, "Permission denied", body["result"])

	r := httptest.NewRequest(http.MethodGet, "/api/v1/products/getProducts", nil)
	r.Header.Set("Origin", "https://evil.example")
	w, body = f.do(r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, middleware.CORSFailedMessage, body["result"])

	r = httptest.NewRequest(http.MethodPost, "/api/v1/users/loginUser", strings.NewReader("{not json"))
	w, body = f.do(r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", body["result"])
}

func TestApp_ContextCancelStopsServers(t *testing.T) {
	f := newAPIFixture(t)

	c := testConfig()
	c.HTTPAddr = "127.0.0.1:0"
	c.MetricsAddr = "127.0.0.1:0"
	c.GRPCAddr = "127.0.0.1:0"
	c.ShutdownTimeout = time.Second

	app := &App{config: c, logger: logging.Nop(), db: f.db, tracer: sdktrace.NewTracerProvider(), metrics: f.metrics, api: f.handler}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop after context cancel")
	}
}
