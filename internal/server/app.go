// Package server wires the bookclub API together and runs it: the JSON API
// over HTTP, the Prometheus metrics endpoint and the gRPC health probe.
// SIGINT and SIGTERM trigger a graceful shutdown of all three.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/bookclub/internal/cryptox"
	"github.com/dmitrijs2005/bookclub/internal/dbx"
	"github.com/dmitrijs2005/bookclub/internal/incidentlog"
	"github.com/dmitrijs2005/bookclub/internal/logging"
	"github.com/dmitrijs2005/bookclub/internal/server/auth"
	"github.com/dmitrijs2005/bookclub/internal/server/config"
	"github.com/dmitrijs2005/bookclub/internal/server/gate"
	"github.com/dmitrijs2005/bookclub/internal/server/gateway"
	"github.com/dmitrijs2005/bookclub/internal/server/handlers"
	"github.com/dmitrijs2005/bookclub/internal/server/metrics"
	"github.com/dmitrijs2005/bookclub/internal/server/middleware"
	"github.com/dmitrijs2005/bookclub/internal/server/respond"
	"github.com/dmitrijs2005/bookclub/internal/server/router"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	gs "github.com/dmitrijs2005/bookclub/internal/server/grpc"
)

const serviceName = "bookclub"

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	tracer  *sdktrace.TracerProvider
	metrics *metrics.Metrics
	api     http.Handler
}

// NewApp builds every component from c. The database must be reachable.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	sink, err := newIncidentSink(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("incident log init error: %w", err)
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg, reg)
	if err != nil {
		return nil, fmt.Errorf("metrics init error: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(
		resource.NewSchemaless(attribute.String("service.name", serviceName)),
	))

	db, err := dbx.OpenPostgres(ctx, c.DatabaseDSN, dbx.PoolOptions{
		MaxOpenConns:    c.DBMaxOpenConns,
		ConnMaxLifetime: c.DBConnLifetime,
	})
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("db init error: %w", err)
	}

	api, err := newAPIHandler(c, db, logger, m, tp, sink)
	if err != nil {
		_ = db.Close()
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	return &App{config: c, logger: logger, db: db, tracer: tp, metrics: m, api: api}, nil
}

// newIncidentSink writes incident entries to the log directory and, when a
// bucket is configured, to S3 as well.
func newIncidentSink(ctx context.Context, c *config.Config) (incidentlog.Sink, error) {
	files, err := incidentlog.NewFileSink(c.IncidentDir)
	if err != nil {
		return nil, err
	}
	if c.S3Bucket == "" {
		return files, nil
	}

	bucket, err := incidentlog.NewS3Sink(ctx, incidentlog.S3Config{
		Region:       c.S3Region,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
		Prefix:       c.S3Prefix,
	})
	if err != nil {
		return nil, err
	}
	return incidentlog.MultiSink{files, bucket}, nil
}

// newAPIHandler assembles the request pipeline:
// Recovery, RequestLogger, CORS, the authentication gate, then the router.
func newAPIHandler(c *config.Config, db dbx.Connector, logger logging.Logger, m *metrics.Metrics,
	tp trace.TracerProvider, sink incidentlog.Sink) (http.Handler, error) {

	key, err := c.EncryptionKeyBytes()
	if err != nil {
		return nil, err
	}
	sec, err := cryptox.NewSecurityManager(c.Pepper, key)
	if err != nil {
		return nil, fmt.Errorf("security init error: %w", err)
	}

	tokens := auth.NewTokenService(auth.TokenConfig{
		Secret:   []byte(c.SecretKey),
		KeyID:    c.KeyID,
		Issuer:   c.TokenIssuer,
		Lifetime: c.TokenLifetime,
	})

	gw := gateway.New(db, logger, gateway.WithTracerProvider(tp), gateway.WithObserver(m))

	h, err := handlers.New(gw, sec, tokens, logger)
	if err != nil {
		return nil, fmt.Errorf("handlers init error: %w", err)
	}

	responder := respond.NewResponder(logger, sink)
	rt, err := router.New(responder, h.Routes(), router.WithMaxBodySize(c.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("router init error: %w", err)
	}

	g := gate.New(gate.NewRouteTable(c.PublicRoutes), tokens, logger, m)

	return middleware.Chain(rt,
		middleware.Recovery(logger, responder),
		middleware.RequestLogger(logger, m, rt.Has),
		middleware.CORS(c.AllowedOrigins, logger),
		g.Middleware(responder),
	), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// serveHTTP runs srv until ctx is done, then shuts it down within the
// configured timeout.
func (app *App) serveHTTP(ctx context.Context, cancelFunc context.CancelFunc, name string, srv *http.Server) {
	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping "+name+" server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "shutdown failed", "server", name, "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting "+name+" server", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error(), "server", name)
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCAddr, app.db, app.config.HealthInterval, app.logger, app.metrics)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error(), "server", "grpc")
		cancelFunc()
	}
}

// Run serves until a signal arrives, ctx is cancelled or a server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	api := &http.Server{Addr: app.config.HTTPAddr, Handler: app.api}

	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	metricsSrv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux}

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.serveHTTP(ctx, cancelFunc, "api", api)
	}()
	go func() {
		defer wg.Done()
		app.serveHTTP(ctx, cancelFunc, "metrics", metricsSrv)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close()
}

func (app *App) close() {
	ctx := context.Background()
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
	if err := app.tracer.Shutdown(ctx); err != nil {
		app.logger.Error(ctx, "stopping tracer provider", "error", err)
	}
	if s, ok := app.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	app.logger.Info(ctx, "App stopped")
}
