// Package gateway invokes stored procedures. Every call runs on its own
// connection, binds all parameters positionally and reports failures as
// common.ErrProcedure, keeping driver messages in the internal log.
package gateway

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookclub/internal/common"
	"github.com/dmitrijs2005/bookclub/internal/dbx"
	"github.com/dmitrijs2005/bookclub/internal/logging"
	"github.com/dmitrijs2005/bookclub/internal/server/procedures"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dmitrijs2005/bookclub/internal/server/gateway"

// Params maps procedure argument names to scalar values.
type Params map[string]any

// Observer receives one observation per call.
type Observer interface {
	ObserveProcedure(procedure string, err error, d time.Duration)
}

type Gateway struct {
	db       dbx.Connector
	logger   logging.Logger
	tracer   trace.Tracer
	observer Observer
	now      func() time.Time
}

type Option func(*Gateway)

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) { g.tracer = tp.Tracer(tracerName) }
}

func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

func New(db dbx.Connector, logger logging.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		db:     db,
		logger: logger.With("component", "gateway"),
		tracer: otel.GetTracerProvider().Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Call runs proc with params and returns the result rows, possibly none.
// The procedure is invoked at most once.
func (g *Gateway) Call(ctx context.Context, proc procedures.Procedure, params Params) (rows []dbx.Row, err error) {
	name := proc.String()

	ctx, span := g.tracer.Start(ctx, "procedure.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("procedure.name", name),
			attribute.Int("procedure.params", len(params)),
		))
	start := g.now()

	defer func() {
		if g.observer != nil {
			g.observer.ObserveProcedure(name, err, g.now().Sub(start))
		}
		span.End()
	}()

	query, args, err := BuildCommand(proc, params)
	if err != nil {
		return nil, g.fail(ctx, span, name, err)
	}

	err = dbx.WithConn(ctx, g.db, func(ctx context.Context, q dbx.DBTX) error {
		res, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rows, err = dbx.ScanRows(res)
		return err
	})
	if err != nil {
		return nil, g.fail(ctx, span, name, err)
	}

	span.SetAttributes(attribute.Int("procedure.rows", len(rows)))
	return rows, nil
}

func (g *Gateway) fail(ctx context.Context, span trace.Span, name string, cause error) error {
	g.logger.Error(ctx, "procedure call failed", "procedure", name, "error", cause.Error())
	span.RecordError(cause)
	span.SetStatus(codes.Error, common.ProcedureErrorMessage)
	return fmt.Errorf("%w: %s", common.ErrProcedure, name)
}

var paramName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// BuildCommand renders the invocation of proc in named notation, e.g.
//
//	SELECT * FROM "CheckEmailUnique"("userEmail" => $1)
//
// Parameter names are sorted so the text is stable; values are returned as
// positional arguments and never appear in the command text.
func BuildCommand(proc procedures.Procedure, params Params) (string, []any, error) {
	if !proc.Valid() {
		return "", nil, fmt.Errorf("unknown procedure %d", int(proc))
	}

	names := make([]string, 0, len(params))
	for k := range params {
		if !paramName.MatchString(k) {
			return "", nil, fmt.Errorf("invalid parameter name %q", k)
		}
		names = append(names, k)
	}
	sort.Strings(names)

	args := make([]any, 0, len(names))
	parts := make([]string, 0, len(names))
	for i, k := range names {
		v, err := scalar(params[k])
		if err != nil {
			return "", nil, fmt.Errorf("parameter %s: %w", k, err)
		}
		args = append(args, v)
		parts = append(parts, fmt.Sprintf("%s => $%d", pgx.Identifier{k}.Sanitize(), i+1))
	}

	query := fmt.Sprintf("SELECT * FROM %s(%s)", pgx.Identifier{proc.String()}.Sanitize(), strings.Join(parts, ", "))
	return query, args, nil
}

func scalar(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, int64, int32, float64, time.Time:
		return t, nil
	case int:
		return int64(t), nil
	case float32:
		return float64(t), nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}
