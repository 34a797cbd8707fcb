// Package router maps (method, path) pairs to handlers. The table is built
// once and matched exactly, ignoring the case of the path.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/bookclub/internal/server/respond"
)

const (
	NotFoundMessage    = "This route does not exist!"
	BadBodyMessage     = "Invalid request body"
	BodyTooBigMessage  = "Request body too large"
	DefaultMaxBodySize = 1 << 20
)

// Request is what a handler receives.
type Request struct {
	Body   json.RawMessage
	Query  url.Values
	Params map[string]any
}

// Decode unmarshals the body into dst. Query parameters fill keys the body
// does not set, as JSON strings.
func (r Request) Decode(dst any) error {
	body := r.Body
	if len(r.Query) > 0 {
		merged, err := mergeQuery(body, r.Query)
		if err != nil {
			return respond.BadRequest(BadBodyMessage).WithCause(err)
		}
		body = merged
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return respond.BadRequest(BadBodyMessage).WithCause(err)
	}
	return nil
}

func mergeQuery(body json.RawMessage, query url.Values) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	for k := range query {
		if _, set := obj[k]; set {
			continue
		}
		v, err := json.Marshal(query.Get(k))
		if err != nil {
			return nil, err
		}
		obj[k] = v
	}
	return json.Marshal(obj)
}

// Param returns a statically declared route parameter.
func (r Request) Param(name string) (any, bool) {
	v, ok := r.Params[name]
	return v, ok
}

// Result is a successful handler outcome. A zero Status means 200.
type Result struct {
	Status  int
	Payload any
	Cookies []*http.Cookie
}

type Handler func(ctx context.Context, req Request) (Result, error)

type Route struct {
	Method  string
	Path    string
	Handler Handler
	Params  map[string]any
}

// Response is the outcome of Dispatch.
type Response struct {
	Status   int
	Envelope respond.Envelope
	Cookies  []*http.Cookie
}

type routeKey struct {
	method string
	path   string
}

type Router struct {
	routes    map[routeKey]Route
	responder *respond.Responder
	maxBody   int64
}

type Option func(*Router)

// WithMaxBodySize caps the request body read by ServeHTTP.
func WithMaxBodySize(n int64) Option {
	return func(r *Router) { r.maxBody = n }
}

// New builds the routing table. Duplicate (method, path) pairs are an error.
func New(responder *respond.Responder, routes []Route, opts ...Option) (*Router, error) {
	r := &Router{
		routes:    make(map[routeKey]Route, len(routes)),
		responder: responder,
		maxBody:   DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, rt := range routes {
		if rt.Handler == nil {
			return nil, fmt.Errorf("route %s %s has no handler", rt.Method, rt.Path)
		}
		k := key(rt.Method, rt.Path)
		if _, dup := r.routes[k]; dup {
			return nil, fmt.Errorf("duplicate route %s %s", rt.Method, rt.Path)
		}
		r.routes[k] = rt
	}
	return r, nil
}

func key(method, path string) routeKey {
	return routeKey{method: strings.ToUpper(method), path: strings.ToLower(path)}
}

// Has reports whether a route is declared for method and path.
func (r *Router) Has(method, path string) bool {
	_, ok := r.routes[key(method, path)]
	return ok
}

// Dispatch routes one request. body may be empty; otherwise it must be
// valid JSON.
func (r *Router) Dispatch(ctx context.Context, method, path string, body []byte) Response {
	return r.dispatch(ctx, method, path, nil, body)
}

func (r *Router) dispatch(ctx context.Context, method, path string, query url.Values, body []byte) Response {
	rt, ok := r.routes[key(method, path)]
	if !ok {
		return Response{Status: http.StatusNotFound, Envelope: respond.Fail(NotFoundMessage)}
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		return Response{Status: http.StatusBadRequest, Envelope: respond.Fail(BadBodyMessage)}
	}

	res, err := rt.Handler(ctx, Request{Body: body, Query: query, Params: rt.Params})
	if err != nil {
		status, env := r.responder.FromError(ctx, err)
		return Response{Status: status, Envelope: env}
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	return Response{Status: status, Envelope: respond.OK(res.Payload), Cookies: res.Cookies}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.maxBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respond.Write(w, http.StatusRequestEntityTooLarge, respond.Fail(BodyTooBigMessage))
			return
		}
		respond.Write(w, http.StatusBadRequest, respond.Fail(BadBodyMessage))
		return
	}

	resp := r.dispatch(req.Context(), req.Method, req.URL.Path, req.URL.Query(), body)
	respond.Write(w, resp.Status, resp.Envelope, resp.Cookies...)
}
