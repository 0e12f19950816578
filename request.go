package torque

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Request is an in-flight HTTP request. Headers are read through the
// standard http.Header (case-insensitive by construction); the body is
// read-once, per spec's data model invariants.
type Request struct {
	Method     string
	Path       string
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string

	// RequestID is a well-known typed slot (spec section 9's "typed slots
	// plus an escape-hatch map" resolution for the dynamic context dict).
	RequestID string

	params Params
	query  url.Values

	// store is the escape-hatch map for middleware-attached values not
	// promoted to a typed slot.
	store map[string]any

	ctx     context.Context
	httpReq *http.Request
}

func newRequest() *Request {
	return &Request{store: map[string]any{}}
}

func (r *Request) reset(hr *http.Request) {
	r.Method = hr.Method
	r.Path = hr.URL.Path
	r.Header = hr.Header
	r.Body = hr.Body
	r.RemoteAddr = hr.RemoteAddr
	r.RequestID = ""
	r.params = nil
	r.query = nil
	r.ctx = hr.Context()
	r.httpReq = hr
	for k := range r.store {
		delete(r.store, k)
	}
}

// Context returns the request-scoped context.Context, honoring whatever
// deadline/cancellation the server shell or a middleware has attached.
func (r *Request) Context() context.Context { return r.ctx }

// WithContext replaces the request's context, as middlewares that add
// timeouts or values must do to propagate downstream.
func (r *Request) WithContext(ctx context.Context) { r.ctx = ctx }

// Set attaches a value to the request's escape-hatch context map. Per spec
// section 4.2, writes must be idempotent per request; callers are
// responsible for that discipline (Set itself just overwrites).
func (r *Request) Set(key string, value any) { r.store[key] = value }

// Get reads a value previously attached with Set.
func (r *Request) Get(key string) (any, bool) { v, ok := r.store[key]; return v, ok }

// setParams installs the path parameters extracted by the router.
func (r *Request) setParams(p Params) { r.params = p }

// Param returns an accessor for the named path parameter.
func (r *Request) Param(name string) ParamValue {
	return ParamValue(r.params.Get(name))
}

// ParamValue is a coercible path-parameter value.
type ParamValue string

func (v ParamValue) String() string { return string(v) }

func (v ParamValue) Int() (int64, error) {
	return strconv.ParseInt(string(v), 10, 64)
}

func (v ParamValue) Float() (float64, error) {
	return strconv.ParseFloat(string(v), 64)
}

// Query returns the parsed query string, lazily parsed and cached.
func (r *Request) Query() url.Values {
	if r.query == nil {
		if r.httpReq != nil {
			r.query = r.httpReq.URL.Query()
		} else {
			r.query = url.Values{}
		}
	}
	return r.query
}

// QueryValue returns the first query value for key, or "".
func (r *Request) QueryValue(key string) string { return r.Query().Get(key) }

// HTTPRequest exposes the underlying *http.Request for interop with
// net/http middleware and libraries.
func (r *Request) HTTPRequest() *http.Request { return r.httpReq }

// The methods below give *Request the shape validate.FieldSource expects.
// Request never imports torque/validate; the interface is satisfied
// structurally so the dependency only runs the other way, app code
// wiring a *Request into validate.Query(req) and friends.

// PathValue implements validate.FieldSource.
func (r *Request) PathValue(name string) (string, bool) {
	for _, kv := range r.params {
		if kv.Name == name {
			return kv.Value, true
		}
	}
	return "", false
}

// QueryFieldValue implements validate.FieldSource.
func (r *Request) QueryFieldValue(name string) (string, bool) {
	v := r.Query()
	if vs, ok := v[name]; ok && len(vs) > 0 {
		return vs[0], true
	}
	return "", false
}

// HeaderValue implements validate.FieldSource.
func (r *Request) HeaderValue(name string) (string, bool) {
	v := r.Header.Get(name)
	if v == "" {
		if _, ok := r.Header[http.CanonicalHeaderKey(name)]; !ok {
			return "", false
		}
	}
	return v, true
}

// FormValue implements validate.FieldSource.
func (r *Request) FormValue(name string) (string, bool) {
	if r.httpReq == nil {
		return "", false
	}
	if r.httpReq.PostForm == nil {
		if err := r.httpReq.ParseMultipartForm(32 << 20); err != nil && err != http.ErrNotMultipart {
			r.httpReq.ParseForm()
		}
	}
	vs, ok := r.httpReq.PostForm[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// RawJSON implements validate.FieldSource by returning the unread request
// body. Consumes r.Body, per the data model's read-once body invariant.
func (r *Request) RawJSON() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(r.Body)
}
