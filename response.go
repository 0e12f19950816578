package torque

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/torquehq/torque/stream"
)

var zeroTime time.Time

// Response is an in-flight HTTP response. Handlers and middlewares mutate it
// in place; its convenience methods return the Response itself along with
// an error, so a middleware can short-circuit with
// `return res.JSON(http.StatusUnauthorized, body)`.
type Response struct {
	Status  int
	Header  http.Header
	Written bool

	req           *Request
	hrw           http.ResponseWriter
	deferredFuncs []func()
}

func newResponse() *Response {
	return &Response{}
}

func (r *Response) reset(hrw http.ResponseWriter, req *Request) {
	r.Status = http.StatusOK
	r.Header = hrw.Header()
	r.Written = false
	r.req = req
	r.hrw = hrw
	r.deferredFuncs = r.deferredFuncs[:0]
}

// HTTPResponseWriter exposes the underlying http.ResponseWriter for interop
// with net/http middleware and libraries that need it directly.
func (r *Response) HTTPResponseWriter() http.ResponseWriter { return r.hrw }

// SetHTTPResponseWriter substitutes the underlying http.ResponseWriter,
// letting a middleware install a wrapper (gzip, response capture) around
// whatever the handler ultimately writes through.
func (r *Response) SetHTTPResponseWriter(hrw http.ResponseWriter) { r.hrw = hrw }

// SetHeader sets a response header and returns r for chaining.
func (r *Response) SetHeader(key, value string) *Response {
	r.Header.Set(key, value)
	return r
}

// SetCookie appends c to the Set-Cookie header. Invalid cookies are dropped,
// matching net/http.Cookie.String's own validity contract.
func (r *Response) SetCookie(c *http.Cookie) *Response {
	if v := c.String(); v != "" {
		r.Header.Add("Set-Cookie", v)
	}
	return r
}

// Defer registers a function to run after the handler chain completes,
// regardless of outcome, in LIFO order. Used for releasing resources
// acquired mid-request, e.g. a spooled multipart temp file.
func (r *Response) Defer(f func()) {
	r.deferredFuncs = append(r.deferredFuncs, f)
}

func (r *Response) runDeferred() {
	for i := len(r.deferredFuncs) - 1; i >= 0; i-- {
		r.deferredFuncs[i]()
	}
}

// writeHeader writes the status line exactly once; later calls are no-ops,
// per the write-once header discipline of the response data model.
func (r *Response) writeHeader(status int) {
	if r.Written {
		return
	}
	r.Status = status
	r.hrw.WriteHeader(status)
	r.Written = true
}

// Bytes writes b verbatim under contentType.
func (r *Response) Bytes(status int, contentType string, b []byte) (*Response, error) {
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	r.Header.Set("Content-Length", strconv.Itoa(len(b)))
	r.writeHeader(status)
	if r.req == nil || r.req.Method != http.MethodHead {
		if _, err := r.hrw.Write(b); err != nil {
			return r, err
		}
	}
	return r, nil
}

// String writes s as "text/plain; charset=utf-8".
func (r *Response) String(status int, s string) (*Response, error) {
	return r.Bytes(status, "text/plain; charset=utf-8", []byte(s))
}

// HTML writes s as "text/html; charset=utf-8".
func (r *Response) HTML(status int, s string) (*Response, error) {
	return r.Bytes(status, "text/html; charset=utf-8", []byte(s))
}

// JSON marshals v and writes it as "application/json; charset=utf-8".
func (r *Response) JSON(status int, v any) (*Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return r, err
	}
	return r.Bytes(status, "application/json; charset=utf-8", b)
}

// NoContent writes status with no body.
func (r *Response) NoContent(status int) (*Response, error) {
	r.writeHeader(status)
	return r, nil
}

// Err maps an error to its response per the propagation policy of the error
// model: *Error kinds use their declared status and JSON body, any other
// error is wrapped as an opaque internal error first.
func (r *Response) Err(err error) (*Response, error) {
	e := Wrap(err)
	return r.JSON(e.Kind.status(), e.body())
}

// Stream writes status and then drains p to the client one chunk at a time,
// flushing after each write. It is the entry point for the chunked streaming
// path of the streaming I/O component.
func (r *Response) Stream(status int, contentType string, p stream.Producer) error {
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	r.writeHeader(status)

	flusher, _ := r.hrw.(http.Flusher)
	w := stream.NewChunkedWriter(r.hrw, flusher)
	return stream.Drive(w, p)
}

// File writes content, sized via Content-Length, under contentType, and
// honors range/conditional headers through http.ServeContent.
func (r *Response) File(contentType string, content *bytes.Reader) error {
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	var hreq *http.Request
	if r.req != nil {
		hreq = r.req.HTTPRequest()
	}
	http.ServeContent(r.hrw, hreq, "", zeroTime, content)
	r.Written = true
	return nil
}
