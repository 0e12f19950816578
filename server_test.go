package torque

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServeHTTPPair(method, path string) (*Request, *Response) {
	hr := httptest.NewRequest(method, path, nil)
	req := newRequest()
	req.reset(hr)
	res := newResponse()
	res.reset(httptest.NewRecorder(), req)
	return req, res
}

func TestServeHTTPDispatchesMatchedRoute(t *testing.T) {
	a := New(nil)
	a.GET("/widgets/{id}", func(req *Request, res *Response) error {
		_, err := res.String(http.StatusOK, "widget "+req.Param("id").String())
		return err
	})

	rec := httptest.NewRecorder()
	hr := httptest.NewRequest(http.MethodGet, "/widgets/9", nil)
	a.ServeHTTP(rec, hr)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "widget 9", rec.Body.String())
}

func TestServeHTTPNotFound(t *testing.T) {
	a := New(nil)

	rec := httptest.NewRecorder()
	hr := httptest.NewRequest(http.MethodGet, "/nope", nil)
	a.ServeHTTP(rec, hr)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeHTTPMethodNotAllowedSetsAllowHeader(t *testing.T) {
	a := New(nil)
	a.GET("/widgets", func(req *Request, res *Response) error {
		_, err := res.NoContent(http.StatusNoContent)
		return err
	})

	rec := httptest.NewRecorder()
	hr := httptest.NewRequest(http.MethodPost, "/widgets", nil)
	a.ServeHTTP(rec, hr)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Header().Get("Allow"), http.MethodGet)
}

func TestServeHTTPAutoOptionsSetsAllowHeader(t *testing.T) {
	a := New(nil)
	a.GET("/widgets", func(req *Request, res *Response) error {
		_, err := res.NoContent(http.StatusNoContent)
		return err
	})
	a.POST("/widgets", func(req *Request, res *Response) error {
		_, err := res.NoContent(http.StatusNoContent)
		return err
	})

	rec := httptest.NewRecorder()
	hr := httptest.NewRequest(http.MethodOptions, "/widgets", nil)
	a.ServeHTTP(rec, hr)

	assert.Equal(t, http.StatusOK, rec.Code)
	allow := rec.Header().Get("Allow")
	assert.Contains(t, allow, http.MethodGet)
	assert.Contains(t, allow, http.MethodPost)
	assert.Contains(t, allow, http.MethodHead)
}

func TestServeHTTPExplicitOptionsHandlerWins(t *testing.T) {
	a := New(nil)
	called := false
	a.OPTIONS("/widgets", func(req *Request, res *Response) error {
		called = true
		_, err := res.NoContent(http.StatusNoContent)
		return err
	})

	rec := httptest.NewRecorder()
	hr := httptest.NewRequest(http.MethodOptions, "/widgets", nil)
	a.ServeHTTP(rec, hr)

	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServeHTTPOptionsAsteriskIsServerWide(t *testing.T) {
	a := New(nil)
	a.GET("/widgets", func(req *Request, res *Response) error {
		_, err := res.NoContent(http.StatusNoContent)
		return err
	})
	a.POST("/gadgets", func(req *Request, res *Response) error {
		_, err := res.NoContent(http.StatusNoContent)
		return err
	})

	rec := httptest.NewRecorder()
	hr := httptest.NewRequest(http.MethodOptions, "*", nil)
	a.ServeHTTP(rec, hr)

	assert.Equal(t, http.StatusOK, rec.Code)
	allow := rec.Header().Get("Allow")
	assert.Contains(t, allow, http.MethodGet)
	assert.Contains(t, allow, http.MethodPost)
}

func TestServeHTTPRunsDeferredFuncsAfterHandler(t *testing.T) {
	a := New(nil)
	ran := false
	a.GET("/x", func(req *Request, res *Response) error {
		res.Defer(func() { ran = true })
		_, err := res.NoContent(http.StatusNoContent)
		return err
	})

	rec := httptest.NewRecorder()
	hr := httptest.NewRequest(http.MethodGet, "/x", nil)
	a.ServeHTTP(rec, hr)

	assert.True(t, ran)
}

func TestServerAddrAfterServe(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = "localhost:0"
	a := New(&cfg)

	go a.Serve()
	t.Cleanup(func() { a.Shutdown(context.Background()) })

	// Give the listener a moment to bind before asserting on its address.
	for i := 0; i < 100 && a.server.Addr() == nil; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	require.NotNil(t, a.server.Addr())
}
