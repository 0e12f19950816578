package middleware_test

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/torquehq/torque"
	"github.com/torquehq/torque/middleware"
)

func newPair(method, path string) (*torque.App, *httptest.ResponseRecorder, *http.Request) {
	a := torque.New(nil)
	return a, httptest.NewRecorder(), httptest.NewRequest(method, path, nil)
}

func TestCORSSetsHeadersForAllowedOrigin(t *testing.T) {
	a, rec, hr := newPair(http.MethodGet, "/x")
	hr.Header.Set("Origin", "https://example.com")
	a.Use(1, middleware.CORS())
	a.GET("/x", func(req *torque.Request, res *torque.Response) error {
		_, err := res.NoContent(http.StatusNoContent)
		return err
	})

	a.ServeHTTP(rec, hr)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAnswersPreflightDirectly(t *testing.T) {
	a, rec, hr := newPair(http.MethodOptions, "/x")
	hr.Header.Set("Origin", "https://example.com")
	hr.Header.Set("Access-Control-Request-Method", "POST")
	a.Use(1, middleware.CORS())

	called := false
	a.OPTIONS("/x", func(req *torque.Request, res *torque.Response) error {
		called = true
		_, err := res.NoContent(http.StatusNoContent)
		return err
	})

	a.ServeHTTP(rec, hr)
	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestSecureSetsDefaultHeaders(t *testing.T) {
	a, rec, hr := newPair(http.MethodGet, "/x")
	a.Use(1, middleware.Secure())
	a.GET("/x", func(req *torque.Request, res *torque.Response) error {
		_, err := res.NoContent(http.StatusOK)
		return err
	})

	a.ServeHTTP(rec, hr)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
}

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	a, rec, hr := newPair(http.MethodGet, "/x")
	a.Use(1, middleware.RequestID())
	var seen string
	a.GET("/x", func(req *torque.Request, res *torque.Response) error {
		seen = req.RequestID
		_, err := res.NoContent(http.StatusOK)
		return err
	})

	a.ServeHTTP(rec, hr)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestBodyLimitRejectsOversizedBody(t *testing.T) {
	a := torque.New(nil)
	a.Use(1, middleware.BodyLimit(4))
	a.POST("/x", func(req *torque.Request, res *torque.Response) error {
		_, err := io.ReadAll(req.Body)
		if err != nil {
			if middleware.IsBodyTooLarge(err) {
				_, werr := res.Err(torque.PayloadTooLarge("body too large"))
				return werr
			}
			return err
		}
		_, err = res.NoContent(http.StatusOK)
		return err
	})

	rec := httptest.NewRecorder()
	hr := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("this body is too long"))
	a.ServeHTTP(rec, hr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestTimeoutFiresWhenAlreadyExpired(t *testing.T) {
	a, rec, hr := newPair(http.MethodGet, "/x")
	a.Use(1, middleware.Timeout(1*time.Nanosecond))
	a.GET("/x", func(req *torque.Request, res *torque.Response) error {
		time.Sleep(2 * time.Millisecond)
		_, err := res.NoContent(http.StatusOK)
		return err
	})

	a.ServeHTTP(rec, hr)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestCompressGzipsWhenAccepted(t *testing.T) {
	a, rec, hr := newPair(http.MethodGet, "/x")
	hr.Header.Set("Accept-Encoding", "gzip")
	a.Use(1, middleware.Compress())
	a.GET("/x", func(req *torque.Request, res *torque.Response) error {
		_, err := res.String(http.StatusOK, "hello world")
		return err
	})

	a.ServeHTTP(rec, hr)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	gr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
}

func TestAccessLogRecordsOneEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := torque.NewLogger(&buf, "test", false)

	a, rec, hr := newPair(http.MethodGet, "/x")
	a.Use(1, middleware.AccessLog(logger))
	a.GET("/x", func(req *torque.Request, res *torque.Response) error {
		_, err := res.NoContent(http.StatusOK)
		return err
	})

	a.ServeHTTP(rec, hr)
	assert.Contains(t, buf.String(), "request")
	assert.Contains(t, buf.String(), "path=/x")
}
