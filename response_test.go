package torque

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResponse(method string) (*Response, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	hr := httptest.NewRequest(method, "/", nil)
	req := newRequest()
	req.reset(hr)
	res := newResponse()
	res.reset(rec, req)
	return res, rec
}

func TestResponseBytes(t *testing.T) {
	res, rec := newTestResponse(http.MethodGet)

	_, err := res.Bytes(http.StatusCreated, "application/octet-stream", []byte("hi"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("Content-Length"))
	assert.Equal(t, "hi", rec.Body.String())
	assert.True(t, res.Written)
}

func TestResponseBytesSkipsBodyOnHead(t *testing.T) {
	res, rec := newTestResponse(http.MethodHead)

	_, err := res.Bytes(http.StatusOK, "text/plain", []byte("hi"))
	require.NoError(t, err)
	assert.Empty(t, rec.Body.String())
}

func TestResponseWriteOnceHeaderDiscipline(t *testing.T) {
	res, rec := newTestResponse(http.MethodGet)

	res.writeHeader(http.StatusCreated)
	res.writeHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, http.StatusCreated, res.Status)
}

func TestResponseStringHTMLJSON(t *testing.T) {
	res, rec := newTestResponse(http.MethodGet)
	_, err := res.String(http.StatusOK, "hello")
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "hello", rec.Body.String())

	res2, rec2 := newTestResponse(http.MethodGet)
	_, err = res2.HTML(http.StatusOK, "<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", rec2.Header().Get("Content-Type"))

	res3, rec3 := newTestResponse(http.MethodGet)
	_, err = res3.JSON(http.StatusOK, map[string]string{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, "application/json; charset=utf-8", rec3.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"a":"b"}`, rec3.Body.String())
}

func TestResponseNoContent(t *testing.T) {
	res, rec := newTestResponse(http.MethodGet)
	_, err := res.NoContent(http.StatusNoContent)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestResponseErrMapsErrorKindToStatusAndBody(t *testing.T) {
	res, rec := newTestResponse(http.MethodGet)
	_, err := res.Err(NotFound("no such widget"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no such widget")
}

func TestResponseErrWrapsPlainError(t *testing.T) {
	res, rec := newTestResponse(http.MethodGet)
	_, err := res.Err(assert.AnError)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseSetCookie(t *testing.T) {
	res, rec := newTestResponse(http.MethodGet)
	res.SetCookie(&http.Cookie{Name: "sid", Value: "abc"})
	_, err := res.NoContent(http.StatusNoContent)
	require.NoError(t, err)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "sid=abc")
}

func TestResponseDeferRunsLIFO(t *testing.T) {
	res, _ := newTestResponse(http.MethodGet)
	var order []int
	res.Defer(func() { order = append(order, 1) })
	res.Defer(func() { order = append(order, 2) })
	res.runDeferred()
	assert.Equal(t, []int{2, 1}, order)
}

func TestResponseFile(t *testing.T) {
	res, rec := newTestResponse(http.MethodGet)
	content := bytes.NewReader([]byte("payload"))
	require.NoError(t, res.File("text/plain", content))
	assert.Equal(t, "payload", rec.Body.String())
	assert.True(t, res.Written)
}
