package torque

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildUploadBody(t *testing.T, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", "my photo"))
	fw, err := w.CreateFormFile("avatar", "pic.png")
	require.NoError(t, err)
	_, err = fw.Write(fileContent)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func newUploadRequest(t *testing.T, body *bytes.Buffer, contentType string) *Request {
	t.Helper()
	hr := httptest.NewRequest("POST", "/upload", body)
	hr.Header.Set("Content-Type", contentType)
	req := newRequest()
	req.reset(hr)
	return req
}

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func TestParseUploadFieldsAndFiles(t *testing.T) {
	body, ct := buildUploadBody(t, append(append([]byte{}, pngMagic...), []byte("...rest...")...))
	req := newUploadRequest(t, body, ct)

	cfg := DefaultConfig().Upload
	values, files, err := req.ParseUpload(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "my photo", values["title"])
	require.Len(t, files["avatar"], 1)

	uf := files["avatar"][0]
	assert.Equal(t, "avatar", uf.FieldName)
	assert.Equal(t, "pic.png", uf.FileName)
	assert.False(t, uf.Spooled(), "small file should stay in memory under default MaxBufferedBytes")

	r, err := uf.Open()
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	r.Close()
	assert.True(t, bytes.HasPrefix(content, pngMagic))

	require.NoError(t, uf.Close())
}

func TestParseUploadSpoolsLargeFiles(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 64)
	body, ct := buildUploadBody(t, big)
	req := newUploadRequest(t, body, ct)

	cfg := DefaultConfig().Upload
	cfg.MaxBufferedBytes = 8

	_, files, err := req.ParseUpload(cfg, nil)
	require.NoError(t, err)

	uf := files["avatar"][0]
	assert.True(t, uf.Spooled())
	assert.NotEmpty(t, uf.TempPath())
	require.NoError(t, uf.Close())
}

func TestParseUploadRejectsDisallowedContentType(t *testing.T) {
	body, ct := buildUploadBody(t, append(append([]byte{}, pngMagic...), []byte("...rest...")...))
	req := newUploadRequest(t, body, ct)

	cfg := DefaultConfig().Upload
	constraints := map[string]UploadConstraint{
		"avatar": {AllowedMIMETypes: []string{"image/jpeg"}},
	}

	_, _, err := req.ParseUpload(cfg, constraints)
	assert.ErrorIs(t, err, ErrContentTypeNotAllowed)
}

func TestParseUploadRejectsOversizedField(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 64)
	body, ct := buildUploadBody(t, big)
	req := newUploadRequest(t, body, ct)

	cfg := DefaultConfig().Upload
	constraints := map[string]UploadConstraint{
		"avatar": {MaxSize: 8},
	}

	_, _, err := req.ParseUpload(cfg, constraints)
	assert.Error(t, err)
}
